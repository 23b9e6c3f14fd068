package uuidgen

import (
	"sort"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewForEntity(t *testing.T) {
	report, err := NewForEntity(EntityTypeReport)
	require.NoError(t, err)
	assert.Equal(t, 7, int(report.Version()))

	conn, err := NewForEntity(EntityTypeConnection)
	require.NoError(t, err)
	assert.Equal(t, 4, int(conn.Version()))
}

func TestMustNewForEntity_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := MustNewForEntity(EntityTypeConnection).String()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestNewMessageID_MonotonicWithinMillisecond(t *testing.T) {
	now := time.Now()
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		id, err := NewMessageID(now)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.True(t, sort.StringsAreSorted(ids))

	parsed, err := ulid.Parse(ids[0])
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), parsed.Time())
}
