package api

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRegistry_PutReturnsPrior(t *testing.T) {
	registry := NewConnectionRegistry()
	first := NewConnection("c1", 1)
	second := NewConnection("c2", 1)

	assert.Nil(t, registry.Put("alice", first))
	assert.Nil(t, registry.Put("alice", first), "re-putting the same connection is not a replacement")
	assert.Same(t, first, registry.Put("alice", second))

	got, ok := registry.Get("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, registry.Count())
}

func TestConnectionRegistry_ForEachAllowsReentry(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Put("alice", NewConnection("c1", 1))
	registry.Put("bob", NewConnection("c2", 1))

	seen := map[string]string{}
	registry.ForEach(func(id string, conn *Connection) {
		seen[id] = conn.ID
		registry.Remove(id)
	})

	assert.Equal(t, map[string]string{"alice": "c1", "bob": "c2"}, seen)
	assert.Zero(t, registry.Count())
}

func TestConnectionRegistry_RemoveIf(t *testing.T) {
	registry := NewConnectionRegistry()
	old := NewConnection("old", 1)
	current := NewConnection("new", 1)
	registry.Put("alice", old)
	registry.Put("alice", current)

	assert.False(t, registry.RemoveIf("alice", old), "stale connection must not evict its successor")
	_, ok := registry.Get("alice")
	assert.True(t, ok)

	assert.True(t, registry.RemoveIf("alice", current))
	_, ok = registry.Get("alice")
	assert.False(t, ok)
}

func TestConnectionRegistry_SnapshotIsCopy(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Put("alice", NewConnection("c1", 1))
	registry.Put("bob", NewConnection("c2", 1))

	snapshot := registry.Snapshot()
	registry.Remove("alice")

	assert.Len(t, snapshot, 2)
	assert.Equal(t, 1, registry.Count())
}

func TestConnectionRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewConnectionRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i%10)
			conn := NewConnection(fmt.Sprintf("c%d", i), 1)
			registry.Put(id, conn)
			_ = registry.Snapshot()
			registry.RemoveIf(id, conn)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, registry.Count(), 10)
}

func TestConnection_SendClosesSlowConsumer(t *testing.T) {
	conn := NewConnection("c1", 2)
	dropped := 0
	conn.onDrop = func() { dropped++ }

	assert.True(t, conn.Send([]byte("1")))
	assert.True(t, conn.Send([]byte("2")))
	assert.False(t, conn.Send([]byte("3")), "full queue rejects the frame")

	assert.False(t, conn.IsOpen())
	assert.Equal(t, 1, dropped)
	assert.False(t, conn.Send([]byte("4")), "closed connection rejects frames")
	assert.Equal(t, 1, dropped)
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn := NewConnection("c1", 1)
	conn.Close()
	conn.Close()

	select {
	case <-conn.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}
