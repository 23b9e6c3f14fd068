package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Run("exact key wins", func(t *testing.T) {
		t.Setenv("CHAT_HISTORY_LIMIT", "10")
		t.Setenv("EVENTCHAT_CHAT_HISTORY_LIMIT", "20")
		assert.Equal(t, "10", Get("CHAT_HISTORY_LIMIT", "50"))
	})

	t.Run("prefixed fallback", func(t *testing.T) {
		t.Setenv("EVENTCHAT_JWT_SECRET", "s3cret")
		assert.Equal(t, "s3cret", Get("JWT_SECRET", ""))
	})

	t.Run("default", func(t *testing.T) {
		assert.Equal(t, "fallback", Get("EVENTCHAT_TEST_UNSET_KEY", "fallback"))
	})
}
