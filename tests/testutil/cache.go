package testutil

import (
	"testing"

	"github.com/jsean662/MailFlowAI/internal/cache"
)

// NewTestCache creates an in-memory cache store with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestCache(t *testing.T) *cache.Store {
	t.Helper()

	s, err := cache.NewStore(":memory:")
	if err != nil {
		t.Fatalf("creating test cache: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test cache: %v", err)
		}
	})

	return s
}
