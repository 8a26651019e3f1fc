package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsean662/MailFlowAI/tests/testutil"
)

func TestStoreSetGetRoundTrip(t *testing.T) {
	s := testutil.NewTestCache(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, s.Set("k1", payload{Name: "a", Count: 2}, time.Minute))

	var got payload
	hit, err := s.Get("k1", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestStoreGetMissingKey(t *testing.T) {
	s := testutil.NewTestCache(t)

	var got string
	hit, err := s.Get("nope", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStoreSetReplacesExisting(t *testing.T) {
	s := testutil.NewTestCache(t)

	require.NoError(t, s.Set("k1", "old", time.Minute))
	require.NoError(t, s.Set("k1", "new", time.Minute))

	var got string
	hit, err := s.Get("k1", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "new", got)
}

func TestStoreDeleteByPrefix(t *testing.T) {
	s := testutil.NewTestCache(t)

	require.NoError(t, s.Set("list:inbox:", "a", time.Minute))
	require.NoError(t, s.Set("list:sent:", "b", time.Minute))
	require.NoError(t, s.Set("detail:m1", "c", time.Minute))

	require.NoError(t, s.DeleteByPrefix("list:"))

	var got string
	hit, _ := s.Get("list:inbox:", &got)
	assert.False(t, hit)
	hit, _ = s.Get("list:sent:", &got)
	assert.False(t, hit)
	hit, _ = s.Get("detail:m1", &got)
	assert.True(t, hit)
}

func TestStoreDeleteByPrefixIsLiteral(t *testing.T) {
	s := testutil.NewTestCache(t)

	// "search:a%b" must not match "search:axb" through the LIKE wildcard.
	require.NoError(t, s.Set("search:axb", "a", time.Minute))
	require.NoError(t, s.DeleteByPrefix("search:a%b"))

	var got string
	hit, _ := s.Get("search:axb", &got)
	assert.True(t, hit)
}

func TestStorePurge(t *testing.T) {
	s := testutil.NewTestCache(t)

	require.NoError(t, s.Set("k1", "a", time.Minute))
	require.NoError(t, s.Set("k2", "b", time.Minute))

	require.NoError(t, s.Purge())

	var got string
	hit, _ := s.Get("k1", &got)
	assert.False(t, hit)
	hit, _ = s.Get("k2", &got)
	assert.False(t, hit)
}
