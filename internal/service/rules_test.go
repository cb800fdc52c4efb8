package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleCache_LoadsOncePerPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "link_rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url": "/a", "terms": "a"}]`), 0o644))

	cache := newRuleCache()
	rules, digest, err := cache.load(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.NotEmpty(t, digest)

	// Changes on disk are not seen within the same cache.
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))
	again, againDigest, err := cache.load(path)
	require.NoError(t, err)
	assert.Equal(t, rules, again)
	assert.Equal(t, digest, againDigest)

	fresh, freshDigest, err := newRuleCache().load(path)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.NotEqual(t, digest, freshDigest)
}

func TestRuleCache_RemembersErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "link_rules.json")

	cache := newRuleCache()
	_, _, err := cache.load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))
	_, _, err = cache.load(path)
	assert.Error(t, err)
}
