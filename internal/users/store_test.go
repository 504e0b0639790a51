package users

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileStoreLoadsRoster(t *testing.T) {
	path := writeRoster(t, `
users:
  - username: itai
    risk_tier: moderate
    broker_api_key: key-1
    broker_api_secret: secret-1
  - username: jane
    risk_tier: aggressive
`)
	store, err := NewFileStore(path, false)
	require.NoError(t, err)

	list, err := store.ListUsersWithCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "itai", list[0].Username)
	assert.Equal(t, "moderate", list[0].RiskTier)
	assert.False(t, list[0].Credentials().Empty())
	// jane has no keys; the fan-out precheck will skip her
	assert.True(t, list[1].Credentials().Empty())
}

func TestFileStoreRejectsAnonymousEntry(t *testing.T) {
	path := writeRoster(t, `
users:
  - risk_tier: moderate
`)
	_, err := NewFileStore(path, false)
	assert.Error(t, err)
}

func TestFileStoreMissingFile(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope.yaml"), false)
	assert.Error(t, err)
}

func TestListReturnsCopy(t *testing.T) {
	path := writeRoster(t, `
users:
  - username: itai
`)
	store, err := NewFileStore(path, false)
	require.NoError(t, err)

	a, _ := store.ListUsersWithCredentials(context.Background())
	a[0].Username = "mutated"
	b, _ := store.ListUsersWithCredentials(context.Background())
	assert.Equal(t, "itai", b[0].Username)
}
