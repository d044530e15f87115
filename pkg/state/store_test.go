package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildhive/buildhive/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_PutGetDelete(t *testing.T) {
	store := openTestStore(t)

	record := &types.RunRecord{
		ClusterName:    "buildhive-abc123",
		Profile:        "ci-pool",
		CredentialDirs: []string{"/tmp/a", "/tmp/b"},
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.PutRun(record))

	got, err := store.GetRun("buildhive-abc123")
	require.NoError(t, err)
	assert.Equal(t, record.Profile, got.Profile)
	assert.Equal(t, record.CredentialDirs, got.CredentialDirs)
	assert.False(t, got.Registered)

	// Upsert flips the registered flag
	record.Registered = true
	require.NoError(t, store.PutRun(record))
	got, err = store.GetRun("buildhive-abc123")
	require.NoError(t, err)
	assert.True(t, got.Registered)

	require.NoError(t, store.DeleteRun("buildhive-abc123"))
	_, err = store.GetRun("buildhive-abc123")
	assert.Error(t, err)
}

func TestStore_GetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun("nope")
	assert.Error(t, err)
}

func TestStore_ListRuns(t *testing.T) {
	store := openTestStore(t)

	assert.Empty(t, mustList(t, store))

	for _, name := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, store.PutRun(&types.RunRecord{ClusterName: name}))
	}

	records := mustList(t, store)
	assert.Len(t, records, 3)
}

func mustList(t *testing.T, store *Store) []*types.RunRecord {
	t.Helper()
	records, err := store.ListRuns()
	require.NoError(t, err)
	return records
}
