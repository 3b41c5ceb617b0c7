package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybot/tallybot/internal/tally"
)

func newTestStore(t *testing.T) *CSVStore {
	t.Helper()
	dir := t.TempDir()
	return NewCSVStore(
		filepath.Join(dir, "user_reactions.csv"),
		filepath.Join(dir, "ignored_users.csv"),
	)
}

func TestCSVStore_TallyRoundTrip(t *testing.T) {
	store := newTestStore(t)

	in := []tally.Tally{
		{UserID: 100, DisplayName: "alice", Count: 3},
		{UserID: 200, DisplayName: "bob, the builder", Count: 1}, // comma needs quoting
		{UserID: 300, DisplayName: tally.UnknownName, Count: 7},
	}
	require.NoError(t, store.SaveTallies(in))

	out, err := store.LoadTallies()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCSVStore_MissingTallyFileCreatesHeaderOnly(t *testing.T) {
	store := newTestStore(t)

	out, err := store.LoadTallies()
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(store.tallyPath)
	require.NoError(t, err)
	assert.Equal(t, "User ID,User Name,Reactions Received\n", string(data))
}

func TestCSVStore_MissingOptOutFileCreatesHeaderOnly(t *testing.T) {
	store := newTestStore(t)

	out, err := store.LoadOptOuts()
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(store.optOutPath)
	require.NoError(t, err)
	assert.Equal(t, "User ID\n", string(data))
}

func TestCSVStore_MalformedRowFailsWholeLoad(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "non-numeric user id",
			content: "User ID,User Name,Reactions Received\nnot-a-number,alice,3\n",
		},
		{
			name:    "non-numeric count",
			content: "User ID,User Name,Reactions Received\n100,alice,many\n",
		},
		{
			name:    "wrong column count",
			content: "User ID,User Name,Reactions Received\n100,alice\n",
		},
		{
			name:    "wrong header",
			content: "ID,Name,Count\n100,alice,3\n",
		},
		{
			name:    "empty file",
			content: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, os.WriteFile(store.tallyPath, []byte(tt.content), 0o644))

			out, err := store.LoadTallies()
			require.Error(t, err, "fail-fast: no partial load")
			assert.Nil(t, out)
		})
	}
}

func TestCSVStore_MalformedOptOutRowFailsWholeLoad(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.optOutPath, []byte("User ID\n100\nabc\n"), 0o644))

	out, err := store.LoadOptOuts()
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestCSVStore_OptOutRoundTrip(t *testing.T) {
	store := newTestStore(t)

	in := []int64{100, 200, 300}
	require.NoError(t, store.SaveOptOuts(in))

	out, err := store.LoadOptOuts()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCSVStore_SaveOverwritesWholeFile(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveTallies([]tally.Tally{
		{UserID: 100, DisplayName: "alice", Count: 1},
		{UserID: 200, DisplayName: "bob", Count: 2},
	}))
	// Second save with a smaller table must fully replace the first.
	require.NoError(t, store.SaveTallies([]tally.Tally{
		{UserID: 100, DisplayName: "alice", Count: 5},
	}))

	out, err := store.LoadTallies()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, tally.Tally{UserID: 100, DisplayName: "alice", Count: 5}, out[0])
}

func TestCSVStore_NamesNormalizedOnSave(t *testing.T) {
	store := newTestStore(t)

	// "é" as 'e' + combining acute; NFC folds it to the precomposed form.
	decomposed := "Jose\u0301"
	require.NoError(t, store.SaveTallies([]tally.Tally{
		{UserID: 100, DisplayName: decomposed, Count: 1},
	}))

	out, err := store.LoadTallies()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Jos\u00e9", out[0].DisplayName)
}

func TestCSVStore_SaveFailsOnMissingDirectory(t *testing.T) {
	store := NewCSVStore(
		filepath.Join(t.TempDir(), "no-such-dir", "user_reactions.csv"),
		filepath.Join(t.TempDir(), "no-such-dir", "ignored_users.csv"),
	)

	err := store.SaveTallies([]tally.Tally{{UserID: 100, Count: 1}})
	assert.Error(t, err)
}
