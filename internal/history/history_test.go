package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, Entry{
		At: base, Profile: "Default", Recognizer: "vosk",
		Phrase: "please save", Command: "save", Macro: "ctrl_l;s",
	}))
	require.NoError(t, store.Record(ctx, Entry{
		At: base.Add(time.Second), Profile: "Default", Recognizer: "keyword",
		Phrase: "undo", Command: "undo", Macro: "ctrl_l;z", Exact: true, Error: "uinput gone",
	}))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "undo", entries[0].Command)
	require.True(t, entries[0].Exact)
	require.Equal(t, "uinput gone", entries[0].Error)
	require.True(t, base.Add(time.Second).Equal(entries[0].At))
	require.Equal(t, "please save", entries[1].Phrase)
	require.False(t, entries[1].Exact)

	entries, err = store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "undo", entries[0].Command)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Record(context.Background(), Entry{Command: "save"}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	entries, err := second.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, path, second.Path())
}
