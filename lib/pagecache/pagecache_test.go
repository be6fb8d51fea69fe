package pagecache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookscout/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Title  string   `json:"title"`
	Genres []string `json:"genres"`
}

func TestRoundTrip(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:pagecache")
	defer cleanup()

	store, err := NewStore(t.TempDir(), 1)
	require.NoError(t, err)

	ctx := context.Background()
	in := payload{Title: "Assassin's Apprentice", Genres: []string{"fantasy", "epic"}}
	err = store.Put(ctx, "book/77203.Assassins_Apprentice", in)
	require.NoError(t, err)

	var out payload
	ok := store.Get(ctx, "book/77203.Assassins_Apprentice", &out)
	require.True(t, ok)
	require.Empty(t, cmp.Diff(in, out))
}

func TestMissOnAbsentKey(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1)
	require.NoError(t, err)

	var out payload
	require.False(t, store.Get(context.Background(), "book/nope", &out))
}

func TestMissOnSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	older, err := NewStore(dir, 1)
	require.NoError(t, err)
	err = older.Put(ctx, "shelf/fantasy/p1", payload{Title: "x"})
	require.NoError(t, err)

	newer, err := NewStore(dir, 2)
	require.NoError(t, err)
	var out payload
	require.False(t, newer.Get(ctx, "shelf/fantasy/p1", &out))

	// a same-version store still reads it
	require.True(t, older.Get(ctx, "shelf/fantasy/p1", &out))
}

func TestMissOnCorruption(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir, 1)
	require.NoError(t, err)
	err = store.Put(ctx, "list/1.Best/p1", payload{Title: "x"})
	require.NoError(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	err = os.WriteFile(filepath.Join(dir, files[0].Name()), []byte("{not json"), 0644)
	require.NoError(t, err)

	var out payload
	require.False(t, store.Get(ctx, "list/1.Best/p1", &out))
}

func TestEntryCarriesVersionAndTimestamp(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir, 3)
	require.NoError(t, err)
	err = store.Put(ctx, "book/1", payload{Title: "x"})
	require.NoError(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	raw, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)

	var entry Entry
	require.NoError(t, json.Unmarshal(raw, &entry))
	require.Equal(t, 3, entry.SchemaVersion)
	require.WithinDuration(t, time.Now().UTC(), entry.FetchedAt, time.Minute)
}

func TestKeysAndPurge(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir, 1)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "book/1", payload{}))
	require.NoError(t, store.Put(ctx, "list/7.Lists/p2", payload{}))

	keys, err := store.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"book/1", "list/7.Lists/p2"}, keys)

	require.NoError(t, store.Purge())
	keys, err = store.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestDelete(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "book/1", payload{}))
	require.NoError(t, store.Delete("book/1"))
	// deleting again is fine
	require.NoError(t, store.Delete("book/1"))

	var out payload
	require.False(t, store.Get(ctx, "book/1", &out))
}
