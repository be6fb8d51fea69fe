package recommender

import (
	"context"
	"errors"
	"testing"

	"bookscout/lib/pagecache"
	"bookscout/lib/scrapers/goodreads"
	"bookscout/lib/telemetry"

	"github.com/stretchr/testify/require"
)

// script plays the site from canned extractions, bypassing HTML. Fetch
// returns the key itself as the page bytes and the scripted extractor
// looks the extraction up by key.
type script struct {
	pages      map[string]goodreads.Extraction
	fetchErr   map[string]error
	extractErr map[string]error
	fetched    []string
}

func (s *script) Fetch(ctx context.Context, key goodreads.SourceKey) ([]byte, error) {
	k := key.String()
	if err := s.fetchErr[k]; err != nil {
		return nil, err
	}
	s.fetched = append(s.fetched, k)
	return []byte(k), nil
}

func (s *script) extract(key goodreads.SourceKey, raw []byte) (goodreads.Extraction, error) {
	k := key.String()
	if err := s.extractErr[k]; err != nil {
		return goodreads.Extraction{}, err
	}
	return s.pages[k], nil
}

func newScriptLoader(t *testing.T, s *script) (*Loader, pagecache.Store) {
	cleanup := telemetry.SetupForTesting(t, "test:services/recommender")
	t.Cleanup(cleanup)

	store, err := pagecache.NewStore(t.TempDir(), 1)
	require.NoError(t, err)
	return NewLoaderWithExtract(store, s, s.extract), store
}

func TestLoaderFetchesAndCaches(t *testing.T) {
	key := goodreads.BookKey("1.Dune")
	s := &script{pages: map[string]goodreads.Extraction{
		key.String(): {Books: []goodreads.Book{{ID: "1.Dune", Title: "Dune"}}},
	}}
	loader, store := newScriptLoader(t, s)

	ext := loader.Load(context.Background(), key)
	require.Len(t, ext.Books, 1)
	require.Equal(t, "Dune", ext.Books[0].Title)

	var cached goodreads.Extraction
	require.True(t, store.Get(context.Background(), key.String(), &cached))
	require.Equal(t, ext, cached)

	stats := loader.Stats()
	require.Equal(t, 1, stats.Pages)
	require.Equal(t, 1, stats.Fetched)
	require.Equal(t, 0, stats.CacheHits)
}

func TestLoaderPrefersCache(t *testing.T) {
	key := goodreads.BookKey("1.Dune")
	s := &script{
		pages: map[string]goodreads.Extraction{
			key.String(): {Books: []goodreads.Book{{ID: "1.Dune"}}},
		},
	}
	loader, _ := newScriptLoader(t, s)

	loader.Load(context.Background(), key)
	require.Len(t, s.fetched, 1)

	// second load must not touch the network
	s.fetchErr = map[string]error{key.String(): errors.New("offline")}
	ext := loader.Load(context.Background(), key)
	require.Len(t, ext.Books, 1)
	require.Len(t, s.fetched, 1)
	require.Equal(t, 1, loader.Stats().CacheHits)
}

func TestLoaderSwallowsFetchFailure(t *testing.T) {
	key := goodreads.ListKey("7.Best", 2)
	s := &script{fetchErr: map[string]error{key.String(): errors.New("connection reset")}}
	loader, store := newScriptLoader(t, s)

	ext := loader.Load(context.Background(), key)
	require.Empty(t, ext.Books)

	stats := loader.Stats()
	require.Equal(t, 1, stats.FetchFailures)
	require.Equal(t, 1, stats.Skipped())

	var cached goodreads.Extraction
	require.False(t, store.Get(context.Background(), key.String(), &cached))
}

func TestLoaderNeverCachesFailedExtraction(t *testing.T) {
	key := goodreads.BookKey("1.Dune")
	s := &script{extractErr: map[string]error{key.String(): errors.New("markup drift")}}
	loader, store := newScriptLoader(t, s)

	ext := loader.Load(context.Background(), key)
	require.Empty(t, ext.Books)
	require.Equal(t, 1, loader.Stats().ExtractFailures)

	var cached goodreads.Extraction
	require.False(t, store.Get(context.Background(), key.String(), &cached))

	// once the extractor is fixed the page is retried, not stuck
	s.extractErr = nil
	s.pages = map[string]goodreads.Extraction{
		key.String(): {Books: []goodreads.Book{{ID: "1.Dune"}}},
	}
	ext = loader.Load(context.Background(), key)
	require.Len(t, ext.Books, 1)
}

func TestLoaderFailuresDoNotStopTheRun(t *testing.T) {
	good1 := goodreads.ListKey("7.Best", 1)
	bad := goodreads.ListKey("7.Best", 2)
	good2 := goodreads.ListKey("7.Best", 3)
	s := &script{
		pages: map[string]goodreads.Extraction{
			good1.String(): {Books: []goodreads.Book{{ID: "a"}}},
			good2.String(): {Books: []goodreads.Book{{ID: "b"}}},
		},
		fetchErr: map[string]error{bad.String(): errors.New("503")},
	}
	loader, store := newScriptLoader(t, s)

	agg := NewAggregate()
	for _, key := range []goodreads.SourceKey{good1, bad, good2} {
		ext := loader.Load(context.Background(), key)
		agg.Add(ext.Books...)
	}

	require.Equal(t, []string{"a", "b"}, agg.IDs())
	require.Equal(t, 1, loader.Stats().Skipped())

	keys, err := store.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{good1.String(), good2.String()}, keys)
}
