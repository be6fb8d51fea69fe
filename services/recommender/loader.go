package recommender

import (
	"context"
	"log/slog"

	"bookscout/lib/pagecache"
	"bookscout/lib/scrapers/goodreads"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bookscout/recommender")

// Fetcher is the one network call the loader knows how to make.
// *goodreads.Client implements it; tests swap in a fake.
type Fetcher interface {
	Fetch(ctx context.Context, key goodreads.SourceKey) ([]byte, error)
}

// ExtractFunc parses one page's bytes. goodreads.Extract is the real one.
type ExtractFunc func(goodreads.SourceKey, []byte) (goodreads.Extraction, error)

// LoadStats counts what happened to every page a run touched. The
// failure counts end up in the run summary so a shrunken report is
// visibly shrunken.
type LoadStats struct {
	Pages           int
	CacheHits       int
	Fetched         int
	FetchFailures   int
	ExtractFailures int
}

func (s LoadStats) Skipped() int {
	return s.FetchFailures + s.ExtractFailures
}

// Loader composes cache, fetcher and extractor. Its one guarantee is
// that a bad page costs the run exactly that page: every failure past
// construction is logged, counted and swallowed, and iteration over
// the remaining sources continues.
type Loader struct {
	cache   pagecache.Store
	fetcher Fetcher
	extract ExtractFunc
	stats   LoadStats
}

func NewLoader(cache pagecache.Store, fetcher Fetcher) *Loader {
	return &Loader{
		cache:   cache,
		fetcher: fetcher,
		extract: goodreads.Extract,
	}
}

// NewLoaderWithExtract exists for tests and for hot-patching the
// extractor seam without touching cache or fetch behavior.
func NewLoaderWithExtract(cache pagecache.Store, fetcher Fetcher, extract ExtractFunc) *Loader {
	return &Loader{
		cache:   cache,
		fetcher: fetcher,
		extract: extract,
	}
}

func (l *Loader) Stats() LoadStats {
	return l.stats
}

// Load returns every record key's page yields, possibly none.
//
// Cache hit: cached records, no network. Miss: fetch, extract, cache,
// return. A fetch or extract failure returns an empty extraction and
// the run moves on; a failed extraction is never written to the cache,
// so a later run (or a fixed extractor) gets to retry the page.
func (l *Loader) Load(ctx context.Context, key goodreads.SourceKey) goodreads.Extraction {
	ctx, span := tracer.Start(ctx, "loader:Load")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()))

	l.stats.Pages++

	var cached goodreads.Extraction
	if l.cache.Get(ctx, key.String(), &cached) {
		span.SetStatus(codes.Ok, "CACHE HIT")
		l.stats.CacheHits++
		return cached
	}

	raw, err := l.fetcher.Fetch(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		l.stats.FetchFailures++
		slog.Warn("skipping page, fetch failed", "key", key.String(), "err", err)
		return goodreads.Extraction{}
	}
	l.stats.Fetched++

	extracted, err := l.extract(key, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract failed")
		l.stats.ExtractFailures++
		// distinct from a fetch failure on purpose: this one means the
		// site's markup moved, not that the network hiccuped
		slog.Warn("skipping page, extraction failed", "key", key.String(), "err", err)
		return goodreads.Extraction{}
	}

	err = l.cache.Put(ctx, key.String(), extracted)
	if err != nil {
		span.RecordError(err)
		// caching is an optimization, never a correctness dependency
		slog.Warn("failed to cache page", "key", key.String(), "err", err)
	}

	slog.Debug(
		"loaded page",
		"key", key.String(),
		"books", len(extracted.Books),
		"reviewers", len(extracted.Reviewers),
	)
	return extracted
}
