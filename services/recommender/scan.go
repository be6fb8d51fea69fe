package recommender

import (
	"context"
	"fmt"
	"log/slog"

	"bookscout/lib/scrapers/goodreads"

	"go.opentelemetry.io/otel/attribute"
)

// lists do not expose a page count, so scans walk a fixed window
const defaultListPages = 4

// ScanSources names what a scan reads: community lists, site-wide
// shelves, and individual book ids to pull in directly.
type ScanSources struct {
	Name    string
	Lists   []string
	Shelves []string
	Books   []string
	// ListPages overrides the list/shelf page window when > 0.
	ListPages int
}

func (s ScanSources) Validate() error {
	if len(s.Lists) == 0 && len(s.Shelves) == 0 && len(s.Books) == 0 {
		return fmt.Errorf("scan %q has no lists, shelves or books to read", s.Name)
	}
	return nil
}

// ScanResult is one scan's output: the merged records split by the
// predicate, sorted for reading.
type ScanResult struct {
	Name        string
	Included    []goodreads.Book
	Excluded    []goodreads.Book
	SeriesSizes map[string]int
	Stats       LoadStats
}

// Scan walks the configured sources, merges every record fragment by
// identity, enriches each identity with its book page (and series page
// when it names one), then partitions and sorts. Sources must name at
// least one thing to read; past that, failed pages shrink the result
// instead of stopping it.
func Scan(
	ctx context.Context,
	loader *Loader,
	sources ScanSources,
	predicate Predicate,
) (ScanResult, error) {
	ctx, span := tracer.Start(ctx, "recommender:Scan")
	defer span.End()
	span.SetAttributes(attribute.String("scan", sources.Name))

	err := sources.Validate()
	if err != nil {
		return ScanResult{}, err
	}

	pages := sources.ListPages
	if pages <= 0 {
		pages = defaultListPages
	}

	agg := NewAggregate()
	for _, list := range sources.Lists {
		for page := 1; page <= pages; page++ {
			ext := loader.Load(ctx, goodreads.ListKey(list, page))
			agg.Add(ext.Books...)
		}
	}
	for _, shelf := range sources.Shelves {
		for page := 1; page <= pages; page++ {
			ext := loader.Load(ctx, goodreads.ShelfKey(shelf, page))
			agg.Add(ext.Books...)
		}
	}
	for _, id := range sources.Books {
		agg.Add(goodreads.Book{ID: id})
	}
	slog.Info("collected scan sources", "scan", sources.Name, "books", agg.Len())

	// enrich a snapshot of the ids; series pages may append new records
	// but those stay skeletal
	loadedSeries := map[string]bool{}
	for _, id := range agg.IDs() {
		ext := loader.Load(ctx, goodreads.BookKey(id))
		agg.Add(ext.Books...)

		record, ok := agg.Get(id)
		if !ok || record.Series == "" || loadedSeries[record.Series] {
			continue
		}
		loadedSeries[record.Series] = true
		series := loader.Load(ctx, goodreads.SeriesKey(record.Series))
		agg.Add(series.Books...)
	}

	kept, rejected := Partition(predicate, agg.Books())
	for _, b := range rejected {
		slog.Debug("excluded from scan", "scan", sources.Name, "book", b.ID)
	}

	return ScanResult{
		Name:        sources.Name,
		Included:    SortBooks(kept),
		Excluded:    SortBooks(rejected),
		SeriesSizes: agg.SeriesSizes(),
		Stats:       loader.Stats(),
	}, nil
}
