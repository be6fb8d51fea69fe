package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"bookscout/lib/pagecache"
	"bookscout/lib/scrapers/goodreads"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// review pages walked per profile, the user's own and each reviewer's
	defaultProfilePages = 2
	// own ratings at or above this seed the co-occurrence walk
	defaultLikeThreshold = 3
	defaultLimit         = 40
)

// Engine produces personalized recommendations: it walks the review
// histories of people who liked the same books the user did and ranks
// whatever else those people read.
type Engine struct {
	loader *Loader
	cache  pagecache.Store

	// ProfilePages is how many review-list pages to walk per profile.
	ProfilePages int
	// LikeThreshold is the minimum own rating for a book to count as
	// liked and seed the walk.
	LikeThreshold float64
}

func NewEngine(loader *Loader, cache pagecache.Store) *Engine {
	return &Engine{
		loader:        loader,
		cache:         cache,
		ProfilePages:  defaultProfilePages,
		LikeThreshold: defaultLikeThreshold,
	}
}

// Recommendations is one recommendation run's output. Raw is the top
// of the ranking untouched; Filtered is the ranking passed through the
// configured predicate, both in score order.
type Recommendations struct {
	Raw         []RankedEntry
	Filtered    []RankedEntry
	SeriesSizes map[string]int
	Stats       LoadStats
}

// Recommend runs the full walk for userID and returns up to limit
// entries per section. The only hard error is an empty own history,
// which means the user id or session cookie is wrong; every per-page
// failure just shrinks the result.
func (e *Engine) Recommend(
	ctx context.Context,
	userID string,
	limit int,
	predicate Predicate,
) (Recommendations, error) {
	ctx, span := tracer.Start(ctx, "engine:Recommend")
	defer span.End()
	span.SetAttributes(attribute.String("user", userID))

	if limit <= 0 {
		limit = defaultLimit
	}
	if predicate == nil {
		predicate = KeepAll
	}

	own := e.loadOwnRatings(ctx, userID)
	if len(own) == 0 {
		return Recommendations{}, fmt.Errorf(
			"no rated books found for user %s, check the user id and session cookie", userID,
		)
	}
	slog.Info("loaded own ratings", "user", userID, "books", len(own))

	scores := e.loadScores(ctx, userID, own)
	ranked := Rank(scores)
	slog.Info("ranked candidates", "user", userID, "candidates", len(ranked))

	agg := NewAggregate()
	result := Recommendations{SeriesSizes: map[string]int{}}

	for i := 0; i < len(ranked) && i < limit; i++ {
		result.Raw = append(result.Raw, e.enrich(ctx, agg, ranked[i]))
	}
	for _, entry := range ranked {
		if len(result.Filtered) >= limit {
			break
		}
		entry = e.enrich(ctx, agg, entry)
		if predicate.Keep(entry.Book) {
			result.Filtered = append(result.Filtered, entry)
		}
	}

	e.loadSeries(ctx, agg, append(result.Raw, result.Filtered...))
	result.SeriesSizes = agg.SeriesSizes()
	result.Stats = e.loader.Stats()
	return result, nil
}

// loadOwnRatings walks the user's own review pages and maps book id to
// the star rating the user gave it.
func (e *Engine) loadOwnRatings(ctx context.Context, userID string) map[string]float64 {
	own := map[string]float64{}
	for page := 1; page <= e.profilePages(); page++ {
		ext := e.loader.Load(ctx, goodreads.ProfileReadKey(userID, page))
		for _, book := range ext.Books {
			own[book.ID] = book.Rating
		}
	}
	return own
}

// loadScores returns the co-occurrence scores for userID, recomputing
// only when no usable score file exists. Deleting the file from the
// cache directory forces a fresh walk.
func (e *Engine) loadScores(ctx context.Context, userID string, own map[string]float64) Scores {
	key := scoreKey(userID)

	var cached Scores
	if e.cache.Get(ctx, key, &cached) {
		slog.Info("reusing cached scores", "user", userID, "candidates", len(cached))
		return cached
	}

	scores := e.computeScores(ctx, own)

	err := e.cache.Put(ctx, key, scores)
	if err != nil {
		slog.Warn("failed to cache scores", "user", userID, "err", err)
	}
	return scores
}

// computeScores is the co-occurrence walk. For every book the user
// liked, it visits the reviewers who also rated that book highly and
// tallies everything on their read shelves. A reviewer reached through
// several liked books is tallied once per route on purpose: readers
// with more taste overlap should weigh more.
func (e *Engine) computeScores(ctx context.Context, own map[string]float64) Scores {
	liked := make([]string, 0, len(own))
	for id, rating := range own {
		if rating >= e.likeThreshold() {
			liked = append(liked, id)
		}
	}
	sort.Strings(liked)

	scores := Scores{}
	for _, bookID := range liked {
		ext := e.loader.Load(ctx, goodreads.BookKey(bookID))
		slog.Debug("walking reviewers", "book", bookID, "reviewers", len(ext.Reviewers))

		for _, reviewer := range ext.Reviewers {
			for page := 1; page <= e.profilePages(); page++ {
				theirs := e.loader.Load(ctx, goodreads.ProfileReadKey(reviewer, page))
				for _, book := range theirs.Books {
					if _, alreadyRead := own[book.ID]; alreadyRead {
						continue
					}
					s := scores[book.ID]
					s.Total += book.Rating
					s.Count++
					scores[book.ID] = s
				}
			}
		}
	}
	return scores
}

// enrich merges the entry's book page into the aggregate and swaps the
// id-only record for the merged one. Repeat calls for the same id are
// cache hits all the way down.
func (e *Engine) enrich(ctx context.Context, agg *Aggregate, entry RankedEntry) RankedEntry {
	if !agg.Has(entry.Book.ID) {
		ext := e.loader.Load(ctx, goodreads.BookKey(entry.Book.ID))
		agg.Add(goodreads.Book{ID: entry.Book.ID})
		agg.Add(ext.Books...)
	}
	record, ok := agg.Get(entry.Book.ID)
	if ok {
		entry.Book = record
	}
	return entry
}

// loadSeries pulls the series page for every series the final entries
// mention, so the report can annotate series length.
func (e *Engine) loadSeries(ctx context.Context, agg *Aggregate, entries []RankedEntry) {
	loaded := map[string]bool{}
	for _, entry := range entries {
		series := entry.Book.Series
		if series == "" || loaded[series] {
			continue
		}
		loaded[series] = true
		ext := e.loader.Load(ctx, goodreads.SeriesKey(series))
		agg.Add(ext.Books...)
	}
}

func (e *Engine) profilePages() int {
	if e.ProfilePages > 0 {
		return e.ProfilePages
	}
	return defaultProfilePages
}

func (e *Engine) likeThreshold() float64 {
	if e.LikeThreshold > 0 {
		return e.LikeThreshold
	}
	return defaultLikeThreshold
}

func scoreKey(userID string) string {
	return "scores/" + userID
}
