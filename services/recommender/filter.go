package recommender

import (
	"fmt"
	"log/slog"

	"bookscout/lib/scrapers/goodreads"
	"bookscout/lib/textutil"
)

// Predicate decides whether a merged record belongs in the report.
type Predicate interface {
	Keep(book goodreads.Book) bool
}

type PredicateFunc func(book goodreads.Book) bool

func (f PredicateFunc) Keep(book goodreads.Book) bool {
	return f(book)
}

// KeepAll passes everything through unchanged.
var KeepAll Predicate = PredicateFunc(func(goodreads.Book) bool { return true })

// And keeps a record only when every predicate does.
func And(predicates ...Predicate) Predicate {
	return PredicateFunc(func(book goodreads.Book) bool {
		for _, p := range predicates {
			if !p.Keep(book) {
				return false
			}
		}
		return true
	})
}

// Or keeps a record when any predicate does.
func Or(predicates ...Predicate) Predicate {
	return PredicateFunc(func(book goodreads.Book) bool {
		for _, p := range predicates {
			if p.Keep(book) {
				return true
			}
		}
		return false
	})
}

// Partition splits books into kept and rejected, preserving order.
// Every input record lands in exactly one of the two slices.
func Partition(predicate Predicate, books []goodreads.Book) (kept, rejected []goodreads.Book) {
	if predicate == nil {
		predicate = KeepAll
	}
	for _, b := range books {
		if predicate.Keep(b) {
			kept = append(kept, b)
		} else {
			rejected = append(rejected, b)
		}
	}
	return kept, rejected
}

// StrictFilter rejects a record the moment any rule fails. Genre rules
// match fuzzily, so "fantasy" in the config still matches a scraped
// "Fantasy " tag or a near-miss spelling.
type StrictFilter struct {
	RequireGenres    []string
	AvoidGenres      []string
	MinRating        float64
	RequireAudiobook bool
}

func (f StrictFilter) Keep(book goodreads.Book) bool {
	for _, genre := range f.RequireGenres {
		if !textutil.ContainsSlug(book.Genres, genre) {
			slog.Debug("rejected, missing genre", "book", book.ID, "genre", genre)
			return false
		}
	}
	for _, genre := range f.AvoidGenres {
		if textutil.ContainsSlug(book.Genres, genre) {
			slog.Debug("rejected, unwanted genre", "book", book.ID, "genre", genre)
			return false
		}
	}
	if f.MinRating > 0 && book.Rating < f.MinRating {
		slog.Debug("rejected, rating too low", "book", book.ID, "rating", book.Rating)
		return false
	}
	if f.RequireAudiobook && !book.Audiobook {
		slog.Debug("rejected, no audiobook edition", "book", book.ID)
		return false
	}
	return true
}

// GenreWeights maps genre slugs to a preference in [-1, 1]. Positive
// pulls a record in, negative pushes it out, unlisted genres are
// neutral.
type GenreWeights map[string]float64

// WeightedFilter keeps a record when the mean weight of its listed
// genres lands at or above the threshold. Unlike StrictFilter a single
// disliked tag does not sink a record that is otherwise a strong match.
func WeightedFilter(weights GenreWeights, threshold float64) (Predicate, error) {
	for genre, weight := range weights {
		if weight < -1 || weight > 1 {
			return nil, fmt.Errorf("weight for genre %q is %v, must be within [-1, 1]", genre, weight)
		}
	}

	normalized := make(GenreWeights, len(weights))
	for genre, weight := range weights {
		normalized[textutil.NormalizeSlug(genre)] = weight
	}

	return PredicateFunc(func(book goodreads.Book) bool {
		var score float64
		var matched int
		for _, genre := range book.Genres {
			slug := textutil.NormalizeSlug(genre)
			weight, ok := normalized[slug]
			if !ok {
				continue
			}
			score += weight
			matched++
		}
		if matched == 0 {
			return false
		}
		mean := score / float64(matched)
		slog.Debug("weighted genre score", "book", book.ID, "score", mean, "matched", matched)
		return mean >= threshold
	}), nil
}
