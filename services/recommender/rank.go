package recommender

import (
	"sort"
	"strings"

	"bookscout/lib/scrapers/goodreads"
)

// Score accumulates how often a book showed up on the read shelves of
// reviewers who liked the same books the user did, and the rating mass
// those reviewers gave it.
type Score struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

func (s Score) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Total / float64(s.Count)
}

// Scores is keyed by book id. It round-trips through the page cache so
// a rerun with tweaked filters skips the expensive co-occurrence walk.
type Scores map[string]Score

// RankedEntry is one row of the recommendation ordering.
type RankedEntry struct {
	Book  goodreads.Book
	Score float64
	Count int
}

// ratingTiebreak scales the reviewers' average rating (at most 5) into
// the ranking score. It stays below 1/5 so rating can only ever break
// ties between equal co-occurrence counts, never outvote one.
const ratingTiebreak = 0.1

// Rank orders scored books by how many liked-book reviewers read them,
// most first. Equal counts fall back to the reviewers' average rating,
// then to the id, so the ordering is total. Entries carry id-only
// records; callers enrich the ones they will actually show.
func Rank(scores Scores) []RankedEntry {
	entries := make([]RankedEntry, 0, len(scores))
	for id, score := range scores {
		entries = append(entries, RankedEntry{
			Book:  goodreads.Book{ID: id},
			Score: float64(score.Count) + ratingTiebreak*score.Average(),
			Count: score.Count,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Book.ID < entries[j].Book.ID
	})
	return entries
}

// SortBooks orders list-mode output for reading top to bottom: grouped
// by author, series runs before standalone titles and in series order,
// standalones by publication year. The sort is stable so records a
// comparator cannot split keep their aggregation order.
func SortBooks(books []goodreads.Book) []goodreads.Book {
	out := make([]goodreads.Book, len(books))
	copy(out, books)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Author != b.Author {
			return strings.ToLower(a.Author) < strings.ToLower(b.Author)
		}
		if (a.Series != "") != (b.Series != "") {
			return a.Series != ""
		}
		if a.Series != b.Series {
			return a.Series < b.Series
		}
		if a.SeriesPos != b.SeriesPos {
			return a.SeriesPos < b.SeriesPos
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Title < b.Title
	})
	return out
}
