package recommender

import (
	"sort"

	"bookscout/lib/scrapers/goodreads"
)

// Aggregate merges partial book records by id. Different page kinds
// each know a slice of a book (a list row has title and author, the
// book page has genres and the average rating, the series page has the
// position), so the same id arrives several times per run and the
// aggregate folds the fragments into one record.
type Aggregate struct {
	index map[string]int
	books []goodreads.Book
}

func NewAggregate() *Aggregate {
	return &Aggregate{index: map[string]int{}}
}

// Add merges the given records into the aggregate in call order.
// Records without an id are dropped.
func (a *Aggregate) Add(records ...goodreads.Book) {
	for _, record := range records {
		if record.ID == "" {
			continue
		}
		i, ok := a.index[record.ID]
		if !ok {
			a.index[record.ID] = len(a.books)
			a.books = append(a.books, normalizeBook(record))
			continue
		}
		a.books[i] = mergeBook(a.books[i], record)
	}
}

func (a *Aggregate) Get(id string) (goodreads.Book, bool) {
	i, ok := a.index[id]
	if !ok {
		return goodreads.Book{}, false
	}
	return a.books[i], true
}

func (a *Aggregate) Has(id string) bool {
	_, ok := a.index[id]
	return ok
}

// Books returns the merged records in first-seen order.
func (a *Aggregate) Books() []goodreads.Book {
	out := make([]goodreads.Book, len(a.books))
	copy(out, a.books)
	return out
}

// IDs returns the record ids in first-seen order.
func (a *Aggregate) IDs() []string {
	ids := make([]string, 0, len(a.books))
	for _, b := range a.books {
		ids = append(ids, b.ID)
	}
	return ids
}

func (a *Aggregate) Len() int {
	return len(a.books)
}

// SeriesSizes counts how many aggregated records belong to each
// series. With the series pages loaded this is the series length.
func (a *Aggregate) SeriesSizes() map[string]int {
	sizes := map[string]int{}
	for _, b := range a.books {
		if b.Series == "" {
			continue
		}
		sizes[b.Series]++
	}
	return sizes
}

// normalizeBook sorts and dedupes the set-valued fields so that a
// record's representation does not depend on which page produced it.
func normalizeBook(b goodreads.Book) goodreads.Book {
	b.Genres = sortedSet(b.Genres)
	b.Sources = sortedSet(b.Sources)
	return b
}

// mergeBook folds src into dst. Scalar fields keep the latest non-zero
// value, set fields take the union. Merging a record into itself is a
// no-op, so replaying pages is always safe.
func mergeBook(dst, src goodreads.Book) goodreads.Book {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Author != "" {
		dst.Author = src.Author
	}
	if src.Series != "" {
		dst.Series = src.Series
	}
	if src.SeriesPos != 0 {
		dst.SeriesPos = src.SeriesPos
	}
	if src.Year != 0 {
		dst.Year = src.Year
	}
	if src.Rating != 0 {
		dst.Rating = src.Rating
	}
	if src.Audiobook {
		dst.Audiobook = true
	}
	dst.Genres = sortedSet(append(dst.Genres, src.Genres...))
	dst.Sources = sortedSet(append(dst.Sources, src.Sources...))
	return dst
}

func sortedSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
