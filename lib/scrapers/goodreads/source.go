package goodreads

import (
	"fmt"
	"net/url"
)

// PageKind identifies what kind of page a source key points at, and
// therefore which extractor understands its markup.
type PageKind string

const (
	KindList        PageKind = "list"
	KindShelf       PageKind = "shelf"
	KindProfileRead PageKind = "profile-read"
	KindBook        PageKind = "book"
	KindSeries      PageKind = "series"
)

// SourceKey identifies one fetchable page. It is a pure function of
// (kind, id, page number) so the same page always maps to the same
// cache entry across runs; nothing volatile (cookies, timestamps) is
// ever part of it.
type SourceKey struct {
	Kind PageKind `json:"kind"`
	ID   string   `json:"id"`
	// 1-based for paginated kinds, 0 for single pages
	Page int `json:"page,omitempty"`
}

func ListKey(id string, page int) SourceKey {
	return SourceKey{Kind: KindList, ID: id, Page: page}
}

func ShelfKey(id string, page int) SourceKey {
	return SourceKey{Kind: KindShelf, ID: id, Page: page}
}

func ProfileReadKey(userID string, page int) SourceKey {
	return SourceKey{Kind: KindProfileRead, ID: userID, Page: page}
}

func BookKey(id string) SourceKey {
	return SourceKey{Kind: KindBook, ID: id}
}

func SeriesKey(id string) SourceKey {
	return SourceKey{Kind: KindSeries, ID: id}
}

// String is the cache key form, e.g. "list/7.Best_Fantasy/p3".
func (k SourceKey) String() string {
	if k.Page > 0 {
		return fmt.Sprintf("%s/%s/p%d", k.Kind, k.ID, k.Page)
	}
	return fmt.Sprintf("%s/%s", k.Kind, k.ID)
}

// Path is the site URL (path + query) the key resolves to.
func (k SourceKey) Path() string {
	switch k.Kind {
	case KindList:
		return fmt.Sprintf("list/show/%s?page=%d", url.PathEscape(k.ID), k.Page)
	case KindShelf:
		return fmt.Sprintf("shelf/show/%s?page=%d", url.PathEscape(k.ID), k.Page)
	case KindProfileRead:
		return fmt.Sprintf(
			"review/list/%s?sort=rating&view=reviews&page=%d",
			url.PathEscape(k.ID), k.Page,
		)
	case KindBook:
		return fmt.Sprintf("book/show/%s", url.PathEscape(k.ID))
	case KindSeries:
		return fmt.Sprintf("series/%s", url.PathEscape(k.ID))
	}
	return ""
}

func (k SourceKey) Validate() error {
	if k.ID == "" {
		return fmt.Errorf("source key %q has an empty id", k.Kind)
	}
	switch k.Kind {
	case KindList, KindShelf, KindProfileRead:
		if k.Page < 1 {
			return fmt.Errorf("source key %s is paginated but has page %d", k, k.Page)
		}
	case KindBook, KindSeries:
	default:
		return fmt.Errorf("unknown page kind %q", k.Kind)
	}
	return nil
}
