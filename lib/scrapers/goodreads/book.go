package goodreads

// Book is one book record as extracted from a page. Identity is the
// site's book id (number + title slug, e.g. "77203.The_Kite_Runner");
// everything else is whatever the page happened to show. Skeletal
// records (id + title off a list page) and rich records (full book
// page) share this type and meet in the aggregator.
type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	// series slug, e.g. "170872-wayfarers". empty means standalone
	// as far as any page has told us.
	Series    string  `json:"series,omitempty"`
	SeriesPos float64 `json:"series_pos,omitempty"`
	Year      int     `json:"year,omitempty"`
	// average rating on book pages, the reviewer's own star rating
	// on profile-read pages. always within [0, 5], 0 means unknown.
	Rating    float64  `json:"rating,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Audiobook bool     `json:"audiobook,omitempty"`
	// source keys (string form) of every page that contributed to
	// this record.
	Sources []string `json:"sources,omitempty"`
}

// Extraction is everything one page yields. Reviewers is only
// populated by book pages: the user ids behind positive reviews,
// which the recommendation engine walks as signal sources.
type Extraction struct {
	Books     []Book   `json:"books"`
	Reviewers []string `json:"reviewers,omitempty"`
}
