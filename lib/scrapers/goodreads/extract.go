package goodreads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"bookscout/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
)

// ExtractError means the page's bytes did not look like the page kind
// they were supposed to be — almost always upstream markup drift.
// The fix belongs in this file, never in the loader or cache.
type ExtractError struct {
	Key    SourceKey
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Key, e.Reason)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Extract parses one page's raw bytes into records. Pure function of
// its input: no network, no cache. Unknown structure comes back as an
// *ExtractError, an empty page (e.g. a list page past the end) is just
// zero records.
func Extract(key SourceKey, raw []byte) (Extraction, error) {
	switch key.Kind {
	case KindList, KindShelf:
		return extractBookAnchors(key, raw)
	case KindProfileRead:
		return extractProfileRead(key, raw)
	case KindBook:
		return extractBook(key, raw)
	case KindSeries:
		return extractSeries(key, raw)
	}
	return Extraction{}, &ExtractError{Key: key, Reason: "no extractor for page kind"}
}

func parseDoc(key SourceKey, raw []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &ExtractError{Key: key, Reason: "unparseable html", Err: err}
	}
	return doc, nil
}

// bookIDFromHref turns any /book/show/ link into the book's stable id.
// Normalizing first strips tracking query params and fragments that
// would otherwise leak into the id.
func bookIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	normalized := purell.NormalizeURL(
		u,
		purell.FlagsSafe|purell.FlagRemoveFragment|purell.FlagSortQuery,
	)
	u, err = url.Parse(normalized)
	if err != nil {
		return ""
	}
	if !strings.Contains(u.Path, "/book/show/") {
		return ""
	}
	return path.Base(u.Path)
}

// list and shelf pages share a shape: many /book/show/ anchors, some
// bare covers, some carrying the title text. One skeletal record per
// distinct book id.
func extractBookAnchors(key SourceKey, raw []byte) (Extraction, error) {
	doc, err := parseDoc(key, raw)
	if err != nil {
		return Extraction{}, err
	}

	index := map[string]int{}
	var out Extraction
	doc.Find(`a[href*="/book/show/"]`).Each(func(_ int, a *goquery.Selection) {
		id := bookIDFromHref(a.AttrOr("href", ""))
		if id == "" {
			return
		}
		title := htmlutil.CleanText(a.Text())
		at, ok := index[id]
		if ok {
			// cover anchors have no text, title anchors do
			if out.Books[at].Title == "" {
				out.Books[at].Title = title
			}
			return
		}
		index[id] = len(out.Books)
		out.Books = append(out.Books, Book{
			ID:      id,
			Title:   title,
			Sources: []string{key.String()},
		})
	})
	return out, nil
}

// the human-readable titles the site puts on star ratings
var ratingTitles = map[string]float64{
	"did not like it": 1,
	"it was ok":       2,
	"liked it":        3,
	"really liked it": 4,
	"it was amazing":  5,
}

func extractProfileRead(key SourceKey, raw []byte) (Extraction, error) {
	doc, err := parseDoc(key, raw)
	if err != nil {
		return Extraction{}, err
	}

	// the private-profile error page also contains "Sign in", so this
	// check has to come first
	if doc.Find("#privateProfile").Length() > 0 {
		return Extraction{}, nil
	}
	if strings.Contains(doc.Find("meta[name=description]").AttrOr("content", ""), "Sign in") {
		// a dead cookie must never end up cached as an empty page
		return Extraction{}, &ExtractError{Key: key, Reason: "not signed in"}
	}

	var out Extraction
	doc.Find(".bookalike.review").Each(func(_ int, review *goquery.Selection) {
		title := review.Find(".rating .value span[title]").AttrOr("title", "")
		stars, rated := ratingTitles[title]
		if !rated {
			return
		}
		id := bookIDFromHref(review.Find(`a[href*="/book/show/"]`).First().AttrOr("href", ""))
		if id == "" {
			return
		}
		out.Books = append(out.Books, Book{
			ID:      id,
			Title:   htmlutil.CleanText(review.Find(".field.title .value a").First().Text()),
			Rating:  stars,
			Sources: []string{key.String()},
		})
	})
	return out, nil
}

const genresUrlPart = "/genres/"

type apolloState map[string]json.RawMessage

func extractBook(key SourceKey, raw []byte) (Extraction, error) {
	doc, err := parseDoc(key, raw)
	if err != nil {
		return Extraction{}, err
	}

	stats := doc.Find("script#__NEXT_DATA__").Text()
	if stats == "" {
		return Extraction{}, &ExtractError{Key: key, Reason: "missing __NEXT_DATA__ blob"}
	}
	var next struct {
		Props struct {
			PageProps struct {
				ApolloState apolloState `json:"apolloState"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	err = json.Unmarshal([]byte(stats), &next)
	if err != nil {
		return Extraction{}, &ExtractError{Key: key, Reason: "bad __NEXT_DATA__ json", Err: err}
	}
	state := next.Props.PageProps.ApolloState
	if len(state) == 0 {
		return Extraction{}, &ExtractError{Key: key, Reason: "empty apollo state"}
	}

	book := Book{ID: key.ID, Sources: []string{key.String()}}
	var reviewers []string

	// map order is random; walking keys sorted keeps the extracted
	// record identical for identical input bytes
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seenGenre := map[string]bool{}
	for _, stateKey := range keys {
		var el map[string]any
		if json.Unmarshal(state[stateKey], &el) != nil {
			continue
		}

		if strings.HasPrefix(stateKey, "Review:") {
			rating, _ := el["rating"].(float64)
			if rating < 4 {
				continue
			}
			creator, _ := el["creator"].(map[string]any)
			ref, _ := creator["__ref"].(string)
			if i := strings.LastIndex(ref, ":"); i >= 0 && ref[i+1:] != "" {
				reviewers = append(reviewers, ref[i+1:])
			}
			continue
		}

		switch el["__typename"] {
		case "Contributor":
			if book.Author == "" {
				book.Author = slugFromWebUrl(el)
			}
		case "Series":
			if book.Series == "" {
				book.Series = slugFromWebUrl(el)
			}
		case "Book":
			if title, _ := el["title"].(string); title != "" && book.Title == "" {
				book.Title = title
			}
			if pos := seriesPosition(el); pos != 0 && book.SeriesPos == 0 {
				book.SeriesPos = pos
			}
		}

		// genres are incomplete in the markup, the json metadata is
		// the source of truth
		if genresRaw, ok := el["bookGenres"].([]any); ok {
			for _, g := range genresRaw {
				entry, _ := g.(map[string]any)
				genre, _ := entry["genre"].(map[string]any)
				webUrl, _ := genre["webUrl"].(string)
				if !strings.Contains(webUrl, genresUrlPart) {
					continue
				}
				slug := path.Base(webUrl)
				if slug == "" || seenGenre[slug] {
					continue
				}
				seenGenre[slug] = true
				book.Genres = append(book.Genres, slug)
			}
		}
	}

	if book.Title == "" {
		book.Title = htmlutil.CleanText(doc.Find(`h1[data-testid="bookTitle"]`).First().Text())
	}
	book.Rating = averageRating(doc)
	book.Year = publicationYear(doc)
	book.Audiobook = audiobookHeuristic(raw, book.Genres)

	sort.Strings(reviewers)
	return Extraction{Books: []Book{book}, Reviewers: reviewers}, nil
}

func slugFromWebUrl(el map[string]any) string {
	webUrl, _ := el["webUrl"].(string)
	if webUrl == "" {
		return ""
	}
	return path.Base(webUrl)
}

func seriesPosition(el map[string]any) float64 {
	entries, _ := el["bookSeries"].([]any)
	for _, e := range entries {
		entry, _ := e.(map[string]any)
		posStr, _ := entry["userPosition"].(string)
		pos, err := strconv.ParseFloat(posStr, 64)
		if err == nil && pos > 0 {
			return pos
		}
	}
	return 0
}

func averageRating(doc *goquery.Document) float64 {
	// missing on delisted books ("does not meet our catalog
	// guidelines"), which is fine, they just rank last
	text := strings.TrimSpace(doc.Find(".RatingStatistics__rating").First().Text())
	rating, err := strconv.ParseFloat(text, 64)
	if err != nil || rating < 0 || rating > 5 {
		return 0
	}
	return rating
}

func publicationYear(doc *goquery.Document) int {
	// e.g. "First published June 1, 2002"
	text := strings.TrimSpace(doc.Find(`p[data-testid="publicationInfo"]`).First().Text())
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	year, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0
	}
	return year
}

func audiobookHeuristic(raw []byte, genres []string) bool {
	// the shelf link is not always present and the genre tags are not
	// always complete, either signal is good enough
	if bytes.Contains(raw, []byte("shelf=audiobook")) {
		return true
	}
	for _, g := range genres {
		if g == "audiobook" || g == "audible" {
			return true
		}
	}
	return false
}

// matches "Book 1", "Book 2", "Book 1.5" but not "Book 1-3" or
// "Book 4 Part 4 of 4"
var seriesRowTitle = regexp.MustCompile(`^Book (\d+(?:\.\d+)?)$`)

func extractSeries(key SourceKey, raw []byte) (Extraction, error) {
	doc, err := parseDoc(key, raw)
	if err != nil {
		return Extraction{}, err
	}

	var out Extraction
	doc.Find(".listWithDividers__item").Each(func(_ int, row *goquery.Selection) {
		heading := htmlutil.CleanText(row.Find("h3").First().Text())
		groups := seriesRowTitle.FindStringSubmatch(heading)
		if groups == nil {
			return
		}
		pos, err := strconv.ParseFloat(groups[1], 64)
		if err != nil {
			return
		}
		id := bookIDFromHref(row.Find(`a[href*="/book/show/"]`).First().AttrOr("href", ""))
		if id == "" {
			return
		}
		out.Books = append(out.Books, Book{
			ID:        id,
			Title:     htmlutil.CleanText(row.Find(`a[href*="/book/show/"] span[itemprop="name"]`).First().Text()),
			Series:    key.ID,
			SeriesPos: pos,
			Sources:   []string{key.String()},
		})
	})
	return out, nil
}
