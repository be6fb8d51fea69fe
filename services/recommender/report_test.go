package recommender

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookscout/lib/scrapers/goodreads"

	"github.com/stretchr/testify/require"
)

func reportFixture() Report {
	books := []goodreads.Book{
		{
			ID: "dune", Title: "Dune", Author: "frank-herbert",
			Series: "dune-saga", SeriesPos: 1, Year: 1965, Rating: 4.3,
			Genres: []string{"classics", "science-fiction"},
		},
		{ID: "bare-id-only"},
	}
	sizes := map[string]int{"dune-saga": 6}
	return Report{
		Sections: []Section{BookSection("space opera", books, sizes)},
		Stats:    LoadStats{Pages: 10, CacheHits: 4, FetchFailures: 2},
	}
}

func TestBookSectionRows(t *testing.T) {
	report := reportFixture()
	rows := report.Sections[0].Rows
	require.Len(t, rows, 2)

	require.Equal(t, "frank-herbert", rows[0].Author)
	require.Equal(t, "dune-saga (6) #1", rows[0].Series)
	require.Equal(t, "1965", rows[0].Year)
	require.Equal(t, "4.30", rows[0].Rating)
	require.Equal(t, "classics, science-fiction", rows[0].Genres)

	// a record that never got enriched still shows something
	require.Equal(t, "bare-id-only", rows[1].Title)
	require.Empty(t, rows[1].Year)
}

func TestEntrySectionCarriesScores(t *testing.T) {
	section := EntrySection("Raw", []RankedEntry{
		{Book: goodreads.Book{ID: "hyperion", Title: "Hyperion"}, Score: 2.45, Count: 2},
	}, nil)
	require.Equal(t, "2.5", section.Rows[0].Score)
}

func TestFormatSeries(t *testing.T) {
	sizes := map[string]int{"dune-saga": 6}
	require.Equal(t, "", formatSeries(goodreads.Book{}, sizes))
	require.Equal(t, "dune-saga (6)", formatSeries(goodreads.Book{Series: "dune-saga"}, sizes))
	require.Equal(
		t, "dune-saga (6) #2.5",
		formatSeries(goodreads.Book{Series: "dune-saga", SeriesPos: 2.5}, sizes),
	)
	// a series only one record knows about gets no length annotation
	require.Equal(t, "lonely", formatSeries(goodreads.Book{Series: "lonely"}, nil))
}

func TestRenderTables(t *testing.T) {
	var out strings.Builder
	reportFixture().RenderTables(&out)

	rendered := out.String()
	require.Contains(t, rendered, "space opera")
	require.Contains(t, rendered, "Dune")
	require.Contains(t, rendered, "dune-saga (6) #1")
	require.Contains(t, rendered, "2 pages skipped")
}

func TestAppendToAccumulates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	report := reportFixture()

	require.NoError(t, report.AppendTo(path))
	require.NoError(t, report.AppendTo(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(raw), "# space opera"))
	require.Equal(t, 2, strings.Count(string(raw), "Dune"))
}

func TestSummaryCountsSkips(t *testing.T) {
	summary := reportFixture().Summary()
	require.Contains(t, summary, "1 sections")
	require.Contains(t, summary, "2 rows")
	require.Contains(t, summary, "2 pages skipped")
}
