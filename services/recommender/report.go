package recommender

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bookscout/lib/scrapers/goodreads"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Row is one rendered book line.
type Row struct {
	Author string
	Title  string
	Series string
	Year   string
	Rating string
	Genres string
	Score  string
}

// Section is one titled block of rows ("Cozy sci-fi", "Raw", "Filtered").
type Section struct {
	Title string
	Rows  []Row
}

// Report is everything a run wants to show, renderable as terminal
// tables and appendable to a plain-text file.
type Report struct {
	Sections []Section
	Stats    LoadStats
}

// BookSection builds a section from sorted records, list-mode style.
func BookSection(title string, books []goodreads.Book, seriesSizes map[string]int) Section {
	section := Section{Title: title}
	for _, b := range books {
		section.Rows = append(section.Rows, rowFromBook(b, seriesSizes))
	}
	return section
}

// EntrySection builds a section from ranked entries, keeping score
// order and carrying the score into its own column.
func EntrySection(title string, entries []RankedEntry, seriesSizes map[string]int) Section {
	section := Section{Title: title}
	for _, entry := range entries {
		row := rowFromBook(entry.Book, seriesSizes)
		row.Score = fmt.Sprintf("%.1f", entry.Score)
		section.Rows = append(section.Rows, row)
	}
	return section
}

func rowFromBook(b goodreads.Book, seriesSizes map[string]int) Row {
	row := Row{
		Author: b.Author,
		Title:  b.Title,
		Series: formatSeries(b, seriesSizes),
		Genres: strings.Join(b.Genres, ", "),
	}
	if row.Title == "" {
		row.Title = b.ID
	}
	if b.Year != 0 {
		row.Year = strconv.Itoa(b.Year)
	}
	if b.Rating != 0 {
		row.Rating = fmt.Sprintf("%.2f", b.Rating)
	}
	return row
}

// formatSeries renders "slug (length) #position", dropping whatever
// parts are unknown.
func formatSeries(b goodreads.Book, seriesSizes map[string]int) string {
	if b.Series == "" {
		return ""
	}
	s := b.Series
	if size := seriesSizes[b.Series]; size > 1 {
		s += fmt.Sprintf(" (%d)", size)
	}
	if b.SeriesPos != 0 {
		s += " #" + strconv.FormatFloat(b.SeriesPos, 'f', -1, 64)
	}
	return s
}

// RenderTables writes every section to w as a rounded table.
func (r Report) RenderTables(w io.Writer) {
	for _, section := range r.Sections {
		hasScore := false
		for _, row := range section.Rows {
			if row.Score != "" {
				hasScore = true
				break
			}
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(w)
		t.SetTitle(section.Title)

		header := table.Row{"Author", "Title", "Series", "Year", "Rating", "Genres"}
		if hasScore {
			header = append(header, "Score")
		}
		t.AppendHeader(header)

		for _, row := range section.Rows {
			cells := table.Row{row.Author, row.Title, row.Series, row.Year, row.Rating, row.Genres}
			if hasScore {
				cells = append(cells, row.Score)
			}
			t.AppendRow(cells)
		}
		t.Render()
	}
	fmt.Fprintln(w, r.Summary())
}

// AppendTo appends the report to path as plain aligned text, one block
// per section. Callers emitting several reports in one run get one
// growing file.
func (r Report) AppendTo(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open report file: %w", err)
	}
	defer f.Close()

	for _, section := range r.Sections {
		fmt.Fprintf(f, "# %s\n\n", section.Title)
		for _, row := range section.Rows {
			fmt.Fprintf(
				f,
				"%-30s%-50s%-40s%-6s%-8s%s\n",
				row.Author, row.Title, row.Series, row.Year, row.Rating, row.Genres,
			)
		}
		fmt.Fprintln(f)
	}
	return nil
}

// Summary is the run's one-line epilogue. The skipped count matters:
// it is the only visible sign that a shrunken report is shrunken.
func (r Report) Summary() string {
	rows := 0
	for _, section := range r.Sections {
		rows += len(section.Rows)
	}
	return fmt.Sprintf(
		"%d sections, %d rows, %d pages loaded (%d from cache), %d pages skipped",
		len(r.Sections), rows, r.Stats.Pages, r.Stats.CacheHits, r.Stats.Skipped(),
	)
}
