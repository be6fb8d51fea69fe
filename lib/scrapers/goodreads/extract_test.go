package goodreads

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return raw
}

func TestExtractListPage(t *testing.T) {
	key := ListKey("50.Best_Cozy_Fantasy", 1)
	out, err := Extract(key, fixture(t, "list_page.html"))
	require.NoError(t, err)
	require.Empty(t, out.Reviewers)
	require.Len(t, out.Books, 2)

	require.Equal(t, "77203.Assassins_Apprentice", out.Books[0].ID)
	// the cover anchor has no text, the title anchor fills it in
	require.Equal(t, "Assassin's Apprentice (Farseer Trilogy, #1)", out.Books[0].Title)
	require.Equal(t, []string{"list/50.Best_Cozy_Fantasy/p1"}, out.Books[0].Sources)

	require.Equal(t, "53732.Dune", out.Books[1].ID)
	require.Equal(t, "Dune", out.Books[1].Title)
}

func TestExtractShelfPageSharesListShape(t *testing.T) {
	out, err := Extract(ShelfKey("cozy-fantasy", 1), fixture(t, "list_page.html"))
	require.NoError(t, err)
	require.Len(t, out.Books, 2)
	require.Equal(t, []string{"shelf/cozy-fantasy/p1"}, out.Books[0].Sources)
}

func TestExtractProfileRead(t *testing.T) {
	key := ProfileReadKey("1234", 1)
	out, err := Extract(key, fixture(t, "profile_read.html"))
	require.NoError(t, err)
	// the unrated row is skipped
	require.Len(t, out.Books, 2)

	require.Equal(t, "22733729-the-long-way-to-a-small-angry-planet", out.Books[0].ID)
	require.Equal(t, 5.0, out.Books[0].Rating)
	require.Equal(t, "53732.Dune", out.Books[1].ID)
	require.Equal(t, 3.0, out.Books[1].Rating)
}

func TestExtractPrivateProfileYieldsNothing(t *testing.T) {
	out, err := Extract(ProfileReadKey("1234", 1), fixture(t, "private_profile.html"))
	require.NoError(t, err)
	require.Empty(t, out.Books)
}

func TestExtractSignInPageIsAnError(t *testing.T) {
	_, err := Extract(ProfileReadKey("1234", 1), fixture(t, "sign_in.html"))
	var extractErr *ExtractError
	require.ErrorAs(t, err, &extractErr)
	require.Equal(t, "not signed in", extractErr.Reason)
}

func TestExtractBookPage(t *testing.T) {
	key := BookKey("77203.Assassins_Apprentice")
	out, err := Extract(key, fixture(t, "book_page.html"))
	require.NoError(t, err)
	require.Len(t, out.Books, 1)

	book := out.Books[0]
	require.Equal(t, "77203.Assassins_Apprentice", book.ID)
	require.Equal(t, "Assassin's Apprentice", book.Title)
	require.Equal(t, "25307.Robin_Hobb", book.Author)
	require.Equal(t, "40910-farseer-trilogy", book.Series)
	require.Equal(t, 1.0, book.SeriesPos)
	require.Equal(t, 1995, book.Year)
	require.Equal(t, 4.17, book.Rating)
	// duplicated genre slugs collapse
	require.Equal(t, []string{"fantasy", "epic-fantasy"}, book.Genres)
	require.True(t, book.Audiobook)

	// only reviewers with >= 4 stars count, sorted for determinism
	require.Equal(t, []string{"777001", "777003"}, out.Reviewers)
}

func TestExtractBookPageDeterministic(t *testing.T) {
	raw := fixture(t, "book_page.html")
	key := BookKey("77203.Assassins_Apprentice")
	first, err := Extract(key, raw)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Extract(key, raw)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestExtractBookPageWithoutNextData(t *testing.T) {
	_, err := Extract(BookKey("77203.X"), []byte("<html><body><p>maintenance</p></body></html>"))
	var extractErr *ExtractError
	require.True(t, errors.As(err, &extractErr))
	require.Equal(t, "missing __NEXT_DATA__ blob", extractErr.Reason)
}

func TestExtractSeriesPage(t *testing.T) {
	key := SeriesKey("40910-farseer-trilogy")
	out, err := Extract(key, fixture(t, "series_page.html"))
	require.NoError(t, err)
	// the "Book 1-3" box set row is excluded
	require.Len(t, out.Books, 3)

	require.Equal(t, "77203.Assassins_Apprentice", out.Books[0].ID)
	require.Equal(t, "40910-farseer-trilogy", out.Books[0].Series)
	require.Equal(t, 1.0, out.Books[0].SeriesPos)
	require.Equal(t, 2.5, out.Books[2].SeriesPos)
}

func TestExtractUnknownKind(t *testing.T) {
	_, err := Extract(SourceKey{Kind: "mystery", ID: "x"}, []byte("<html></html>"))
	var extractErr *ExtractError
	require.ErrorAs(t, err, &extractErr)
}

func TestBookIDFromHref(t *testing.T) {
	require.Equal(t,
		"77203.Assassins_Apprentice",
		bookIDFromHref("/book/show/77203.Assassins_Apprentice?from_search=true#cover"),
	)
	require.Equal(t,
		"53732.Dune",
		bookIDFromHref("https://www.goodreads.com/book/show/53732.Dune"),
	)
	require.Equal(t, "", bookIDFromHref("/author/show/25307.Robin_Hobb"))
	require.Equal(t, "", bookIDFromHref(""))
}
