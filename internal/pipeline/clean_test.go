package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cinedata/filmset-cli/internal/model"
)

func TestNormalizeIMDBID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tt0102853", "tt0102853"},
		{"0102853", "tt0102853"},
		{" tt0102853 ", "tt0102853"},
		{"", ""},
		{"   ", ""},
		{"nm0102853", ""},
		{"tt", ""},
		{"ttabc", ""},
		{"tt102853x", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeIMDBID(tt.in), "input %q", tt.in)
	}
}

func TestParseYear(t *testing.T) {
	thisYear := time.Now().Year()

	tests := []struct {
		in   string
		want int
	}{
		{"1999", 1999},
		{"1999.0", 1999},
		{" 2003 ", 2003},
		{"1890", 1890},
		{"1889", 0},
		{"99", 0},
		{fmt.Sprintf("%d", thisYear), thisYear},
		{fmt.Sprintf("%d", thisYear+1), 0},
		{"", 0},
		{"unknown", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseYear(tt.in), "input %q", tt.in)
	}
}

func TestNormalizePeople(t *testing.T) {
	in := []string{" Mani Ratnam ", "A. R. Rahman", "", "Mani Ratnam", "  "}
	assert.Equal(t, []string{"Mani Ratnam", "A. R. Rahman"}, NormalizePeople(in))

	assert.Nil(t, NormalizePeople(nil))
	assert.Nil(t, NormalizePeople([]string{"", "  "}))
}

func TestExtractLanguage(t *testing.T) {
	tests := []struct {
		summary string
		want    string
	}{
		{"Roja is a 1992 Indian Tamil-language romantic thriller film.", "Tamil"},
		{"a hindi-language drama", "Hindi"},
		{"a Malayalam language film", "Malayalam"},
		{"an Indian film with no stated tongue", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractLanguage(tt.summary), "summary %q", tt.summary)
	}
}

func TestCleanRecords_DerivedFields(t *testing.T) {
	out := CleanRecords([]model.FilmRecord{{
		Title:   "  Roja ",
		IMDBID:  "0105032",
		Year:    1992,
		Summary: "Roja is a 1992 Indian\nTamil-language   film.\n",
		People:  []string{"Mani Ratnam", " Mani Ratnam", "Arvind Swamy"},
	}})

	if assert.Len(t, out, 1) {
		r := out[0]
		assert.Equal(t, "Roja", r.Title)
		assert.Equal(t, "tt0105032", r.IMDBID)
		assert.Equal(t, 1992, r.Year)
		assert.Equal(t, 1990, r.Decade)
		assert.Equal(t, "Roja is a 1992 Indian Tamil-language film.", r.Summary)
		assert.Equal(t, []string{"Mani Ratnam", "Arvind Swamy"}, r.People)
		assert.Equal(t, 2, r.PeopleCount)
		assert.True(t, r.HasSummary)
		assert.Equal(t, "Tamil", r.Language)
	}
}

func TestCleanRecords_MissingYearClearsDecade(t *testing.T) {
	out := CleanRecords([]model.FilmRecord{{Title: "Unknown Film", Year: 1650}})

	if assert.Len(t, out, 1) {
		assert.Equal(t, 0, out[0].Year)
		assert.Equal(t, 0, out[0].Decade)
		assert.False(t, out[0].HasSummary)
		assert.Equal(t, 0, out[0].PeopleCount)
	}
}

func TestCleanRecords_DedupeKeepsFirst(t *testing.T) {
	out := CleanRecords([]model.FilmRecord{
		{Title: "Sholay", Year: 1975, Summary: "first"},
		{Title: "Sholay", Year: 1975, Summary: "second"},
	})

	if assert.Len(t, out, 1) {
		assert.Equal(t, "first", out[0].Summary)
	}
}

func TestCleanRecords_SortOrder(t *testing.T) {
	out := CleanRecords([]model.FilmRecord{
		{Title: "B Film", Year: 1990},
		{Title: "No Year Film"},
		{Title: "A Film", Year: 1990},
		{Title: "Newer Film", Year: 2005},
	})

	titles := make([]string, len(out))
	for i, r := range out {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"Newer Film", "A Film", "B Film", "No Year Film"}, titles)
}

func TestCleanRecords_Deterministic(t *testing.T) {
	in := []model.FilmRecord{
		{Title: "Lagaan", Year: 2001, People: []string{"Ashutosh Gowariker"}},
		{Title: "Dil Se..", Year: 1998},
		{Title: "Swades", Year: 2004},
	}
	first := CleanRecords(in)
	second := CleanRecords(in)
	assert.Equal(t, first, second)
}

func TestCleanSummary_StraightensQuotes(t *testing.T) {
	got := cleanSummary("“Pather Panchali” is Ray’s debut.")
	assert.Equal(t, `"Pather Panchali" is Ray's debut.`, got)
}
