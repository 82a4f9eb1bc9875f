package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinedata/filmset-cli/internal/model"
)

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{
		"title", "imdb_id", "year", "summary", "people",
		"decade", "people_count", "has_summary", "language",
	}, Columns())
}

func TestWriteCSV_HeaderAndEmptyCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "films.csv")

	err := WriteCSV(path, []model.FilmRecord{
		{Title: "Roja", IMDBID: "tt0105032", Year: 1992, Decade: 1990,
			People: []string{"Mani Ratnam", "Arvind Swamy"}, PeopleCount: 2,
			Summary: "Tamil-language film.", HasSummary: true, Language: "Tamil"},
		{Title: "Obscure Film"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Columns(), ","), lines[0])
	assert.Contains(t, lines[1], "Mani Ratnam; Arvind Swamy")

	// Unknown year and decade render as empty cells, not zeros.
	assert.Equal(t, "Obscure Film,,,,,,0,false,", lines[2])
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "films.csv")

	in := []model.FilmRecord{
		{Title: "Lagaan", IMDBID: "tt0169102", Year: 2001, Decade: 2000,
			Summary: "Hindi-language sports drama.", People: []string{"Ashutosh Gowariker"},
			PeopleCount: 1, HasSummary: true, Language: "Hindi"},
		{Title: "Unknown Film"},
	}
	require.NoError(t, WriteCSV(path, in))

	out, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Lagaan", out[0].Title)
	assert.Equal(t, "tt0169102", out[0].IMDBID)
	assert.Equal(t, 2001, out[0].Year)
	assert.Equal(t, "Hindi-language sports drama.", out[0].Summary)
	assert.Equal(t, []string{"Ashutosh Gowariker"}, NormalizePeople(out[0].People))

	assert.Equal(t, 0, out[1].Year)
	assert.Nil(t, out[1].People)
}

func TestWriteCSV_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "films.csv")
	require.NoError(t, WriteCSV(path, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "films.csv", entries[0].Name())
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Indian films by decade", "indian_films_by_decade"},
		{"Hindi-language films", "hindi_language_films"},
		{"  Films (2024)  ", "films_2024"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "input %q", tt.in)
	}
}

func TestOutputAndReportPaths(t *testing.T) {
	assert.Equal(t,
		filepath.Join("data", "processed", "indian_films_indian_horror_films.csv"),
		OutputPath(filepath.Join("data", "processed"), "Indian horror films"))
	assert.Equal(t,
		filepath.Join("data", "reports", "quality_report_indian_horror_films.txt"),
		ReportPath(filepath.Join("data", "reports"), "Indian horror films"))
}
