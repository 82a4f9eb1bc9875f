package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/cinedata/filmset-cli/internal/model"
)

// csvRow is the on-disk row layout. Numeric fields are strings so that
// unknown values render as empty cells instead of zeros.
type csvRow struct {
	Title       string `csv:"title"`
	IMDBID      string `csv:"imdb_id"`
	Year        string `csv:"year"`
	Summary     string `csv:"summary"`
	People      string `csv:"people"`
	Decade      string `csv:"decade"`
	PeopleCount int    `csv:"people_count"`
	HasSummary  bool   `csv:"has_summary"`
	Language    string `csv:"language"`
}

// WriteCSV writes records to path, creating parent directories. The write
// goes through a temp file and rename so a crashed run never leaves a
// truncated dataset behind.
func WriteCSV(path string, records []model.FilmRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "csv: create output dir")
	}

	rows := make([]csvRow, len(records))
	for i, r := range records {
		rows[i] = csvRow{
			Title:       r.Title,
			IMDBID:      r.IMDBID,
			Year:        formatInt(r.Year),
			Summary:     r.Summary,
			People:      strings.Join(r.People, "; "),
			Decade:      formatInt(r.Decade),
			PeopleCount: r.PeopleCount,
			HasSummary:  r.HasSummary,
			Language:    r.Language,
		}
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "csv: marshal rows")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "csv: write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "csv: rename into place")
	}
	return nil
}

// ReadCSV reads a previously written dataset back into records, coercing
// textual fields through the same normalization the clean stage applies.
func ReadCSV(path string) ([]model.FilmRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: read %s", path)
	}

	var rows []csvRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "csv: unmarshal %s", path)
	}

	records := make([]model.FilmRecord, len(rows))
	for i, row := range rows {
		var people []string
		if row.People != "" {
			people = strings.Split(row.People, ";")
		}
		records[i] = model.FilmRecord{
			Title:   row.Title,
			IMDBID:  row.IMDBID,
			Year:    ParseYear(row.Year),
			Summary: row.Summary,
			People:  people,
		}
	}
	return records, nil
}

// Columns returns the CSV header in output order.
func Columns() []string {
	header, err := csvutil.Header(csvRow{}, "csv")
	if err != nil {
		// The struct is static; this cannot fail at runtime.
		panic(err)
	}
	return header
}

var slugPattern = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Slugify converts a group name into a filename-friendly slug:
// "Indian films by decade" -> "indian_films_by_decade".
func Slugify(name string) string {
	s := slugPattern.ReplaceAllString(name, "_")
	return strings.ToLower(strings.Trim(s, "_"))
}

// OutputPath returns the dataset path for a group.
func OutputPath(outputDir, group string) string {
	return filepath.Join(outputDir, "indian_films_"+Slugify(group)+".csv")
}

// ReportPath returns the quality report path for a group.
func ReportPath(reportsDir, group string) string {
	return filepath.Join(reportsDir, "quality_report_"+Slugify(group)+".txt")
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
