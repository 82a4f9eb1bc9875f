package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cinedata/filmset-cli/internal/model"
)

// reportColumns is the CSV column order, reused for the null breakdown.
var reportColumns = []string{
	"title", "imdb_id", "year", "summary", "people",
	"decade", "people_count", "has_summary", "language",
}

// BuildQualityReport computes dataset quality metrics over cleaned rows.
// It only reads the records; the data is never mutated.
func BuildQualityReport(group string, records []model.FilmRecord) model.QualityReport {
	r := model.QualityReport{
		Group:           group,
		TotalRows:       len(records),
		NullCounts:      make(map[string]int, len(reportColumns)),
		NullPercentages: make(map[string]float64, len(reportColumns)),
		DecadeHistogram: make(map[int]int),
	}

	for _, col := range reportColumns {
		r.NullCounts[col] = 0
	}

	titleCounts := make(map[string]int, len(records))
	for _, rec := range records {
		titleCounts[rec.Title]++

		if rec.Title == "" {
			r.NullCounts["title"]++
		}
		if rec.IMDBID == "" {
			r.NullCounts["imdb_id"]++
		}
		if rec.Year == 0 {
			r.NullCounts["year"]++
			r.NullCounts["decade"]++
		} else {
			if r.YearMin == 0 || rec.Year < r.YearMin {
				r.YearMin = rec.Year
			}
			if rec.Year > r.YearMax {
				r.YearMax = rec.Year
			}
			r.DecadeHistogram[rec.Decade]++
		}
		if rec.Summary == "" {
			r.NullCounts["summary"]++
		}
		if len(rec.People) == 0 {
			r.NullCounts["people"]++
		}
		if rec.Language == "" {
			r.NullCounts["language"]++
		}
		// people_count and has_summary are always derived, never null.
	}

	for _, n := range titleCounts {
		if n > 1 {
			r.DuplicateTitles += n - 1
		}
	}

	for col, n := range r.NullCounts {
		if len(records) == 0 {
			r.NullPercentages[col] = 0
			continue
		}
		pct := float64(n) / float64(len(records)) * 100
		r.NullPercentages[col] = math.Round(pct*10) / 10
	}

	return r
}

// FormatQualityReport renders a report as human-readable text.
func FormatQualityReport(r model.QualityReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Data Quality Report: %s\n\n", r.Group)
	fmt.Fprintf(&b, "Total rows: %d\n", r.TotalRows)
	fmt.Fprintf(&b, "Duplicate titles: %d\n", r.DuplicateTitles)
	if r.YearMin != 0 {
		fmt.Fprintf(&b, "Year range: %d-%d\n", r.YearMin, r.YearMax)
	} else {
		b.WriteString("Year range: n/a\n")
	}
	b.WriteString("\n## Null values per column\n")
	for _, col := range reportColumns {
		fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", col, r.NullCounts[col], r.NullPercentages[col])
	}

	b.WriteString("\n## Films per decade\n")
	decades := make([]int, 0, len(r.DecadeHistogram))
	for d := range r.DecadeHistogram {
		decades = append(decades, d)
	}
	sort.Ints(decades)
	if len(decades) == 0 {
		b.WriteString("No rows with a known year.\n")
	}
	for _, d := range decades {
		fmt.Fprintf(&b, "- %ds: %d\n", d, r.DecadeHistogram[d])
	}

	return b.String()
}
