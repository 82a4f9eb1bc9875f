package pipeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cinedata/filmset-cli/internal/model"
)

// The first feature film screening was in the 1890s; anything earlier is a
// data error. The upper bound moves with the clock.
const minFilmYear = 1890

var (
	imdbPattern       = regexp.MustCompile(`^tt\d+$`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// Common languages of Indian cinema, canonical casing.
	filmLanguages = []string{
		"Hindi", "Tamil", "Telugu", "Malayalam", "Kannada",
		"Bengali", "Marathi", "Punjabi", "Gujarati", "Assamese",
		"Odia", "Bhojpuri", "Urdu",
	}

	// languagePattern matches phrases like "a Hindi-language drama" in
	// summaries. Best-effort, not authoritative.
	languagePattern = regexp.MustCompile(`(?i)(` + strings.Join(filmLanguages, "|") + `)[\s-]language`)
)

// CleanRecords normalizes and enriches assembled records. It operates purely
// on already-assembled data: no API calls, input left unmodified. Duplicate
// titles are dropped keep-first and the result is sorted year-descending,
// title-ascending, rows without a year last, so repeated runs over the same
// inputs produce byte-identical output.
func CleanRecords(records []model.FilmRecord) []model.FilmRecord {
	out := make([]model.FilmRecord, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, r := range records {
		c := cleanRecord(r)
		if seen[c.Title] {
			continue
		}
		seen[c.Title] = true
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		yi, yj := out[i].Year, out[j].Year
		if yi != yj {
			if yi == 0 {
				return false
			}
			if yj == 0 {
				return true
			}
			return yi > yj
		}
		return out[i].Title < out[j].Title
	})

	return out
}

func cleanRecord(r model.FilmRecord) model.FilmRecord {
	r.Title = cleanText(r.Title)
	r.IMDBID = NormalizeIMDBID(r.IMDBID)
	r.Year = clampYear(r.Year)
	r.Summary = cleanSummary(r.Summary)
	r.People = NormalizePeople(r.People)

	if r.Year != 0 {
		r.Decade = r.Year / 10 * 10
	} else {
		r.Decade = 0
	}
	r.PeopleCount = len(r.People)
	r.HasSummary = r.Summary != ""
	r.Language = ExtractLanguage(r.Summary)

	return r
}

// NormalizeIMDBID coerces an IMDB identifier to the canonical "tt" + digits
// form. Bare numeric ids get the prefix; anything else unparseable is cleared
// rather than kept malformed.
func NormalizeIMDBID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if !strings.HasPrefix(id, "tt") {
		id = "tt" + id
	}
	if !imdbPattern.MatchString(id) {
		return ""
	}
	return id
}

// ParseYear interprets a textual year value. Out-of-range or unparseable
// values become 0 (rendered as an empty field), never an error.
func ParseYear(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		// Tolerate "1999.0" style values from earlier exports.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		y = int(f)
	}
	return clampYear(y)
}

func clampYear(y int) int {
	if y < minFilmYear || y > time.Now().Year() {
		return 0
	}
	return y
}

// NormalizePeople trims each name, removes empty entries and exact
// duplicates, and preserves first-seen order.
func NormalizePeople(people []string) []string {
	var out []string
	seen := make(map[string]bool, len(people))
	for _, p := range people {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ExtractLanguage searches the summary for a "<language>-language" phrase.
// Returns "" when no match.
func ExtractLanguage(summary string) string {
	m := languagePattern.FindStringSubmatch(summary)
	if m == nil {
		return ""
	}
	for _, lang := range filmLanguages {
		if strings.EqualFold(lang, m[1]) {
			return lang
		}
	}
	return m[1]
}

func cleanText(s string) string {
	s = strings.TrimSpace(s)
	return straightenQuotes(s)
}

func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = straightenQuotes(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return whitespacePattern.ReplaceAllString(s, " ")
}

func straightenQuotes(s string) string {
	replacer := strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
	return replacer.Replace(s)
}
