package model

// QualityReport captures dataset quality metrics for one group's cleaned rows.
// Building a report never mutates the rows it describes.
type QualityReport struct {
	Group           string             `json:"group"`
	TotalRows       int                `json:"total_rows"`
	NullCounts      map[string]int     `json:"null_counts"`
	NullPercentages map[string]float64 `json:"null_percentages"`
	DuplicateTitles int                `json:"duplicate_titles"`
	YearMin         int                `json:"year_min"`
	YearMax         int                `json:"year_max"`
	DecadeHistogram map[int]int        `json:"decade_histogram"`
}
