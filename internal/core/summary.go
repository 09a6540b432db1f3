package core

import "math"

// StudentPercentage is round(present / (present + absent) * 100), 0 with no marked days.
func StudentPercentage(present, absent int) int {
	total := present + absent
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}

// StaffPercentage weights each marked day by its status and rounds to an integer.
func StaffPercentage(statuses []StaffStatus) int {
	if len(statuses) == 0 {
		return 0
	}
	var credit float64
	for _, s := range statuses {
		credit += s.Weight()
	}
	return int(math.Round(credit / float64(len(statuses)) * 100))
}

// ResultSummary aggregates marks for one student in one exam.
type ResultSummary struct {
	ExamID     string   `json:"examId"`
	Results    []Result `json:"results"`
	Total      float64  `json:"total"`
	MaxTotal   float64  `json:"maxTotal"`
	Percentage float64  `json:"percentage"`
}

// Summarize totals the results and computes a percentage rounded to two decimals.
func Summarize(examID string, results []Result) ResultSummary {
	out := ResultSummary{ExamID: examID, Results: results}
	for _, r := range results {
		out.Total += r.Marks
		out.MaxTotal += r.MaxMarks
	}
	if out.MaxTotal > 0 {
		out.Percentage = math.Round(out.Total/out.MaxTotal*10000) / 100
	}
	return out
}
