package probe

import (
	"fmt"
	"strconv"
	"time"
)

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// Table returns a header row followed by one row per level
func (r *Report) Table() [][]string {
	rows := [][]string{{"Level", "Result", "Detail", "Time"}}
	for _, o := range r.Outcomes {
		detail := o.Detail
		if o.Err != "" {
			detail = "error: " + o.Err
		}
		rows = append(rows, []string{strconv.Itoa(o.Level), mark(o.Passed), detail, o.Duration.Round(time.Millisecond).String()})
	}
	return rows
}

// Summary is a one-line description of the limit found
func (r *Report) Summary() string {
	if r.Passed() {
		return fmt.Sprintf("%s: passed every level (max %d)", r.Axis, r.MaxLevel)
	}
	return fmt.Sprintf("%s: limit %d (failed at %d)", r.Axis, r.MaxLevel, r.StoppedAt)
}

// Table returns a header row followed by one row per recall question
func (r *RecallReport) Table() [][]string {
	rows := [][]string{{"Step", "Result", "Expected", "Question"}}
	for _, res := range r.Results {
		rows = append(rows, []string{strconv.Itoa(res.Step), mark(res.Recalled), res.Expected, res.Question})
	}
	return rows
}

// Summary is a one-line recall score
func (r *RecallReport) Summary() string {
	return fmt.Sprintf("history retention: %d/%d recalls successful (%.0f%%)", r.Recalled, r.Total, r.Rate()*100)
}
