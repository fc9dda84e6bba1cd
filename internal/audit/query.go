package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	Surface string
	Kind    string
	From    time.Time
	To      time.Time
}

func (f Filter) match(e AuditEntry) bool {
	if f.Surface != "" && e.Surface != f.Surface {
		return false
	}
	if f.Kind != "" && !strings.EqualFold(e.Kind, f.Kind) {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimeFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

// Summary counts decisions in a report.
type Summary struct {
	Total      int            `json:"total"`
	ByDecision map[string]int `json:"by_decision"`
	First      string         `json:"first,omitempty"`
	Last       string         `json:"last,omitempty"`
}

// Report holds the entries matching a filter.
type Report struct {
	Entries []AuditEntry `json:"entries"`
	Summary Summary      `json:"summary"`
}

// Query reads the log at path and returns the entries matching f.
// Malformed lines are skipped.
func Query(path string, f Filter) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	r := &Report{Summary: Summary{ByDecision: map[string]int{}}}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !f.match(e) {
			continue
		}
		r.Entries = append(r.Entries, e)
		r.Summary.Total++
		r.Summary.ByDecision[e.Decision]++
		if r.Summary.First == "" {
			r.Summary.First = e.Timestamp
		}
		r.Summary.Last = e.Timestamp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return r, nil
}
