package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────"

// FormatTimeline renders r as a text table.
func FormatTimeline(r *Report) string {
	if len(r.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s – %s UTC\n", formatDate(r.Summary.First), formatTime(r.Summary.Last))
	b.WriteString(separator + "\n")
	for _, e := range r.Entries {
		target := e.Target
		if target == "" {
			target = "-"
		}
		fmt.Fprintf(&b, "%-10s %-12s %-9s %-11s %s\n",
			formatTime(e.Timestamp), truncate(e.Surface, 12), e.Kind,
			strings.ToUpper(e.Decision), truncate(target, 40))
	}
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(r.Summary))
	return b.String()
}

// FormatJSON renders r as indented JSON.
func FormatJSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

func formatSummary(s Summary) string {
	keys := make([]string, 0, len(s.ByDecision))
	for k := range s.ByDecision {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByDecision[k], k))
	}
	return fmt.Sprintf("Summary: %d total | %s\n", s.Total, strings.Join(parts, ", "))
}

func formatDate(ts string) string {
	t, err := time.Parse(TimeFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTime(ts string) string {
	t, err := time.Parse(TimeFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
