package search

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Query represents parsed filters from a session filter string
type Query struct {
	Text       string    // free text matched against titles and messages
	AfterDate  time.Time // only sessions created after this date
	BeforeDate time.Time // only sessions created before this date
	HasAfter   bool
	HasBefore  bool
	OnlyLocal  bool // is:local, sessions the backend does not know yet
	OnlySynced bool // is:synced
}

// IsZero reports whether the query filters nothing
func (q Query) IsZero() bool {
	return q.Text == "" && !q.HasAfter && !q.HasBefore && !q.OnlyLocal && !q.OnlySynced
}

// ParseQuery extracts filters from a query string
// Supports:
//   - date:yesterday, date:2024-11-01 - sessions from that day on
//   - after:last-week, before:2024-11-01 - explicit date ranges
//   - is:local, is:synced
func ParseQuery(query string, now time.Time) Query {
	q := Query{}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	var textParts []string
	for _, token := range strings.Fields(query) {
		key, value, ok := strings.Cut(token, ":")
		if !ok || value == "" {
			textParts = append(textParts, token)
			continue
		}

		switch strings.ToLower(key) {
		case "date", "after":
			if parsed := parseDate(w, value, now); parsed != nil {
				q.AfterDate = *parsed
				q.HasAfter = true
			}
		case "before":
			if parsed := parseDate(w, value, now); parsed != nil {
				q.BeforeDate = *parsed
				q.HasBefore = true
			}
		case "is":
			switch strings.ToLower(value) {
			case "local":
				q.OnlyLocal = true
			case "synced":
				q.OnlySynced = true
			default:
				textParts = append(textParts, token)
			}
		default:
			textParts = append(textParts, token)
		}
	}

	q.Text = strings.Join(textParts, " ")
	return q
}

// parseDate tries fixed layouts first, then natural language. Dashes stand
// in for spaces in natural language tokens, e.g. "last-week".
func parseDate(w *when.Parser, dateStr string, now time.Time) *time.Time {
	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, dateStr, now.Location()); err == nil {
			return &t
		}
	}

	result, err := w.Parse(strings.ReplaceAll(dateStr, "-", " "), now)
	if err == nil && result != nil {
		return &result.Time
	}
	return nil
}
