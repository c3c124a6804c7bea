package viewstate

import (
	"strings"

	"github.com/Joseda-hg/clutchdesk/internal/model"
)

// Criteria narrows what a view shows without another round trip.
type Criteria struct {
	Query  string
	Status string
}

// Empty reports whether c keeps every record.
func (c Criteria) Empty() bool {
	return strings.TrimSpace(c.Query) == "" && !c.hasStatus()
}

func (c Criteria) hasStatus() bool {
	status := strings.TrimSpace(c.Status)
	return status != "" && !strings.EqualFold(status, "all")
}

// Apply returns the records that match c, in their original order. The result
// never aliases items.
func Apply[T model.Record](items []T, c Criteria) []T {
	out := make([]T, 0, len(items))
	query := strings.ToLower(strings.TrimSpace(c.Query))
	for _, item := range items {
		if c.hasStatus() && !strings.EqualFold(item.StatusValue(), strings.TrimSpace(c.Status)) {
			continue
		}
		if query != "" && !matches(item, query) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matches(item model.Record, query string) bool {
	for _, field := range item.SearchFields() {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// CountByStatus tallies records per lowercase status.
func CountByStatus[T model.Record](items []T) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		counts[strings.ToLower(item.StatusValue())]++
	}
	return counts
}
