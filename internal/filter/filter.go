// Package filter narrows a fetched course list before enrichment.
package filter

import (
	"strings"
	"time"

	"github.com/Pavel4en/lms-api-app/internal/lms"
)

// Options describes one filter pass. Empty dimensions are no-ops; the
// present ones AND together.
type Options struct {
	StartDate   time.Time
	EndDate     time.Time
	CourseTypes []string
	CourseIDs   []string
}

// IsZero reports whether no dimension is set.
func (o Options) IsZero() bool {
	return o.StartDate.IsZero() && o.EndDate.IsZero() &&
		len(o.CourseTypes) == 0 && len(o.CourseIDs) == 0
}

// Apply returns the courses matching every set dimension. It never
// mutates its input and is idempotent.
func Apply(courses []lms.Course, opts Options) []lms.Course {
	if opts.IsZero() {
		return courses
	}

	wantTypes := make([]string, 0, len(opts.CourseTypes))
	for _, t := range opts.CourseTypes {
		wantTypes = append(wantTypes, strings.ToLower(strings.TrimSpace(t)))
	}

	wantIDs := make(map[string]bool, len(opts.CourseIDs))
	for _, id := range opts.CourseIDs {
		if id = strings.TrimSpace(id); id != "" {
			wantIDs[id] = true
		}
	}

	out := make([]lms.Course, 0, len(courses))
	for _, c := range courses {
		if !matchesDate(c, opts.StartDate, opts.EndDate) {
			continue
		}
		if len(wantTypes) > 0 && !matchesType(c, wantTypes) {
			continue
		}
		if len(wantIDs) > 0 && !wantIDs[strings.TrimSpace(c.ID.String())] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// matchesDate applies the inclusive date range. Courses without a
// parseable created_at pass the date dimension untouched.
func matchesDate(c lms.Course, start, end time.Time) bool {
	if c.CreatedAt == "" {
		return true
	}
	created, ok := parseDate(c.CreatedAt)
	if !ok {
		return true
	}
	if !start.IsZero() && created.Before(start) {
		return false
	}
	if !end.IsZero() && created.After(end) {
		return false
	}
	return true
}

// matchesType is an OR across the selected type names,
// case-insensitive on both sides.
func matchesType(c lms.Course, wantLower []string) bool {
	if len(c.Types) == 0 {
		return false
	}
	for _, ct := range c.Types {
		name := strings.ToLower(strings.TrimSpace(ct.Name))
		for _, want := range wantLower {
			if name == want {
				return true
			}
		}
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
