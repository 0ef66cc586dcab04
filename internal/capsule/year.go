package capsule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/Sruimeng/vestige/internal/errors"
)

// Year bounds, inclusive.
const (
	YearMin = -500
	YearMax = 2100

	// DefaultYear is the store's initial year.
	DefaultYear = 2026
)

// yearSegmentRegex matches a URL path segment carrying a year.
var yearSegmentRegex = regexp.MustCompile(`^-?\d+$`)

// ValidateYear checks the year range. Year zero is accepted here; it is
// remapped by NormalizeYear before any network call.
func ValidateYear(year int) error {
	if year < YearMin || year > YearMax {
		return errors.NewInvalidYear(year, YearMin, YearMax)
	}
	return nil
}

// NormalizeYear maps year zero, which does not exist historically, to 1.
func NormalizeYear(year int) int {
	if year == 0 {
		return 1
	}
	return year
}

// ParseYear parses a URL path segment into a year.
// Returns false for non-numeric input, out-of-range years and year zero.
func ParseYear(segment string) (int, bool) {
	if !yearSegmentRegex.MatchString(segment) {
		return 0, false
	}
	year, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	if year == 0 || ValidateYear(year) != nil {
		return 0, false
	}
	return year, true
}

// Source identifies which context endpoint serves a year.
type Source string

const (
	SourceHistory Source = "history"
	SourceDaily   Source = "daily"
	SourceFossil  Source = "fossil"
)

// SelectSource picks the context source for year at wall-clock time now.
// Years at or after the current calendar year use future; earlier years use
// history. future is SourceDaily unless configured otherwise.
func SelectSource(year int, now time.Time, future Source) Source {
	if year >= now.Year() {
		if future == "" {
			return SourceDaily
		}
		return future
	}
	return SourceHistory
}

// ParseSource validates a configured future source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceDaily, SourceFossil:
		return Source(s), nil
	case "":
		return SourceDaily, nil
	}
	return "", fmt.Errorf("future source must be one of: daily, fossil")
}

// YearDisplay formats a year as "500 BCE" or "1969 CE".
func YearDisplay(year int) string {
	if year < 0 {
		return fmt.Sprintf("%d BCE", -year)
	}
	return fmt.Sprintf("%d CE", year)
}
