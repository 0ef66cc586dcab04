package ops

import (
	"strings"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/db"
	"github.com/Sruimeng/vestige/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Scope selects archive entries. Unset fields match everything.
type Scope struct {
	Year     *int
	Source   string
	Fallback *bool
}

// filter validates the scope and converts it to a db.Filter.
func (s Scope) filter() (db.Filter, error) {
	f := db.Filter{Year: s.Year, Fallback: s.Fallback}
	if s.Year != nil {
		if err := capsule.ValidateYear(*s.Year); err != nil {
			return db.Filter{}, err
		}
	}
	if src := strings.TrimSpace(s.Source); src != "" {
		source, err := ParseSource(src)
		if err != nil {
			return db.Filter{}, err
		}
		f.Source = source
	}
	return f, nil
}

// ParseSource accepts any of the three context sources.
func ParseSource(s string) (capsule.Source, error) {
	switch source := capsule.Source(strings.ToLower(strings.TrimSpace(s))); source {
	case capsule.SourceHistory, capsule.SourceDaily, capsule.SourceFossil:
		return source, nil
	}
	return "", errors.NewInvalidRequest("source must be one of: history, daily, fossil")
}
