package capsule

import (
	"fmt"
	"slices"
	"strings"
)

// historyCategories are the categories allowed for KindHistory events.
var historyCategories = []Category{
	CategoryPolitics,
	CategoryTechnology,
	CategoryCulture,
	CategoryEconomy,
	CategoryScience,
}

// fossilCategories extend historyCategories with the misread-only ones.
var fossilCategories = append(slices.Clone(historyCategories), CategoryRitual, CategoryUnknown)

// ValidCategory reports whether c is allowed for the given kind.
func ValidCategory(kind Kind, c Category) bool {
	if kind == KindFossil {
		return slices.Contains(fossilCategories, c)
	}
	return slices.Contains(historyCategories, c)
}

// ValidateEvents checks the event list invariant for kind: non-empty, every
// event titled, every category in the closed set.
func ValidateEvents(kind Kind, events []Event) error {
	if len(events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	for i, ev := range events {
		if strings.TrimSpace(ev.Title) == "" {
			return fmt.Errorf("events[%d].title is required", i)
		}
		if !ValidCategory(kind, ev.Category) {
			return fmt.Errorf("events[%d].category %q is not allowed for %s data", i, ev.Category, kind)
		}
	}
	return nil
}

// Validate checks the structural invariants of d.
func (d *Data) Validate() error {
	if d == nil {
		return fmt.Errorf("capsule data is nil")
	}
	switch d.Kind {
	case KindHistory:
		if d.Mode != "" {
			return fmt.Errorf("history data must not carry a mode")
		}
		if d.ArchaeologistReport != "" {
			return fmt.Errorf("history data must not carry an archaeologist report")
		}
	case KindFossil:
		if d.Mode != ModeHistory && d.Mode != ModeMisread {
			return fmt.Errorf("fossil mode must be one of: history, misread")
		}
	default:
		return fmt.Errorf("unknown capsule kind %q", d.Kind)
	}
	return ValidateEvents(d.Kind, d.Events)
}
