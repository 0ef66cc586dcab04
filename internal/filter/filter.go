// Package filter holds the style-filter catalogue, the post-processing
// configuration and its state reducer, device capability detection and the
// Context that ties them together.
package filter

import (
	"fmt"
	"strings"
)

// ID identifies a style filter.
type ID string

const (
	Default    ID = "default"
	Blueprint  ID = "blueprint"
	Halftone   ID = "halftone"
	ASCII      ID = "ascii"
	Pixel      ID = "pixel"
	Sketch     ID = "sketch"
	Glitch     ID = "glitch"
	Crystal    ID = "crystal"
	Claymation ID = "claymation"
)

// Category says where a filter applies its effect.
type Category string

const (
	// CategoryPost filters act on the composited frame.
	CategoryPost Category = "post"
	// CategoryMaterial filters replace the model surface.
	CategoryMaterial Category = "material"
	// CategoryHybrid filters replace the surface and swap the background.
	CategoryHybrid Category = "hybrid"
)

// Info describes one filter.
type Info struct {
	ID          ID       `json:"id"`
	Label       string   `json:"label"`
	Category    Category `json:"category"`
	Performance int      `json:"performance"` // 1 (cheap) to 3 (expensive)
}

var catalogue = []Info{
	{ID: Default, Label: "Default", Category: CategoryPost, Performance: 1},
	{ID: Blueprint, Label: "Engineering", Category: CategoryHybrid, Performance: 2},
	{ID: Halftone, Label: "Old Times", Category: CategoryPost, Performance: 1},
	{ID: ASCII, Label: "Hacker", Category: CategoryPost, Performance: 2},
	{ID: Pixel, Label: "Retro Pixel", Category: CategoryMaterial, Performance: 2},
	{ID: Sketch, Label: "Gallery", Category: CategoryHybrid, Performance: 2},
	{ID: Glitch, Label: "Cyber Glitch", Category: CategoryPost, Performance: 2},
	{ID: Crystal, Label: "Crystal Stand", Category: CategoryMaterial, Performance: 3},
	{ID: Claymation, Label: "Claymation", Category: CategoryMaterial, Performance: 2},
}

// All returns the catalogue in display order.
func All() []Info {
	out := make([]Info, len(catalogue))
	copy(out, catalogue)
	return out
}

// IDs returns every filter id in display order.
func IDs() []ID {
	out := make([]ID, len(catalogue))
	for i, f := range catalogue {
		out[i] = f.ID
	}
	return out
}

// Lookup returns the catalogue entry for id.
func Lookup(id ID) (Info, bool) {
	for _, f := range catalogue {
		if f.ID == id {
			return f, true
		}
	}
	return Info{}, false
}

// Get returns the entry for id, or the default filter for unknown ids.
func Get(id ID) Info {
	if f, ok := Lookup(id); ok {
		return f
	}
	return catalogue[0]
}

// Parse validates a filter id. Empty input yields Default.
func Parse(s string) (ID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	if _, ok := Lookup(ID(s)); !ok {
		return "", fmt.Errorf("unknown filter %q", s)
	}
	return ID(s), nil
}
