package capsule

// Kind tags which shape a Data value carries. It is resolved once, when a
// backend response or mock is mapped into Data, and never re-sniffed.
type Kind string

const (
	// KindHistory is the shape produced by the history context source.
	KindHistory Kind = "history"
	// KindFossil is the shape produced by the daily and fossil sources.
	KindFossil Kind = "fossil"
)

// Mode is the narrative variant of fossil-shaped data.
type Mode string

const (
	ModeHistory Mode = "history"
	ModeMisread Mode = "misread"
)

// Category classifies a single event.
type Category string

const (
	CategoryPolitics   Category = "politics"
	CategoryTechnology Category = "technology"
	CategoryCulture    Category = "culture"
	CategoryEconomy    Category = "economy"
	CategoryScience    Category = "science"

	// Fossil-only categories.
	CategoryRitual  Category = "ritual"
	CategoryUnknown Category = "unknown"
)

// Event is one entry of a capsule's event list.
type Event struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

// Data is the unified, render-ready capsule payload.
// It is replaced wholesale on every commit and never mutated in place.
type Data struct {
	// Kind is the explicit variant tag
	Kind Kind `json:"kind"`

	// ContextID is the backend context this capsule was built from (empty for mocks)
	ContextID string `json:"context_id,omitempty"`

	Year        int      `json:"year"`
	YearDisplay string   `json:"year_display"`
	Events      []Event  `json:"events"`
	Symbols     []string `json:"symbols"`
	Synthesis   string   `json:"synthesis"`
	Philosophy  string   `json:"philosophy"`

	// ModelURL is the resolved 3D asset URL; empty means the placeholder subject
	ModelURL string `json:"model_url"`

	// GeneratedAt is an RFC 3339 timestamp supplied by the backend
	GeneratedAt string `json:"generated_at"`

	// Mode is set for KindFossil only
	Mode Mode `json:"mode,omitempty"`

	// ArchaeologistReport is an optional misread-mode narrative
	ArchaeologistReport string `json:"archaeologist_report,omitempty"`
}

// IsFossil reports whether d carries the fossil shape.
func (d *Data) IsFossil() bool {
	return d != nil && d.Kind == KindFossil
}

// IsMisread reports whether d is fossil data framed as a misreading.
func (d *Data) IsMisread() bool {
	return d.IsFossil() && d.Mode == ModeMisread
}

// HasModel reports whether d points at a real 3D asset.
func (d *Data) HasModel() bool {
	return d != nil && d.ModelURL != ""
}

// WithModelURL returns a copy of d with its model URL replaced.
func (d Data) WithModelURL(url string) Data {
	d.Events = append([]Event(nil), d.Events...)
	d.Symbols = append([]string(nil), d.Symbols...)
	d.ModelURL = url
	return d
}
