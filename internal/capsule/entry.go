package capsule

// Entry is one archived capsule: a committed Data plus how it was obtained.
type Entry struct {
	ID   string `json:"id"`
	Year int    `json:"year"`
	Kind Kind   `json:"kind"`
	Mode Mode   `json:"mode,omitempty"`

	// Source is the context endpoint the cycle selected
	Source Source `json:"source"`

	// Fallback marks mock data substituted for a failed or mock-mode cycle
	Fallback bool `json:"fallback"`

	ModelURL  string `json:"model_url,omitempty"`
	Data      Data   `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// EntrySummary is an archive row without the narrative payload.
type EntrySummary struct {
	ID        string `json:"id"`
	Source    Source `json:"source"`
	Fallback  bool   `json:"fallback"`
	CreatedAt int64  `json:"created_at"`
	Summary
}

// NewEntry builds an archive entry for data. ID and CreatedAt are filled in
// by the caller.
func NewEntry(data Data, source Source, fallback bool) *Entry {
	return &Entry{
		Year:     data.Year,
		Kind:     data.Kind,
		Mode:     data.Mode,
		Source:   source,
		Fallback: fallback,
		ModelURL: data.ModelURL,
		Data:     data,
	}
}

// ToSummary returns the summary view of e.
func (e *Entry) ToSummary() EntrySummary {
	return EntrySummary{
		ID:        e.ID,
		Source:    e.Source,
		Fallback:  e.Fallback,
		CreatedAt: e.CreatedAt,
		Summary:   e.Data.ToSummary(),
	}
}
