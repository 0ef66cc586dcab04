package capsule

// Summary is a compact view of Data for list output.
type Summary struct {
	Kind        Kind   `json:"kind"`
	Year        int    `json:"year"`
	YearDisplay string `json:"year_display"`
	Mode        Mode   `json:"mode,omitempty"`
	EventCount  int    `json:"event_count"`
	HasModel    bool   `json:"has_model"`
	Synthesis   string `json:"synthesis"`
}

// ToSummary strips the narrative payload from d.
func (d *Data) ToSummary() Summary {
	return Summary{
		Kind:        d.Kind,
		Year:        d.Year,
		YearDisplay: d.YearDisplay,
		Mode:        d.Mode,
		EventCount:  len(d.Events),
		HasModel:    d.HasModel(),
		Synthesis:   d.Synthesis,
	}
}
