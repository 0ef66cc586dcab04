package api

import (
	"fmt"
	"strings"

	"github.com/Sruimeng/vestige/internal/capsule"
)

// HistoryContext is the payload of GET /api/context/history/{year}.
type HistoryContext struct {
	ID          string          `json:"id"`
	Year        int             `json:"year"`
	YearDisplay string          `json:"year_display"`
	Events      []capsule.Event `json:"events"`
	Symbols     []string        `json:"symbols"`
	Synthesis   string          `json:"synthesis"`
	Philosophy  string          `json:"philosophy"`
	CreatedAt   string          `json:"created_at"`
}

// Validate checks the response shape.
func (h *HistoryContext) Validate() error {
	if strings.TrimSpace(h.ID) == "" {
		return fmt.Errorf("id is required")
	}
	return capsule.ValidateEvents(capsule.KindHistory, h.Events)
}

// Capsule maps the context into history-shaped capsule data for year.
func (h *HistoryContext) Capsule(year int) capsule.Data {
	display := h.YearDisplay
	if display == "" {
		display = capsule.YearDisplay(year)
	}
	return capsule.Data{
		Kind:        capsule.KindHistory,
		ContextID:   h.ID,
		Year:        year,
		YearDisplay: display,
		Events:      h.Events,
		Symbols:     h.Symbols,
		Synthesis:   h.Synthesis,
		Philosophy:  h.Philosophy,
		GeneratedAt: h.CreatedAt,
	}
}

// FossilContext is the payload of the daily and fossil endpoints. Daily
// contexts carry a date; fossil contexts carry a year.
type FossilContext struct {
	ID                  string          `json:"id"`
	Date                string          `json:"date,omitempty"`
	Year                int             `json:"year,omitempty"`
	YearDisplay         string          `json:"year_display,omitempty"`
	Mode                capsule.Mode    `json:"mode"`
	Events              []capsule.Event `json:"events"`
	Symbols             []string        `json:"symbols"`
	Synthesis           string          `json:"synthesis"`
	Philosophy          string          `json:"philosophy"`
	ArchaeologistReport string          `json:"archaeologist_report,omitempty"`
	CreatedAt           string          `json:"created_at"`
}

// DailyContext is the payload of GET /api/context/daily.
type DailyContext = FossilContext

// Validate checks the response shape.
func (f *FossilContext) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if f.Mode != capsule.ModeHistory && f.Mode != capsule.ModeMisread {
		return fmt.Errorf("mode must be one of: history, misread")
	}
	return capsule.ValidateEvents(capsule.KindFossil, f.Events)
}

// Capsule maps the context into fossil-shaped capsule data for year.
func (f *FossilContext) Capsule(year int) capsule.Data {
	display := f.YearDisplay
	if display == "" {
		display = capsule.YearDisplay(year)
	}
	return capsule.Data{
		Kind:                capsule.KindFossil,
		Mode:                f.Mode,
		ContextID:           f.ID,
		Year:                year,
		YearDisplay:         display,
		Events:              f.Events,
		Symbols:             f.Symbols,
		Synthesis:           f.Synthesis,
		Philosophy:          f.Philosophy,
		ArchaeologistReport: f.ArchaeologistReport,
		GeneratedAt:         f.CreatedAt,
	}
}

// TaskStatus is the lifecycle state of a forge task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskProcessing, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Terminal reports whether polling can stop.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// ForgeCreateRequest is the body of POST /api/forge/create.
type ForgeCreateRequest struct {
	ContextID string `json:"context_id"`
	Modifier  string `json:"modifier,omitempty"`
	Style     string `json:"style,omitempty"`
}

// ForgeCreateResponse is the payload of POST /api/forge/create.
type ForgeCreateResponse struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
}

// Validate checks the response shape.
func (r *ForgeCreateResponse) Validate() error {
	if strings.TrimSpace(r.TaskID) == "" {
		return fmt.Errorf("task_id is required")
	}
	if r.Status != "" && !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	return nil
}

// ForgeStatusResponse is the payload of GET /api/forge/status/{task_id}.
type ForgeStatusResponse struct {
	TaskID          string     `json:"task_id"`
	Status          TaskStatus `json:"status"`
	ModelURL        string     `json:"model_url,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ProgressPercent int        `json:"progress_percent"`
}

// Validate checks the response shape.
func (r *ForgeStatusResponse) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.ProgressPercent < 0 || r.ProgressPercent > 100 {
		return fmt.Errorf("progress_percent %d out of range", r.ProgressPercent)
	}
	return nil
}

// ForgeAsset is one generation result attached to a context.
type ForgeAsset struct {
	TaskID    string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	ModelURL  string     `json:"model_url,omitempty"`
	CreatedAt string     `json:"created_at,omitempty"`
}

// ForgeAssetsResponse is the payload of GET /api/forge/assets.
type ForgeAssetsResponse struct {
	ContextID string       `json:"context_id"`
	Assets    []ForgeAsset `json:"assets"`
}

// Validate checks the response shape.
func (r *ForgeAssetsResponse) Validate() error {
	for i, a := range r.Assets {
		if !a.Status.Valid() {
			return fmt.Errorf("assets[%d]: unknown status %q", i, a.Status)
		}
	}
	return nil
}

// ReadyModelURL returns the model URL of the first completed asset that has one.
func (r *ForgeAssetsResponse) ReadyModelURL() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, a := range r.Assets {
		if a.Status == TaskCompleted && strings.TrimSpace(a.ModelURL) != "" {
			return a.ModelURL, true
		}
	}
	return "", false
}
