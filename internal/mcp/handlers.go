package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/config"
	"github.com/Sruimeng/vestige/internal/errors"
	"github.com/Sruimeng/vestige/internal/filter"
	"github.com/Sruimeng/vestige/internal/ops"
	"github.com/Sruimeng/vestige/internal/render"
	"github.com/Sruimeng/vestige/internal/store"
	"github.com/Sruimeng/vestige/internal/timecapsule"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps Deps
	log  *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handlers{deps: deps, log: deps.Logger}
}

// Request types for each tool

// FetchRequest represents the arguments for capsule_fetch.
type FetchRequest struct {
	Year   *int  `json:"year"`
	Record *bool `json:"record,omitempty"`
}

// FetchResult is the outcome of one acquisition cycle.
type FetchResult struct {
	Year        int                `json:"year"`
	YearDisplay string             `json:"year_display"`
	State       store.SystemState  `json:"system_state"`
	Error       string             `json:"error,omitempty"`
	Capsule     *capsule.Data      `json:"capsule,omitempty"`
	Summary     *capsule.Summary   `json:"summary,omitempty"`
	RenderState filter.RenderState `json:"render_state"`
}

// ArchiveRequest represents the arguments for capsule_archive.
type ArchiveRequest struct {
	Year     *int   `json:"year,omitempty"`
	Source   string `json:"source,omitempty"`
	Fallback *bool  `json:"fallback,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// EntryRequest represents the arguments for capsule_entry.
type EntryRequest struct {
	ID string `json:"id"`
}

// LatestRequest represents the arguments for capsule_latest.
type LatestRequest struct {
	Year        *int   `json:"year,omitempty"`
	Source      string `json:"source,omitempty"`
	IncludeData bool   `json:"include_data,omitempty"`
}

// PurgeRequest represents the arguments for capsule_purge.
type PurgeRequest struct {
	Year          *int `json:"year,omitempty"`
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// ExportRequest represents the arguments for capsule_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
	Year *int   `json:"year,omitempty"`
}

// FilterPlanRequest represents the arguments for filter_plan.
type FilterPlanRequest struct {
	Filter  string `json:"filter"`
	State   string `json:"state,omitempty"`
	Mobile  bool   `json:"mobile,omitempty"`
	GPUTier int    `json:"gpu_tier,omitempty"`
}

// FilterListItem is one catalogue row of filter_list.
type FilterListItem struct {
	filter.Info
	Mode render.Mode `json:"mode"`
}

// FilterPlanResult is the output of filter_plan.
type FilterPlanResult struct {
	Filter  filter.Info           `json:"filter"`
	Mode    render.Mode           `json:"mode"`
	Config  filter.PostProcessing `json:"config"`
	Device  filter.Device         `json:"device"`
	Effects []render.Effect       `json:"effects"`
}

// Tool handlers

// HandleFetch handles the capsule_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Year == nil {
		return errorResult(errors.NewInvalidRequest("year is required")), nil
	}
	if h.deps.Backend == nil && !h.deps.Config.UseMock {
		return errorResult(errors.NewInternal(stderrors.New("no backend configured"))), nil
	}

	opts := timecapsule.OptionsFromConfig(h.deps.Config)
	opts.Logger = h.log
	if h.deps.DB != nil && (input.Record == nil || *input.Record) {
		opts.Recorder = ops.NewArchive(h.deps.DB)
	}

	snap, err := timecapsule.FetchOnce(ctx, h.deps.Backend, opts, *input.Year)
	if err != nil {
		return errorResult(err), nil
	}

	result := FetchResult{
		Year:        snap.Year,
		YearDisplay: capsule.YearDisplay(snap.Year),
		State:       snap.State,
		Error:       snap.Error,
		Capsule:     snap.Capsule,
		RenderState: render.RenderStateFor(snap.State),
	}
	if snap.Capsule != nil {
		s := snap.Capsule.ToSummary()
		result.Summary = &s
	}
	if snap.State == store.StateError {
		if err := capsule.ValidateYear(*input.Year); err != nil {
			return errorResult(err), nil
		}
	}
	return successResult(result)
}

// HandleArchive handles the capsule_archive tool call.
func (h *Handlers) HandleArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ArchiveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.deps.DB, ops.ListInput{
		Scope:  ops.Scope{Year: input.Year, Source: input.Source, Fallback: input.Fallback},
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEntry handles the capsule_entry tool call.
func (h *Handlers) HandleEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.deps.DB, ops.FetchInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLatest handles the capsule_latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LatestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Latest(ctx, h.deps.DB, ops.LatestInput{
		Scope:       ops.Scope{Year: input.Year, Source: input.Source},
		IncludeData: input.IncludeData,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the capsule_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(ctx, h.deps.DB, ops.PurgeInput{
		Scope:         ops.Scope{Year: input.Year},
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the capsule_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.deps.DB, h.deps.BaseDir, ops.ExportInput{
		Scope: ops.Scope{Year: input.Year},
		Path:  input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFilterList handles the filter_list tool call.
func (h *Handlers) HandleFilterList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := filter.All()
	items := make([]FilterListItem, len(all))
	for i, info := range all {
		items[i] = FilterListItem{Info: info, Mode: render.ModeFor(info.ID)}
	}
	return successResult(map[string]any{"filters": items, "default": filter.Default})
}

// HandleFilterPlan handles the filter_plan tool call.
func (h *Handlers) HandleFilterPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FilterPlanRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id, err := filter.Parse(input.Filter)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	state := store.StateIdle
	if s := strings.TrimSpace(input.State); s != "" {
		state = store.SystemState(strings.ToUpper(s))
		if !state.Valid() {
			return errorResult(errors.NewInvalidRequest("unknown system state: " + s)), nil
		}
	}

	dev := filter.DefaultDevice
	dev.IsMobile = input.Mobile
	if input.GPUTier != 0 {
		if input.GPUTier < 1 || input.GPUTier > 3 {
			return errorResult(errors.NewInvalidRequest("gpu_tier must be 1, 2 or 3")), nil
		}
		dev.GPUTier = input.GPUTier
	}

	cfg := filter.Derive(render.RenderStateFor(state))
	return successResult(FilterPlanResult{
		Filter:  filter.Get(id),
		Mode:    render.ModeFor(id),
		Config:  cfg,
		Device:  dev,
		Effects: render.Composer(cfg, dev, id),
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var vErr *errors.VestigeError
	if stderrors.As(err, &vErr) {
		errorObj := map[string]any{
			"code":    vErr.Code,
			"message": vErr.Message,
			"status":  vErr.Status,
		}
		if vErr.Code != errors.ErrInternal && vErr.Details != nil {
			errorObj["details"] = vErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
