package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/errors"
	"github.com/Sruimeng/vestige/internal/filter"
	"github.com/Sruimeng/vestige/internal/ops"
	"github.com/Sruimeng/vestige/internal/render"
	"github.com/Sruimeng/vestige/internal/store"
)

// Handlers contains HTTP route handlers for the HUD.
type Handlers struct {
	deps     Deps
	renderer *Renderer
	log      *zap.Logger
}

// HandleCapsule handles GET / and renders whatever the store holds.
func (h *Handlers) HandleCapsule(w http.ResponseWriter, r *http.Request) {
	h.detect(r)
	plan := h.plan()
	h.renderer.renderPage(w, "capsule", CapsulePageData{
		PageData: PageData{
			Title:   plan.YearDisplay,
			Version: h.renderer.version,
			Nav:     "capsule",
		},
		Plan:       plan,
		Filters:    filter.All(),
		Philosophy: renderMarkdown(philosophyOf(plan.Capsule)),
		Report:     renderMarkdown(reportOf(plan.Capsule)),
		YearMin:    capsule.YearMin,
		YearMax:    capsule.YearMax,
	})
}

// HandleYear handles GET /{year}. A year other than the displayed one, or
// any year while idle, starts a fetch before the page renders.
func (h *Handlers) HandleYear(w http.ResponseWriter, r *http.Request) {
	year, ok := capsule.ParseYear(r.PathValue("year"))
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(r.URL.Path))
		return
	}

	snap := h.deps.Orchestrator.Store().Snapshot()
	if snap.Year != year || snap.State == store.StateIdle {
		h.deps.Orchestrator.FetchCapsule(year)
	}
	h.HandleCapsule(w, r)
}

// HandleState handles GET /api/state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	h.detect(r)
	renderJSON(w, http.StatusOK, h.plan())
}

type setYearRequest struct {
	Year      *int `json:"year"`
	Immediate bool `json:"immediate"`
}

// HandleSetYear handles POST /api/year. JSON bodies follow the debounced
// path unless immediate is set; HTML form posts fetch at once and redirect
// back to the page.
func (h *Handlers) HandleSetYear(w http.ResponseWriter, r *http.Request) {
	if isJSONBody(r) {
		var req setYearRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
			return
		}
		if req.Year == nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("year is required"))
			return
		}
		if req.Immediate {
			h.deps.Orchestrator.FetchCapsule(*req.Year)
		} else {
			h.deps.Orchestrator.SetYear(*req.Year)
		}
		renderJSON(w, http.StatusAccepted, h.plan())
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("year must be an integer"))
		return
	}
	h.deps.Orchestrator.FetchCapsule(year)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleRetry handles POST /api/retry.
func (h *Handlers) HandleRetry(w http.ResponseWriter, r *http.Request) {
	h.deps.Orchestrator.Retry()
	h.respondPlan(w, r)
}

// HandleReset handles POST /api/reset.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.deps.Orchestrator.Reset()
	h.respondPlan(w, r)
}

// FiltersResponse is the body of GET /api/filters.
type FiltersResponse struct {
	Filters  []filter.Info   `json:"filters"`
	Selected filter.Snapshot `json:"selected"`
}

// HandleFilters handles GET /api/filters.
func (h *Handlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, FiltersResponse{
		Filters:  filter.All(),
		Selected: h.deps.Filters.Snapshot(),
	})
}

type setFilterRequest struct {
	Filter string        `json:"filter"`
	Config *filter.Patch `json:"config"`
}

// HandleSetFilter handles POST /api/filter. Either field may be omitted.
func (h *Handlers) HandleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req setFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
		return
	}

	if req.Filter != "" {
		id, err := filter.Parse(req.Filter)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest(err.Error()))
			return
		}
		h.deps.Filters.SetFilter(id)
	}
	if req.Config != nil {
		h.deps.Filters.SetConfig(*req.Config)
	}

	renderJSON(w, http.StatusOK, h.plan())
}

// HandleArchiveJSON handles GET /api/archive.
func (h *Handlers) HandleArchiveJSON(w http.ResponseWriter, r *http.Request) {
	input, err := listInput(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.List(r.Context(), h.deps.DB, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleArchive handles GET /archive.
func (h *Handlers) HandleArchive(w http.ResponseWriter, r *http.Request) {
	input, err := listInput(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.List(r.Context(), h.deps.DB, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	p := result.Pagination
	data := ArchivePageData{
		PageData: PageData{
			Title:   "Archives",
			Version: h.renderer.version,
			Nav:     "archive",
		},
		Items:      result.Items,
		Pagination: p,
	}
	if p.Offset > 0 {
		data.PrevURL = pageURL(r, max(p.Offset-p.Limit, 0), p.Limit)
	}
	if p.HasMore {
		data.NextURL = pageURL(r, p.Offset+p.Limit, p.Limit)
	}
	h.renderer.renderPage(w, "archive", data)
}

// HandleEntry handles GET /archive/{id}.
func (h *Handlers) HandleEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("archive ID is required"))
		return
	}

	entry, err := ops.Fetch(r.Context(), h.deps.DB, ops.FetchInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, entry)
		return
	}

	h.renderer.renderPage(w, "entry", EntryPageData{
		PageData: PageData{
			Title:   entry.Data.YearDisplay,
			Version: h.renderer.version,
			Nav:     "archive",
		},
		Entry:      entry,
		Philosophy: renderMarkdown(entry.Data.Philosophy),
		Report:     renderMarkdown(entry.Data.ArchaeologistReport),
	})
}

// HandleBlob handles GET /blobs/{id}, serving a downloaded model.
func (h *Handlers) HandleBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.deps.Registry == nil {
		h.renderer.renderError(w, r, errors.NewNotFound(id))
		return
	}
	blob, ok := h.deps.Registry.Get(id)
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(id))
		return
	}

	ct := blob.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

// plan snapshots the store and filter context into a render plan. A model
// the loader has bound is served through its local handle.
func (h *Handlers) plan() render.Plan {
	p := render.Build(h.deps.Orchestrator.Store().Snapshot(), h.deps.Filters.Snapshot())
	if h.deps.Loader != nil && p.Scene.ModelURL != "" {
		if cur := h.deps.Loader.Current(); cur.Source == p.Scene.ModelURL {
			p.Scene.ModelURL = cur.URL
		}
	}
	return p
}

// detect runs device detection on the first request that reaches it.
func (h *Handlers) detect(r *http.Request) {
	probe := filter.Probe{
		UserAgent: r.UserAgent(),
		WebGL:     r.Header.Get("X-WebGL") != "false",
		Renderer:  r.Header.Get("X-GPU-Renderer"),
	}
	if h.deps.Filters.Detect(probe) {
		h.log.Debug("device detected", zap.Any("device", h.deps.Filters.Snapshot().Device))
	}
}

// respondPlan answers a control POST: JSON for API clients, a redirect to
// the page for form posts.
func (h *Handlers) respondPlan(w http.ResponseWriter, r *http.Request) {
	if isJSONBody(r) || strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, h.plan())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// listInput parses archive query parameters.
func listInput(r *http.Request) (ops.ListInput, error) {
	q := r.URL.Query()
	input := ops.ListInput{
		Scope:  ops.Scope{Source: q.Get("source")},
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}
	if s := q.Get("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			return input, errors.NewInvalidRequest("year must be an integer")
		}
		input.Year = &year
	}
	if s := q.Get("fallback"); s != "" {
		b := parseBoolParam(r, "fallback")
		input.Fallback = &b
	}
	return input, nil
}

// pageURL rebuilds the request URL with a new offset and limit.
func pageURL(r *http.Request, offset, limit int) string {
	q := url.Values{}
	for k, v := range r.URL.Query() {
		q[k] = v
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return fmt.Sprintf("%s?%s", r.URL.Path, q.Encode())
}

func philosophyOf(d *capsule.Data) string {
	if d == nil {
		return ""
	}
	return d.Philosophy
}

func reportOf(d *capsule.Data) string {
	if d == nil {
		return ""
	}
	return d.ArchaeologistReport
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
