package render

import (
	"strconv"
	"strings"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/filter"
	"github.com/Sruimeng/vestige/internal/store"
)

// Subject is what the scene shows at its center.
type Subject string

const (
	SubjectNone        Subject = "none"
	SubjectHologram    Subject = "hologram"
	SubjectModel       Subject = "model"
	SubjectPlaceholder Subject = "placeholder"
)

// Scene is the subject decision plus the model to load, if any.
type Scene struct {
	Subject  Subject `json:"subject"`
	ModelURL string  `json:"model_url,omitempty"`
}

// SceneFor picks the subject: a hologram while constructing, the model once
// a capsule with a model URL is loading or materialized, a placeholder
// otherwise in those states.
func SceneFor(state store.SystemState, data *capsule.Data) Scene {
	switch state {
	case store.StateConstructing:
		return Scene{Subject: SubjectHologram}
	case store.StateLoadingModel, store.StateMaterialized:
		if data.HasModel() {
			return Scene{Subject: SubjectModel, ModelURL: data.ModelURL}
		}
		return Scene{Subject: SubjectPlaceholder}
	}
	return Scene{Subject: SubjectNone}
}

// HUDStatus is the indicator in the HUD corner.
type HUDStatus string

const (
	HUDNominal HUDStatus = "NOMINAL"
	HUDInit    HUDStatus = "INIT"
	HUDLoading HUDStatus = "LOADING"
	HUDReady   HUDStatus = "READY"
	HUDError   HUDStatus = "ERROR"
)

// StatusFor maps a system state to the HUD indicator.
func StatusFor(state store.SystemState) HUDStatus {
	switch state {
	case store.StateIdle:
		return HUDInit
	case store.StateScrolling, store.StateChecking, store.StateConstructing, store.StateLoadingModel:
		return HUDLoading
	case store.StateMaterialized:
		return HUDReady
	case store.StateError:
		return HUDError
	}
	return HUDNominal
}

// Panel is the side panel shown next to the scene.
type Panel string

const (
	PanelNone       Panel = "none"
	PanelIdle       Panel = "idle-prompt"
	PanelLogStream  Panel = "log-stream"
	PanelPhilosophy Panel = "philosophy"
	PanelError      Panel = "error"
)

// PanelFor picks the side panel.
func PanelFor(state store.SystemState, data *capsule.Data) Panel {
	switch state {
	case store.StateIdle:
		return PanelIdle
	case store.StateConstructing, store.StateLoadingModel:
		return PanelLogStream
	case store.StateMaterialized:
		if data != nil {
			return PanelPhilosophy
		}
	case store.StateError:
		return PanelError
	}
	return PanelNone
}

// RenderStateFor maps the acquisition state onto the coarser state the
// post-processing reducer keys on. LOADING_MODEL keeps the construction look.
func RenderStateFor(state store.SystemState) filter.RenderState {
	switch state {
	case store.StateScrolling:
		return filter.RenderScrolling
	case store.StateChecking:
		return filter.RenderChecking
	case store.StateConstructing, store.StateLoadingModel:
		return filter.RenderConstructing
	case store.StateMaterialized:
		return filter.RenderMaterialized
	case store.StateError:
		return filter.RenderError
	}
	return filter.RenderIdle
}

var logTemplates = []string{
	"> INIT_SYSTEM...",
	"> SCANNING_TEMPORAL_COORDINATES...",
	"> YEAR_LOCK_ACQUIRED: {year}",
	"> SEARCHING_CACHE... MISS",
	"> INIT_RECONSTRUCTION_PROTOCOL...",
	"> CONNECTING_TO_TEMPORAL_STREAM...",
	"> ANALYZING_HISTORICAL_DATA...",
	"> EXTRACTING_CULTURAL_SYMBOLS...",
	"> PROCESSING_EVENTS: {count}/5",
	"> GENERATING_SYNTHESIS...",
	"> CALLING_GEOMETRY_ENGINE...",
	"> MESH_GENERATION_IN_PROGRESS...",
	"> TEXTURE_SYNTHESIS_ACTIVE...",
	"> MATERIAL_PROPERTIES_CALCULATED...",
	"> FINALIZING_3D_MODEL...",
	"> UPLOADING_ARTIFACT...",
	"> VERIFICATION_COMPLETE",
	"> MATERIALIZATION_READY",
}

// LogLines returns the construction log revealed at progress. Lines appear
// in proportion to progress; all of them show at 100.
func LogLines(year, progress int) []string {
	progress = min(max(progress, 0), 100)
	n := progress * len(logTemplates) / 100
	count := strconv.Itoa(min(5, progress/20))
	r := strings.NewReplacer("{year}", strconv.Itoa(year), "{count}", count)

	out := make([]string, n)
	for i := range n {
		out[i] = r.Replace(logTemplates[i])
	}
	return out
}
