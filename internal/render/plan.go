package render

import (
	"context"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/filter"
	"github.com/Sruimeng/vestige/internal/store"
)

// Plan is everything a client needs to draw one frame of the page.
type Plan struct {
	Year        int                `json:"year"`
	YearDisplay string             `json:"year_display"`
	State       store.SystemState  `json:"system_state"`
	RenderState filter.RenderState `json:"render_state"`
	Progress    int                `json:"progress"`
	Error       string             `json:"error,omitempty"`

	Filter  filter.Info   `json:"filter"`
	Mode    Mode          `json:"mode"`
	Effects []Effect      `json:"effects"`
	Device  filter.Device `json:"device"`

	Scene   Scene         `json:"scene"`
	HUD     HUDStatus     `json:"hud"`
	Panel   Panel         `json:"panel"`
	Loading bool          `json:"loading"`
	Logs    []string      `json:"logs,omitempty"`
	Capsule *capsule.Data `json:"capsule,omitempty"`
}

// Build derives a Plan from a store snapshot and a filter snapshot.
func Build(snap store.Snapshot, fs filter.Snapshot) Plan {
	p := Plan{
		Year:        snap.Year,
		YearDisplay: capsule.YearDisplay(snap.Year),
		State:       snap.State,
		RenderState: RenderStateFor(snap.State),
		Progress:    snap.Progress,
		Error:       snap.Error,
		Filter:      filter.Get(fs.Filter),
		Mode:        ModeFor(fs.Filter),
		Effects:     Composer(fs.Config, fs.Device, fs.Filter),
		Device:      fs.Device,
		Scene:       SceneFor(snap.State, snap.Capsule),
		HUD:         StatusFor(snap.State),
		Panel:       PanelFor(snap.State, snap.Capsule),
		Loading:     snap.State.Busy(),
		Capsule:     snap.Capsule,
	}
	if p.Panel == PanelLogStream {
		p.Logs = LogLines(snap.Year, snap.Progress)
	}
	return p
}

// Follow keeps fc's rendering state in step with st until ctx is done.
func Follow(ctx context.Context, st *store.Store, fc *filter.Context) {
	for {
		changed := st.Watch()
		fc.SetSystemState(RenderStateFor(st.State()))
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}
