package filter

// RenderState is the rendering-side coarse state the reducer keys on.
type RenderState string

const (
	RenderIdle         RenderState = "IDLE"
	RenderScrolling    RenderState = "SCROLLING"
	RenderChecking     RenderState = "CHECKING"
	RenderConstructing RenderState = "CONSTRUCTING"
	RenderMaterialized RenderState = "MATERIALIZED"
	RenderError        RenderState = "ERROR"
)

// RenderStates lists every RenderState.
var RenderStates = []RenderState{
	RenderIdle,
	RenderScrolling,
	RenderChecking,
	RenderConstructing,
	RenderMaterialized,
	RenderError,
}

// Vignette darkens the frame edges.
type Vignette struct {
	Enabled  bool    `json:"enabled"`
	Offset   float64 `json:"offset"`
	Darkness float64 `json:"darkness"`
}

// Scanline overlays horizontal CRT lines.
type Scanline struct {
	Enabled bool    `json:"enabled"`
	Density float64 `json:"density"`
}

// Bloom makes bright areas glow.
type Bloom struct {
	Enabled   bool    `json:"enabled"`
	Intensity float64 `json:"intensity"`
	Threshold float64 `json:"threshold"`
	Radius    float64 `json:"radius"`
}

// ChromaticAberration splits the color channels by Offset.
type ChromaticAberration struct {
	Enabled bool       `json:"enabled"`
	Offset  [2]float64 `json:"offset"`
}

// Noise adds film grain.
type Noise struct {
	Enabled bool    `json:"enabled"`
	Opacity float64 `json:"opacity"`
}

// PostProcessing is the set of baseline effect toggles. It is a plain value;
// copies never share state.
type PostProcessing struct {
	Vignette            Vignette            `json:"vignette"`
	Scanline            Scanline            `json:"scanline"`
	Bloom               Bloom               `json:"bloom"`
	ChromaticAberration ChromaticAberration `json:"chromatic_aberration"`
	Noise               Noise               `json:"noise"`
}

// DefaultPostProcessing returns the baseline configuration.
func DefaultPostProcessing() PostProcessing {
	return PostProcessing{
		Vignette:            Vignette{Enabled: true, Offset: 0.3, Darkness: 0.6},
		Scanline:            Scanline{Enabled: true, Density: 2.0},
		Bloom:               Bloom{Enabled: false, Intensity: 0.8, Threshold: 0.6, Radius: 0.5},
		ChromaticAberration: ChromaticAberration{Enabled: false, Offset: [2]float64{0.003, 0.003}},
		Noise:               Noise{Enabled: true, Opacity: 0.05},
	}
}

// Derive computes the configuration for state from the defaults.
// SCROLLING densifies scanlines, CONSTRUCTING forces a soft bloom and ERROR
// forces chromatic aberration. Every other state yields the defaults.
func Derive(state RenderState) PostProcessing {
	cfg := DefaultPostProcessing()
	switch state {
	case RenderScrolling:
		cfg.Scanline.Density += 0.5
	case RenderConstructing:
		cfg.Bloom.Enabled = true
		cfg.Bloom.Intensity = 0.5
	case RenderError:
		cfg.ChromaticAberration.Enabled = true
	}
	return cfg
}

// Patch replaces whole effect groups; nil fields are left alone.
type Patch struct {
	Vignette            *Vignette            `json:"vignette,omitempty"`
	Scanline            *Scanline            `json:"scanline,omitempty"`
	Bloom               *Bloom               `json:"bloom,omitempty"`
	ChromaticAberration *ChromaticAberration `json:"chromatic_aberration,omitempty"`
	Noise               *Noise               `json:"noise,omitempty"`
}

// Apply shallow-merges p into c.
func (c PostProcessing) Apply(p Patch) PostProcessing {
	if p.Vignette != nil {
		c.Vignette = *p.Vignette
	}
	if p.Scanline != nil {
		c.Scanline = *p.Scanline
	}
	if p.Bloom != nil {
		c.Bloom = *p.Bloom
	}
	if p.ChromaticAberration != nil {
		c.ChromaticAberration = *p.ChromaticAberration
	}
	if p.Noise != nil {
		c.Noise = *p.Noise
	}
	return c
}
