// Package render decides what to draw. It turns the selected filter, the
// post-processing config, the device and the capsule store into a plan;
// drawing the plan is left to whatever client consumes it.
package render

import "github.com/Sruimeng/vestige/internal/filter"

// Background is the scene backdrop.
type Background string

const (
	BackgroundStarfield  Background = "starfield"
	BackgroundGrid       Background = "blueprint-grid"
	BackgroundNewspaper  Background = "newspaper"
	BackgroundMatrixRain Background = "matrix-rain"
	BackgroundSketchbook Background = "sketchbook"
)

// Material replaces the model surface. MaterialNone keeps the model's own.
type Material string

const (
	MaterialNone       Material = ""
	MaterialBlueprint  Material = "blueprint"
	MaterialHalftone   Material = "halftone"
	MaterialASCII      Material = "ascii"
	MaterialPixel      Material = "pixel"
	MaterialSketch     Material = "sketch"
	MaterialCrystal    Material = "crystal"
	MaterialClaymation Material = "claymation"
)

// EffectKind names a post-processing pass.
type EffectKind string

const (
	EffectVignette      EffectKind = "vignette"
	EffectScanline      EffectKind = "scanline"
	EffectBloom         EffectKind = "bloom"
	EffectChromatic     EffectKind = "chromatic-aberration"
	EffectNoise         EffectKind = "noise"
	EffectBlueprintEdge EffectKind = "blueprint-edge"
	EffectGlitchBloom   EffectKind = "glitch-bloom"
	EffectCyberGlitch   EffectKind = "cyber-glitch"
)

// Effect is one pass of the composer.
type Effect struct {
	Kind   EffectKind         `json:"kind"`
	Params map[string]float64 `json:"params,omitempty"`
	Color  string             `json:"color,omitempty"`
}

// Mode is the rendering decision for one filter.
type Mode struct {
	Background Background `json:"background"`
	Material   Material   `json:"material,omitempty"`

	// Outline adds the sketch outline pass over the model
	Outline bool `json:"outline,omitempty"`

	// Extra passes run after the baseline composer
	Extra []Effect `json:"extra,omitempty"`
}

const edgeCyan = "#00FFFF"

// ModeFor returns the rendering mode for a filter. Unknown ids render as
// the default filter.
func ModeFor(id filter.ID) Mode {
	switch id {
	case filter.Blueprint:
		return Mode{
			Background: BackgroundGrid,
			Material:   MaterialBlueprint,
			Extra: []Effect{{
				Kind:   EffectBlueprintEdge,
				Color:  edgeCyan,
				Params: map[string]float64{"threshold": 0.08, "edge_width": 1.2},
			}},
		}
	case filter.Halftone:
		return Mode{Background: BackgroundNewspaper, Material: MaterialHalftone}
	case filter.ASCII:
		return Mode{Background: BackgroundMatrixRain, Material: MaterialASCII}
	case filter.Pixel:
		return Mode{Background: BackgroundStarfield, Material: MaterialPixel}
	case filter.Sketch:
		return Mode{Background: BackgroundSketchbook, Material: MaterialSketch, Outline: true}
	case filter.Glitch:
		return Mode{
			Background: BackgroundStarfield,
			Extra: []Effect{
				{Kind: EffectGlitchBloom, Params: map[string]float64{"intensity": 1.2, "threshold": 0.4}},
				{Kind: EffectCyberGlitch, Params: map[string]float64{"strength": 0.6}},
			},
		}
	case filter.Crystal:
		return Mode{Background: BackgroundStarfield, Material: MaterialCrystal}
	case filter.Claymation:
		return Mode{Background: BackgroundStarfield, Material: MaterialClaymation}
	}
	return Mode{Background: BackgroundStarfield}
}

// Baseline returns the enabled baseline passes for cfg. Mobile devices skip
// scanline and bloom.
func Baseline(cfg filter.PostProcessing, dev filter.Device) []Effect {
	var out []Effect
	if cfg.Vignette.Enabled {
		out = append(out, Effect{Kind: EffectVignette, Params: map[string]float64{
			"offset":   cfg.Vignette.Offset,
			"darkness": cfg.Vignette.Darkness,
		}})
	}
	if cfg.Scanline.Enabled && !dev.IsMobile {
		out = append(out, Effect{Kind: EffectScanline, Params: map[string]float64{
			"density": cfg.Scanline.Density,
		}})
	}
	if cfg.Bloom.Enabled && !dev.IsMobile {
		out = append(out, Effect{Kind: EffectBloom, Params: map[string]float64{
			"intensity": cfg.Bloom.Intensity,
			"threshold": cfg.Bloom.Threshold,
			"radius":    cfg.Bloom.Radius,
		}})
	}
	if cfg.ChromaticAberration.Enabled {
		out = append(out, Effect{Kind: EffectChromatic, Params: map[string]float64{
			"offset_x": cfg.ChromaticAberration.Offset[0],
			"offset_y": cfg.ChromaticAberration.Offset[1],
		}})
	}
	if cfg.Noise.Enabled {
		out = append(out, Effect{Kind: EffectNoise, Params: map[string]float64{
			"opacity": cfg.Noise.Opacity,
		}})
	}
	return out
}

// Composer returns the full pass list: baseline first, then the filter's
// extra passes.
func Composer(cfg filter.PostProcessing, dev filter.Device, id filter.ID) []Effect {
	return append(Baseline(cfg, dev), ModeFor(id).Extra...)
}
