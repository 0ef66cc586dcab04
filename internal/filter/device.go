package filter

import (
	"regexp"
	"strings"
)

var (
	mobileUA   = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
	lowTierGPU = regexp.MustCompile(`(?i)Intel|Mali|Adreno 3|Adreno 4`)
	midTierGPU = regexp.MustCompile(`(?i)Adreno 5|Adreno 6|Apple`)
)

// GPU tiers.
const (
	lowestTier  = 1
	defaultTier = 2
	highestTier = 3
)

// Device is the detected rendering capability of a client.
type Device struct {
	IsMobile bool `json:"is_mobile"`
	GPUTier  int  `json:"gpu_tier"`
}

// DefaultDevice applies until detection has run.
var DefaultDevice = Device{IsMobile: false, GPUTier: defaultTier}

// Probe is what a client reports about itself.
type Probe struct {
	UserAgent string

	// WebGL is false when the client has no WebGL context at all
	WebGL bool

	// Renderer is the unmasked renderer string; empty when unavailable
	Renderer string
}

// DetectMobile sniffs a user-agent string.
func DetectMobile(userAgent string) bool {
	return mobileUA.MatchString(userAgent)
}

// DetectGPUTier maps a renderer string to a tier in {1, 2, 3}.
func DetectGPUTier(webgl bool, renderer string) int {
	if !webgl {
		return lowestTier
	}
	renderer = strings.TrimSpace(renderer)
	switch {
	case renderer == "":
		return defaultTier
	case lowTierGPU.MatchString(renderer):
		return lowestTier
	case midTierGPU.MatchString(renderer):
		return defaultTier
	}
	return highestTier
}

// Detect derives a Device from a probe.
func Detect(p Probe) Device {
	return Device{
		IsMobile: DetectMobile(p.UserAgent),
		GPUTier:  DetectGPUTier(p.WebGL, p.Renderer),
	}
}
