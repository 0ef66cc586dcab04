package timecapsule

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/api"
	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/config"
)

// Backend is the subset of the HTTP client the orchestrator drives.
// *api.Client satisfies it.
type Backend interface {
	FetchContext(ctx context.Context, source capsule.Source, year int) (*api.Context, error)
	ForgeAssets(ctx context.Context, contextID string) (*api.ForgeAssetsResponse, error)
	CreateForge(ctx context.Context, req api.ForgeCreateRequest) (*api.ForgeCreateResponse, error)
	PollForge(ctx context.Context, taskID string, onProgress func(percent int)) (*api.ForgeStatusResponse, error)
	ModelURLs() api.ModelURLRules
}

// Recorder persists committed capsules. Failures are logged, never surfaced.
type Recorder interface {
	RecordCapsule(ctx context.Context, data capsule.Data, source capsule.Source, fallback bool) error
}

// Options tunes an Orchestrator. Zero values take the defaults below.
type Options struct {
	// Debounce is the quiet period after the last SetYear (default 500ms)
	Debounce time.Duration

	// ProgressTick is the synthetic progress interval (default 1s)
	ProgressTick time.Duration

	// MaxPoll is the span the synthetic ramp covers from 5 to 95 (default 300s)
	MaxPoll time.Duration

	// UseMock skips the network and simulates MockSteps steps of MockStepDelay
	UseMock       bool
	MockSteps     int
	MockStepDelay time.Duration

	// SurfaceErrors sends failures to ERROR instead of mock data
	SurfaceErrors bool

	// FutureSource serves years at or after the current year (default daily)
	FutureSource capsule.Source

	// ForgeStyle is forwarded to forge create
	ForgeStyle string

	Clock    clockwork.Clock
	Logger   *zap.Logger
	Recorder Recorder
}

// OptionsFromConfig maps application configuration into Options.
func OptionsFromConfig(cfg *config.Config) Options {
	future, err := capsule.ParseSource(cfg.FutureSource)
	if err != nil {
		future = capsule.SourceDaily
	}
	return Options{
		Debounce:      cfg.Debounce(),
		MaxPoll:       cfg.MaxPollDuration(),
		UseMock:       cfg.UseMock,
		SurfaceErrors: cfg.SurfaceErrors,
		FutureSource:  future,
		ForgeStyle:    cfg.ForgeStyle,
	}
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.ProgressTick <= 0 {
		o.ProgressTick = time.Second
	}
	if o.MaxPoll <= 0 {
		o.MaxPoll = 300 * time.Second
	}
	if o.MockSteps <= 0 {
		o.MockSteps = 20
	}
	if o.MockStepDelay <= 0 {
		o.MockStepDelay = 150 * time.Millisecond
	}
	if o.FutureSource == "" {
		o.FutureSource = capsule.SourceDaily
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
