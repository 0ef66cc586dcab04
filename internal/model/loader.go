package model

import (
	"context"

	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/errors"
	"github.com/Sruimeng/vestige/internal/store"
)

// Signaler receives the outcome of a model load. The orchestrator
// implements it and ignores signals for URLs it is no longer waiting on.
type Signaler interface {
	ModelLoaded(url string)
	ModelFailed(url string, err error)
}

// Loader follows the store and acquires the model whenever the
// orchestrator enters LOADING_MODEL.
type Loader struct {
	store   *store.Store
	binding *Binding
	signal  Signaler
	log     *zap.Logger
}

// NewLoader creates a loader that binds models through r.
func NewLoader(st *store.Store, r *Resolver, sig Signaler, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: st, binding: NewBinding(r), signal: sig, log: logger}
}

// Current returns the handle of the model in view.
func (l *Loader) Current() Handle {
	return l.binding.Current()
}

// Run loads models until ctx is done, then releases the last one.
func (l *Loader) Run(ctx context.Context) {
	defer l.binding.Close()
	for {
		changed := l.store.Watch()
		l.sync(ctx)
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

func (l *Loader) sync(ctx context.Context) {
	snap := l.store.Snapshot()
	url := ""
	if snap.Capsule != nil {
		url = snap.Capsule.ModelURL
	}

	if url == "" {
		if l.binding.Current().Source != "" {
			l.binding.Clear()
		}
		return
	}
	if snap.State != store.StateLoadingModel {
		// A different capsule replaced the bound one outside a load.
		if cur := l.binding.Current(); cur.Source != "" && cur.Source != url {
			l.binding.Clear()
		}
		return
	}

	h, err := l.bind(ctx, url)
	if err != nil {
		if ctx.Err() != nil || errors.IsAborted(err) {
			return
		}
		l.signal.ModelFailed(url, err)
		return
	}
	l.log.Debug("model ready", zap.String("source", h.Source), zap.String("url", h.URL))
	l.signal.ModelLoaded(url)
}

// bind resolves url under a context that is cancelled as soon as the store
// stops waiting on url, so a superseded download does not hold up the loop.
func (l *Loader) bind(ctx context.Context, url string) (Handle, error) {
	bindCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.cancelOnChange(bindCtx, cancel, url)
	return l.binding.Bind(bindCtx, url)
}

func (l *Loader) cancelOnChange(ctx context.Context, cancel context.CancelFunc, url string) {
	for {
		changed := l.store.Watch()
		if !l.awaiting(url) {
			cancel()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

func (l *Loader) awaiting(url string) bool {
	snap := l.store.Snapshot()
	return snap.State == store.StateLoadingModel && snap.Capsule != nil && snap.Capsule.ModelURL == url
}
