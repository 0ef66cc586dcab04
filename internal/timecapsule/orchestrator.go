// Package timecapsule drives the acquisition flow: debounced year input,
// context fetch, cached asset lookup, forge generation with polling, and
// the fallback to deterministic mock data.
package timecapsule

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/api"
	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/errors"
	"github.com/Sruimeng/vestige/internal/store"
)

// Orchestrator is the only writer of a Store.
//
// Every fetch cycle runs under an epoch. Starting a cycle, changing the year,
// resetting or closing bumps the epoch and cancels the previous cycle's
// context; store writes go through commit, which drops writes from any epoch
// but the current one.
type Orchestrator struct {
	store   *store.Store
	backend Backend
	opts    Options
	log     *zap.Logger

	mu          sync.Mutex
	epoch       uint64
	cancel      context.CancelFunc
	debounce    clockwork.Timer
	debounceSeq uint64
	closed      bool
	wg          sync.WaitGroup
}

// New creates an Orchestrator writing to st.
func New(st *store.Store, backend Backend, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		store:   st,
		backend: backend,
		opts:    opts,
		log:     opts.Logger,
	}
}

// Store returns the store this orchestrator writes.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// SetYear updates the displayed year immediately and schedules a fetch for it
// once no further SetYear call arrives within the debounce window. Any cycle
// in flight is cancelled right away.
func (o *Orchestrator) SetYear(year int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	o.abortLocked()
	o.store.SetYear(year)
	o.store.SetState(store.StateScrolling)

	o.stopDebounceLocked()
	seq := o.debounceSeq
	o.debounce = o.opts.Clock.AfterFunc(o.opts.Debounce, func() {
		o.fireDebounce(seq, year)
	})
}

func (o *Orchestrator) fireDebounce(seq uint64, year int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || seq != o.debounceSeq {
		return
	}
	o.debounce = nil
	o.startLocked(year)
}

// FetchCapsule displays year and starts a fetch cycle for it at once,
// superseding any pending debounce and any cycle in flight. The returned
// channel is closed when the cycle exits.
func (o *Orchestrator) FetchCapsule(year int) <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return closedChan()
	}
	o.stopDebounceLocked()
	o.store.SetYear(year)
	return o.startLocked(year)
}

// Retry re-runs the fetch for the displayed year.
func (o *Orchestrator) Retry() <-chan struct{} {
	return o.FetchCapsule(o.store.Year())
}

// Reset cancels all work and restores the initial store snapshot.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopDebounceLocked()
	o.abortLocked()
	o.store.Reset()
}

// Close cancels all work and waits for in-flight cycles to exit.
// The orchestrator ignores every call afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.stopDebounceLocked()
	o.abortLocked()
	o.mu.Unlock()
	o.wg.Wait()
}

// ModelLoaded is the renderer's signal that url finished loading.
func (o *Orchestrator) ModelLoaded(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.awaitingModelLocked(url) {
		return
	}
	o.store.SetState(store.StateMaterialized)
	o.store.SetProgress(100)
	o.log.Debug("model materialized", zap.String("model_url", url))
}

// ModelFailed is the renderer's signal that url could not be loaded.
// The capsule keeps its data and falls back to the placeholder subject.
func (o *Orchestrator) ModelFailed(url string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.awaitingModelLocked(url) {
		return
	}
	o.log.Warn("model load failed, using placeholder", zap.String("model_url", url), zap.Error(err))
	o.store.SetCapsule(o.store.Capsule().WithModelURL(""))
	o.store.SetState(store.StateMaterialized)
	o.store.SetProgress(100)
}

func (o *Orchestrator) awaitingModelLocked(url string) bool {
	if o.closed || o.store.State() != store.StateLoadingModel {
		return false
	}
	data := o.store.Capsule()
	return data != nil && data.ModelURL == url
}

// startLocked begins a new epoch for year. Validation failures commit ERROR
// synchronously and never touch the network.
func (o *Orchestrator) startLocked(year int) <-chan struct{} {
	ctx, epoch := o.supersedeLocked()

	if err := capsule.ValidateYear(year); err != nil {
		o.store.SetError(err.Error())
		o.store.SetState(store.StateError)
		o.log.Info("year rejected", zap.Int("year", year), zap.Error(err))
		return closedChan()
	}

	o.store.SetState(store.StateChecking)
	o.store.SetError("")
	o.store.SetProgress(0)

	done := make(chan struct{})
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(done)
		o.run(ctx, epoch, year)
	}()
	return done
}

// supersedeLocked cancels the current epoch and opens a new one.
func (o *Orchestrator) supersedeLocked() (context.Context, uint64) {
	if o.cancel != nil {
		o.cancel()
	}
	o.epoch++
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	return ctx, o.epoch
}

func (o *Orchestrator) abortLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.epoch++
}

func (o *Orchestrator) stopDebounceLocked() {
	if o.debounce != nil {
		o.debounce.Stop()
		o.debounce = nil
	}
	o.debounceSeq++
}

// commit applies fn to the store if epoch is still current.
func (o *Orchestrator) commit(epoch uint64, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || epoch != o.epoch {
		return false
	}
	fn()
	return true
}

// raiseProgressLocked keeps progress non-decreasing within a cycle.
func (o *Orchestrator) raiseProgressLocked(p int) {
	if p > o.store.Progress() {
		o.store.SetProgress(p)
	}
}

// run executes one cycle. It never returns an error: aborted cycles exit
// silently and failures become mock data or ERROR.
func (o *Orchestrator) run(ctx context.Context, epoch uint64, year int) {
	netYear := capsule.NormalizeYear(year)
	source := capsule.SelectSource(netYear, o.opts.Clock.Now(), o.opts.FutureSource)
	log := o.log.With(zap.Uint64("epoch", epoch), zap.Int("year", netYear), zap.String("source", string(source)))

	if o.opts.UseMock {
		o.runMock(ctx, epoch, netYear, source, log)
		return
	}

	log.Debug("fetch cycle started")
	data, err := o.acquire(ctx, epoch, netYear, source, log)
	if err != nil {
		o.fail(ctx, epoch, netYear, source, err, log)
		return
	}

	next := store.StateLoadingModel
	if !data.HasModel() {
		next = store.StateMaterialized
	}
	if !o.commit(epoch, func() {
		o.store.SetCapsule(data)
		o.store.SetState(next)
		o.store.SetProgress(100)
	}) {
		log.Debug("fetch cycle superseded before commit")
		return
	}
	log.Info("capsule committed", zap.String("state", string(next)), zap.Bool("has_model", data.HasModel()))
	o.record(data, source, false, log)
}

// acquire runs the network half of a cycle: context, cached assets, forge.
func (o *Orchestrator) acquire(ctx context.Context, epoch uint64, year int, source capsule.Source, log *zap.Logger) (capsule.Data, error) {
	fetched, err := o.backend.FetchContext(ctx, source, year)
	if err != nil {
		return capsule.Data{}, err
	}
	rules := o.backend.ModelURLs()

	assets, err := o.backend.ForgeAssets(ctx, fetched.ID)
	if err != nil {
		if errors.IsAborted(err) {
			return capsule.Data{}, err
		}
		log.Warn("asset lookup failed, generating instead", zap.Error(err))
	}
	if url, ok := assets.ReadyModelURL(); ok {
		log.Debug("cached asset found", zap.String("context_id", fetched.ID))
		return fetched.Data.WithModelURL(rules.Normalize(url)), nil
	}

	if !o.commit(epoch, func() {
		o.store.SetState(store.StateConstructing)
		o.raiseProgressLocked(5)
	}) {
		return capsule.Data{}, errors.NewAborted(context.Canceled)
	}

	sim := o.startSimulation(ctx, epoch)
	defer sim.Stop()

	task, err := o.backend.CreateForge(ctx, api.ForgeCreateRequest{
		ContextID: fetched.ID,
		Style:     o.opts.ForgeStyle,
	})
	if err != nil {
		return capsule.Data{}, err
	}

	status, err := o.backend.PollForge(ctx, task.TaskID, func(p int) {
		if p <= 0 {
			return
		}
		sim.Stop()
		o.commit(epoch, func() { o.raiseProgressLocked(p) })
	})
	if err != nil {
		return capsule.Data{}, err
	}
	log.Info("forge task completed", zap.String("task_id", task.TaskID))
	return fetched.Data.WithModelURL(rules.Normalize(status.ModelURL)), nil
}

// fail applies the failure policy.
func (o *Orchestrator) fail(ctx context.Context, epoch uint64, year int, source capsule.Source, err error, log *zap.Logger) {
	if errors.IsAborted(err) || ctx.Err() != nil {
		log.Debug("fetch cycle aborted")
		return
	}

	if o.opts.SurfaceErrors {
		if o.commit(epoch, func() {
			o.store.SetError(err.Error())
			o.store.SetState(store.StateError)
		}) {
			log.Warn("fetch cycle failed", zap.Error(err))
		}
		return
	}

	mock := capsule.Mock(year, source != capsule.SourceHistory)
	if !o.commit(epoch, func() {
		o.store.SetCapsule(mock)
		o.store.SetState(store.StateMaterialized)
		o.store.SetProgress(100)
	}) {
		return
	}
	log.Warn("fetch failed, falling back to mock data",
		zap.Error(err),
		zap.Bool("recoverable", errors.IsRecoverable(err)))
	o.record(mock, source, true, log)
}

func (o *Orchestrator) record(data capsule.Data, source capsule.Source, fallback bool, log *zap.Logger) {
	if o.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.opts.Recorder.RecordCapsule(ctx, data, source, fallback); err != nil {
		log.Warn("archive write failed", zap.Error(err))
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
