package timecapsule

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/store"
)

// SimulatedProgress is the synthetic ramp used while no server percentage
// is known: 5 at start, 95 once maxPoll has elapsed.
func SimulatedProgress(elapsed, maxPoll time.Duration) int {
	if maxPoll <= 0 {
		return 95
	}
	p := 5 + int(math.Round(float64(elapsed)/float64(maxPoll)*90))
	return min(max(p, 5), 95)
}

// simulation ticks synthetic progress until stopped.
type simulation struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (o *Orchestrator) startSimulation(ctx context.Context, epoch uint64) *simulation {
	s := &simulation{stop: make(chan struct{}), done: make(chan struct{})}
	ticker := o.opts.Clock.NewTicker(o.opts.ProgressTick)
	start := o.opts.Clock.Now()

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.Chan():
				elapsed := o.opts.Clock.Since(start)
				p := SimulatedProgress(elapsed, o.opts.MaxPoll)
				if !o.commit(epoch, func() { o.raiseProgressLocked(p) }) {
					return
				}
			}
		}
	}()
	return s
}

// Stop halts the ramp and waits for its goroutine. Safe to call repeatedly.
func (s *simulation) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// runMock simulates a generation without touching the network.
func (o *Orchestrator) runMock(ctx context.Context, epoch uint64, year int, source capsule.Source, log *zap.Logger) {
	if !o.commit(epoch, func() { o.store.SetState(store.StateConstructing) }) {
		return
	}

	steps := o.opts.MockSteps
	for i := 1; i <= steps; i++ {
		timer := o.opts.Clock.NewTimer(o.opts.MockStepDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug("mock cycle aborted")
			return
		case <-timer.Chan():
		}
		p := int(math.Round(float64(i) / float64(steps) * 100))
		if !o.commit(epoch, func() { o.raiseProgressLocked(p) }) {
			return
		}
	}

	mock := capsule.Mock(year, source != capsule.SourceHistory)
	if !o.commit(epoch, func() {
		o.store.SetCapsule(mock)
		o.store.SetState(store.StateMaterialized)
		o.store.SetProgress(100)
	}) {
		return
	}
	log.Info("mock capsule committed")
	o.record(mock, source, true, log)
}
