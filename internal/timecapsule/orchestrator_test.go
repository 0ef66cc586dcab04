package timecapsule

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Sruimeng/vestige/internal/api"
	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/errors"
	"github.com/Sruimeng/vestige/internal/store"
)

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

type contextCall struct {
	source capsule.Source
	year   int
}

// fakeBackend answers every call from overridable hooks and records calls.
type fakeBackend struct {
	mu      sync.Mutex
	calls   []contextCall
	creates int
	polls   int

	fetch  func(ctx context.Context, source capsule.Source, year int) (*api.Context, error)
	assets func(ctx context.Context, contextID string) (*api.ForgeAssetsResponse, error)
	create func(ctx context.Context, req api.ForgeCreateRequest) (*api.ForgeCreateResponse, error)
	poll   func(ctx context.Context, taskID string, onProgress func(int)) (*api.ForgeStatusResponse, error)
	rules  api.ModelURLRules
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rules: api.ModelURLRules{
			BaseURL:    "https://api.example",
			ProxyHosts: []string{"tripo3d.com"},
		},
	}
}

func realData(source capsule.Source, year int) capsule.Data {
	d := capsule.Mock(year, source != capsule.SourceHistory)
	d.ContextID = fmt.Sprintf("ctx-%d", year)
	d.Synthesis = "from backend"
	d.GeneratedAt = "2025-01-01T00:00:00Z"
	return d
}

func (f *fakeBackend) FetchContext(ctx context.Context, source capsule.Source, year int) (*api.Context, error) {
	f.mu.Lock()
	f.calls = append(f.calls, contextCall{source: source, year: year})
	hook := f.fetch
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, source, year)
	}
	d := realData(source, year)
	return &api.Context{ID: d.ContextID, Source: source, Data: d}, nil
}

func (f *fakeBackend) ForgeAssets(ctx context.Context, contextID string) (*api.ForgeAssetsResponse, error) {
	if f.assets != nil {
		return f.assets(ctx, contextID)
	}
	return &api.ForgeAssetsResponse{ContextID: contextID}, nil
}

func (f *fakeBackend) CreateForge(ctx context.Context, req api.ForgeCreateRequest) (*api.ForgeCreateResponse, error) {
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()
	if f.create != nil {
		return f.create(ctx, req)
	}
	return &api.ForgeCreateResponse{TaskID: "task-" + req.ContextID, Status: api.TaskPending}, nil
}

func (f *fakeBackend) PollForge(ctx context.Context, taskID string, onProgress func(int)) (*api.ForgeStatusResponse, error) {
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()
	if f.poll != nil {
		return f.poll(ctx, taskID, onProgress)
	}
	return &api.ForgeStatusResponse{TaskID: taskID, Status: api.TaskCompleted, ModelURL: "https://cdn.example/" + taskID + ".glb"}, nil
}

func (f *fakeBackend) ModelURLs() api.ModelURLRules {
	return f.rules
}

func (f *fakeBackend) contextCalls() []contextCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contextCall(nil), f.calls...)
}

func (f *fakeBackend) counts() (creates, polls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.polls
}

type fakeRecorder struct {
	mu       sync.Mutex
	records  []capsule.Data
	fallback []bool
}

func (r *fakeRecorder) RecordCapsule(_ context.Context, data capsule.Data, _ capsule.Source, fallback bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, data)
	r.fallback = append(r.fallback, fallback)
	return nil
}

func newTestOrchestrator(t *testing.T, backend Backend, opts Options) (*Orchestrator, *store.Store, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(testNow)
	opts.Clock = fc
	st := store.New()
	o := New(st, backend, opts)
	t.Cleanup(o.Close)
	return o, st, fc
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch cycle did not finish")
	}
}

func waitForState(t *testing.T, st *store.Store, want store.SystemState) store.Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		ch := st.Watch()
		snap := st.Snapshot()
		if snap.State == want {
			return snap
		}
		select {
		case <-ch:
		case <-deadline:
			t.Fatalf("state = %s, want %s", snap.State, want)
		}
	}
}

func TestFetchCapsule_YearValidation(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	o, st, _ := newTestOrchestrator(t, backend, Options{})

	for _, year := range []int{-501, 2101, 10000} {
		waitDone(t, o.FetchCapsule(year))
		snap := st.Snapshot()
		assert.Equal(t, store.StateError, snap.State, "year %d", year)
		assert.Contains(t, snap.Error, "year must be between -500 and 2100")
	}
	assert.Empty(t, backend.contextCalls(), "no network call for invalid years")

	// Boundaries are accepted.
	for _, year := range []int{-500, 2100} {
		waitDone(t, o.FetchCapsule(year))
		assert.NotEqual(t, store.StateError, st.State(), "year %d", year)
	}
	o.Close()
}

func TestFetchCapsule_CacheHitSkipsConstructing(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	var stateAtLookup store.SystemState
	var st *store.Store
	backend.assets = func(_ context.Context, contextID string) (*api.ForgeAssetsResponse, error) {
		stateAtLookup = st.State()
		return &api.ForgeAssetsResponse{
			ContextID: contextID,
			Assets: []api.ForgeAsset{
				{TaskID: "old", Status: api.TaskCompleted, ModelURL: "http://cdn.example/cached.glb"},
			},
		}, nil
	}

	o, s, _ := newTestOrchestrator(t, backend, Options{})
	st = s

	waitDone(t, o.FetchCapsule(1969))

	snap := st.Snapshot()
	assert.Equal(t, store.StateChecking, stateAtLookup)
	assert.Equal(t, store.StateLoadingModel, snap.State)
	assert.Equal(t, 100, snap.Progress)
	require.NotNil(t, snap.Capsule)
	assert.Equal(t, "https://cdn.example/cached.glb", snap.Capsule.ModelURL)
	assert.Equal(t, "from backend", snap.Capsule.Synthesis)

	creates, polls := backend.counts()
	assert.Zero(t, creates)
	assert.Zero(t, polls)
	o.Close()
}

func TestFetchCapsule_ForgePath(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	var st *store.Store
	var pollState store.SystemState
	var pollProgress int
	backend.poll = func(_ context.Context, taskID string, onProgress func(int)) (*api.ForgeStatusResponse, error) {
		pollState = st.State()
		pollProgress = st.Progress()
		onProgress(0)
		onProgress(60)
		return &api.ForgeStatusResponse{
			TaskID:   taskID,
			Status:   api.TaskCompleted,
			ModelURL: "https://tripo3d.com/m.glb",
		}, nil
	}

	rec := &fakeRecorder{}
	o, s, _ := newTestOrchestrator(t, backend, Options{ForgeStyle: "relic", Recorder: rec})
	st = s

	waitDone(t, o.FetchCapsule(1969))

	assert.Equal(t, store.StateConstructing, pollState)
	assert.GreaterOrEqual(t, pollProgress, 5)

	snap := st.Snapshot()
	assert.Equal(t, store.StateLoadingModel, snap.State)
	require.NotNil(t, snap.Capsule)
	wantURL := "https://api.example/api/proxy-model?url=https%3A%2F%2Ftripo3d.com%2Fm.glb"
	assert.Equal(t, wantURL, snap.Capsule.ModelURL)

	// A load signal for another URL is ignored.
	o.ModelLoaded("https://other.example/x.glb")
	assert.Equal(t, store.StateLoadingModel, st.State())

	o.ModelLoaded(wantURL)
	assert.Equal(t, store.StateMaterialized, st.State())

	require.Len(t, rec.records, 1)
	assert.False(t, rec.fallback[0])
	o.Close()
}

func TestModelFailed_FallsBackToPlaceholder(t *testing.T) {
	backend := newFakeBackend()
	o, st, _ := newTestOrchestrator(t, backend, Options{})

	waitDone(t, o.FetchCapsule(1969))
	snap := st.Snapshot()
	require.Equal(t, store.StateLoadingModel, snap.State)

	o.ModelFailed(snap.Capsule.ModelURL, fmt.Errorf("decode error"))

	snap = st.Snapshot()
	assert.Equal(t, store.StateMaterialized, snap.State)
	assert.Empty(t, snap.Capsule.ModelURL)
	assert.Equal(t, "from backend", snap.Capsule.Synthesis)
}

func TestFetchCapsule_EmptyModelURLMaterializesDirectly(t *testing.T) {
	backend := newFakeBackend()
	backend.poll = func(_ context.Context, taskID string, _ func(int)) (*api.ForgeStatusResponse, error) {
		return &api.ForgeStatusResponse{TaskID: taskID, Status: api.TaskCompleted}, nil
	}
	o, st, _ := newTestOrchestrator(t, backend, Options{})

	waitDone(t, o.FetchCapsule(1969))
	snap := st.Snapshot()
	assert.Equal(t, store.StateMaterialized, snap.State)
	assert.False(t, snap.Capsule.HasModel())
}

func TestSetYear_DebounceCoalesces(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	o, st, fc := newTestOrchestrator(t, backend, Options{})

	o.SetYear(1900)
	assert.Equal(t, 1900, st.Year())
	assert.Equal(t, store.StateScrolling, st.State())

	fc.Advance(400 * time.Millisecond)
	o.SetYear(1950)
	fc.Advance(400 * time.Millisecond)
	o.SetYear(1969)
	assert.Equal(t, 1969, st.Year(), "display updates without debounce")
	fc.Advance(499 * time.Millisecond)

	assert.Empty(t, backend.contextCalls(), "no fetch inside the debounce window")

	fc.Advance(time.Millisecond)
	waitForState(t, st, store.StateLoadingModel)

	calls := backend.contextCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1969, calls[0].year)
	o.Close()
}

func TestSetYear_YearZeroMapsToOne(t *testing.T) {
	backend := newFakeBackend()
	o, st, fc := newTestOrchestrator(t, backend, Options{})

	o.SetYear(0)
	fc.Advance(500 * time.Millisecond)
	waitForState(t, st, store.StateLoadingModel)

	calls := backend.contextCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].year)
	assert.Equal(t, 0, st.Year(), "displayed year keeps the user's input")
}

func TestSetYear_CancelsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	entered := make(chan struct{})
	cancelled := make(chan struct{})
	backend.fetch = func(ctx context.Context, _ capsule.Source, _ int) (*api.Context, error) {
		close(entered)
		<-ctx.Done()
		close(cancelled)
		return nil, errors.NewAborted(ctx.Err())
	}

	o, st, _ := newTestOrchestrator(t, backend, Options{})
	done := o.FetchCapsule(1900)
	<-entered

	o.SetYear(1969)
	waitDone(t, done)
	<-cancelled

	snap := st.Snapshot()
	assert.Equal(t, store.StateScrolling, snap.State, "aborted cycle must not write")
	assert.Nil(t, snap.Capsule)
	o.Close()
}

func TestFetchCapsule_StaleResponseNeverWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	release := make(chan struct{})
	entered := make(chan struct{})
	backend.fetch = func(ctx context.Context, source capsule.Source, year int) (*api.Context, error) {
		if year == 1900 {
			close(entered)
			<-release // ignores cancellation and answers late
		}
		d := realData(source, year)
		return &api.Context{ID: d.ContextID, Source: source, Data: d}, nil
	}
	backend.assets = func(_ context.Context, contextID string) (*api.ForgeAssetsResponse, error) {
		return &api.ForgeAssetsResponse{
			ContextID: contextID,
			Assets:    []api.ForgeAsset{{TaskID: "t", Status: api.TaskCompleted, ModelURL: "https://cdn.example/" + contextID + ".glb"}},
		}, nil
	}

	o, st, _ := newTestOrchestrator(t, backend, Options{})

	slow := o.FetchCapsule(1900)
	<-entered
	fast := o.FetchCapsule(1969)
	waitDone(t, fast)

	close(release)
	waitDone(t, slow)

	snap := st.Snapshot()
	require.NotNil(t, snap.Capsule)
	assert.Equal(t, 1969, snap.Capsule.Year)
	assert.Equal(t, "https://cdn.example/ctx-1969.glb", snap.Capsule.ModelURL)
	o.Close()
}

func TestFetchCapsule_FailureFallsBackToMock(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", errors.NewNetwork(fmt.Errorf("connection refused"))},
		{"timeout", errors.NewTimeout("forge polling timed out")},
		{"upstream", errors.NewUpstream(500, "context_error", "HTTP 500")},
		{"schema", errors.NewSchemaMismatch("history context", fmt.Errorf("missing data"))},
		{"generation", errors.NewGenerationFailed("t", "mesh collapsed")},
		{"not found", errors.NewUpstream(404, "not_found", "no such year")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.poll = func(context.Context, string, func(int)) (*api.ForgeStatusResponse, error) {
				return nil, tt.err
			}
			rec := &fakeRecorder{}
			o, st, _ := newTestOrchestrator(t, backend, Options{Recorder: rec})

			waitDone(t, o.FetchCapsule(1500))

			snap := st.Snapshot()
			assert.Equal(t, store.StateMaterialized, snap.State)
			assert.Equal(t, 100, snap.Progress)
			assert.Empty(t, snap.Error)
			require.NotNil(t, snap.Capsule)
			assert.Equal(t, capsule.Mock(1500, false), *snap.Capsule)

			require.Len(t, rec.fallback, 1)
			assert.True(t, rec.fallback[0])
		})
	}
}

func TestFetchCapsule_FutureFallbackIsFossil(t *testing.T) {
	backend := newFakeBackend()
	backend.fetch = func(context.Context, capsule.Source, int) (*api.Context, error) {
		return nil, errors.NewNetwork(fmt.Errorf("offline"))
	}
	o, st, _ := newTestOrchestrator(t, backend, Options{})

	waitDone(t, o.FetchCapsule(2050))
	snap := st.Snapshot()
	assert.Equal(t, store.StateMaterialized, snap.State)
	require.NotNil(t, snap.Capsule)
	assert.True(t, snap.Capsule.IsFossil())
	assert.True(t, snap.Capsule.IsMisread())

	calls := backend.contextCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, capsule.SourceDaily, calls[0].source)
	assert.Equal(t, 2050, calls[0].year)
}

func TestFetchCapsule_SurfaceErrors(t *testing.T) {
	backend := newFakeBackend()
	backend.fetch = func(context.Context, capsule.Source, int) (*api.Context, error) {
		return nil, errors.NewNetwork(fmt.Errorf("offline"))
	}
	o, st, _ := newTestOrchestrator(t, backend, Options{SurfaceErrors: true})

	waitDone(t, o.FetchCapsule(1500))
	snap := st.Snapshot()
	assert.Equal(t, store.StateError, snap.State)
	assert.Contains(t, snap.Error, "offline")
	assert.Nil(t, snap.Capsule)
}

func TestRetry_IdempotentFallback(t *testing.T) {
	backend := newFakeBackend()
	backend.fetch = func(context.Context, capsule.Source, int) (*api.Context, error) {
		return nil, errors.NewTimeout("context request timed out")
	}
	o, st, _ := newTestOrchestrator(t, backend, Options{})
	st.SetYear(1492)

	waitDone(t, o.Retry())
	first := st.Capsule()
	waitDone(t, o.Retry())
	second := st.Capsule()

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	assert.Len(t, backend.contextCalls(), 2)
}

func TestFetchCapsule_SourceSelection(t *testing.T) {
	backend := newFakeBackend()
	o, _, _ := newTestOrchestrator(t, backend, Options{})

	waitDone(t, o.FetchCapsule(2100))
	waitDone(t, o.FetchCapsule(1500))
	waitDone(t, o.FetchCapsule(2025))

	calls := backend.contextCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, capsule.SourceDaily, calls[0].source)
	assert.Equal(t, capsule.SourceHistory, calls[1].source)
	assert.Equal(t, capsule.SourceDaily, calls[2].source)

	fossil := newFakeBackend()
	o2, _, _ := newTestOrchestrator(t, fossil, Options{FutureSource: capsule.SourceFossil})
	waitDone(t, o2.FetchCapsule(2050))
	assert.Equal(t, capsule.SourceFossil, fossil.contextCalls()[0].source)
}

func TestFetchCapsule_AssetLookupFailureStillGenerates(t *testing.T) {
	backend := newFakeBackend()
	backend.assets = func(context.Context, string) (*api.ForgeAssetsResponse, error) {
		return nil, errors.NewUpstream(503, "forge_error", "HTTP 503")
	}
	o, st, _ := newTestOrchestrator(t, backend, Options{})

	waitDone(t, o.FetchCapsule(1969))
	creates, _ := backend.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, store.StateLoadingModel, st.State())
}

func TestMockMode(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	rec := &fakeRecorder{}
	o, st, fc := newTestOrchestrator(t, backend, Options{UseMock: true, Recorder: rec})

	done := o.FetchCapsule(2030)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	last := 0
	for i := 0; i < 20; i++ {
		require.NoError(t, fc.BlockUntilContext(ctx, 1))
		assert.Equal(t, store.StateConstructing, st.State())
		assert.GreaterOrEqual(t, st.Progress(), last)
		last = st.Progress()
		fc.Advance(150 * time.Millisecond)
	}
	waitDone(t, done)

	snap := st.Snapshot()
	assert.Equal(t, store.StateMaterialized, snap.State)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, capsule.Mock(2030, true), *snap.Capsule)
	assert.Empty(t, backend.contextCalls())
	require.Len(t, rec.fallback, 1)
	o.Close()
}

func TestReset(t *testing.T) {
	backend := newFakeBackend()
	o, st, _ := newTestOrchestrator(t, backend, Options{})

	o.SetYear(1969)
	o.Reset()

	snap := st.Snapshot()
	assert.Equal(t, 2026, snap.Year)
	assert.Equal(t, store.StateIdle, snap.State)
	assert.Empty(t, backend.contextCalls())
}

func TestClose_StopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	backend.fetch = func(ctx context.Context, _ capsule.Source, _ int) (*api.Context, error) {
		<-ctx.Done()
		return nil, errors.NewAborted(ctx.Err())
	}
	o, st, fc := newTestOrchestrator(t, backend, Options{})

	done := o.FetchCapsule(1969)
	o.SetYear(1970)
	o.Close()
	waitDone(t, done)

	fc.Advance(time.Second)
	o.SetYear(1980)
	assert.Equal(t, 1970, st.Year(), "closed orchestrator ignores input")
	assert.Len(t, backend.contextCalls(), 1)
}

func TestSimulatedProgress(t *testing.T) {
	max := 300 * time.Second
	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 5},
		{30 * time.Second, 14},
		{150 * time.Second, 50},
		{300 * time.Second, 95},
		{600 * time.Second, 95},
	}
	for _, tt := range tests {
		if got := SimulatedProgress(tt.elapsed, max); got != tt.want {
			t.Errorf("SimulatedProgress(%s) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}
	if got := SimulatedProgress(time.Second, 0); got != 95 {
		t.Errorf("zero bound = %d, want 95", got)
	}
}
