package reconciler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/autoscaler/pkg/manager"
	"github.com/cuemby/autoscaler/pkg/platform"
	"github.com/cuemby/autoscaler/pkg/schedule"
	"github.com/cuemby/autoscaler/pkg/types"
	"github.com/cuemby/autoscaler/pkg/watchdog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a SnapshotSource under test control
type fakeSource struct {
	reloading atomic.Bool
	snap      atomic.Pointer[manager.Snapshot]
	loc       *time.Location
}

func (s *fakeSource) Reloading() bool             { return s.reloading.Load() }
func (s *fakeSource) Snapshot() *manager.Snapshot { return s.snap.Load() }
func (s *fakeSource) Location() *time.Location {
	if s.loc == nil {
		return time.UTC
	}
	return s.loc
}

// resizer is a formation-based fake platform
type resizer struct {
	mu       sync.Mutex
	state    types.FormationState
	stateErr error
	setErr   error
	sets     []types.FormationState
	types    []string
	calls    int
	panicky  bool
}

func (f *resizer) Name() types.PlatformName { return types.PlatformHeroku }

func (f *resizer) State(_ context.Context, _ string, processType string) (types.FormationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.types = append(f.types, processType)
	if f.panicky {
		panic("boom")
	}
	return f.state, f.stateErr
}

func (f *resizer) SetState(_ context.Context, _ string, s types.FormationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sets = append(f.sets, s)
	if f.setErr == nil {
		f.state = s
	}
	return f.setErr
}

func (f *resizer) Restart(context.Context, string) error { return nil }

func (f *resizer) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

// lifecycler is an existence-based fake platform
type lifecycler struct {
	mu      sync.Mutex
	exists  bool
	creates int
	deletes int
	calls   int
}

func (f *lifecycler) Name() types.PlatformName { return types.PlatformDigitalOcean }
func (f *lifecycler) Restart(context.Context, string) error { return nil }

func (f *lifecycler) Exists(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.exists, nil
}

func (f *lifecycler) Create(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.creates++
	f.exists = true
	return nil
}

func (f *lifecycler) Delete(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.deletes++
	f.exists = false
	return nil
}

func (f *lifecycler) ActiveDeployments(context.Context, string) (int, error) { return 0, nil }

type fakeWatchdog struct {
	checks []string
	resets int
	value  float64
}

func (w *fakeWatchdog) Check(_ context.Context, app *types.ManagedApp, _ platform.Platform) watchdog.Observation {
	w.checks = append(w.checks, app.AppName)
	return watchdog.Observation{Key: watchdog.ObservationKey(app.AppName), Value: w.value}
}

func (w *fakeWatchdog) Reset() { w.resets++ }

type fakeSink struct {
	minutes      []int
	observations []map[string]float64
}

func (s *fakeSink) Publish(_ context.Context, minute int, _ time.Time, obs map[string]float64) (bool, error) {
	s.minutes = append(s.minutes, minute)
	s.observations = append(s.observations, obs)
	return true, nil
}

var (
	small = &types.Formation{ID: "small", Type: "web", Size: "standard-1X", Quantity: 1}
	large = &types.Formation{ID: "large", Type: "web", Size: "performance-l", Quantity: 4}
	off   = &types.Formation{ID: "off", Type: "web", Size: "standard-1X", Quantity: 0}
)

// fill builds a schedule using `before` until minute and `after` from it
func fill(before, after string, minute int) *schedule.Schedule {
	var s schedule.Schedule
	for i := range s {
		if i < minute {
			s[i] = before
		} else {
			s[i] = after
		}
	}
	return &s
}

func snapshot(version string, apps ...manager.CompiledApp) *manager.Snapshot {
	return &manager.Snapshot{
		Version: version,
		Apps:    apps,
		Formations: map[string]*types.Formation{
			small.ID: small,
			large.ID: large,
			off.ID:   off,
		},
	}
}

func compiled(name string, pn types.PlatformName, sched *schedule.Schedule) manager.CompiledApp {
	return manager.CompiledApp{
		App: &types.ManagedApp{
			AppName:  name,
			Enabled:  true,
			Platform: types.PlatformDescriptor{Name: pn, Token: "t"},
		},
		Schedule: sched,
	}
}

func factoryOf(clients map[string]platform.Platform, built *int) platform.Factory {
	return func(app *types.ManagedApp) (platform.Platform, error) {
		if built != nil {
			*built++
		}
		p, ok := clients[app.AppName]
		if !ok {
			return nil, platform.ErrUnknownPlatform
		}
		return p, nil
	}
}

func at(hh, mm int) time.Time {
	return time.Date(2024, 1, 15, hh, mm, 0, 0, time.UTC)
}

func TestTick_ResizesWhenStateDiffers(t *testing.T) {
	src := &fakeSource{}
	src.snap.Store(snapshot("v1", compiled("web", types.PlatformHeroku, fill("small", "large", 9*60))))
	p := &resizer{state: small.State()}

	r := NewReconciler(Config{
		Source:   src,
		Factory:  factoryOf(map[string]platform.Platform{"web": p}, nil),
		Watchdog: &fakeWatchdog{},
	})

	r.Tick(context.Background(), at(9, 0))
	r.Wait()

	require.Equal(t, 1, p.setCount())
	assert.Equal(t, large.State(), p.sets[0])
}

func TestTick_NoWriteWhenStateMatches(t *testing.T) {
	src := &fakeSource{}
	src.snap.Store(snapshot("v1", compiled("web", types.PlatformHeroku, fill("small", "large", 9*60))))
	p := &resizer{state: small.State()}

	r := NewReconciler(Config{
		Source:   src,
		Factory:  factoryOf(map[string]platform.Platform{"web": p}, nil),
		Watchdog: &fakeWatchdog{},
	})

	r.Tick(context.Background(), at(8, 59))
	r.Wait()

	assert.Zero(t, p.setCount())
}

func TestTick_ReadsStateOfTargetProcessType(t *testing.T) {
	worker := &types.Formation{ID: "worker", Type: "worker", Size: "standard-2X", Quantity: 2}
	src := &fakeSource{}
	snap := snapshot("v1", compiled("web", types.PlatformHeroku, fill("worker", "worker", 0)))
	snap.Formations["worker"] = worker
	src.snap.Store(snap)
	p := &resizer{state: worker.State()}

	r := NewReconciler(Config{
		Source:   src,
		Factory:  factoryOf(map[string]platform.Platform{"web": p}, nil),
		Watchdog: &fakeWatchdog{},
	})

	r.Tick(context.Background(), at(10, 0))
	r.Wait()

	assert.Equal(t, []string{"worker"}, p.types)
	assert.Zero(t, p.setCount())
}

func TestTick_AnyFieldDifferenceWrites(t *testing.T) {
	for name, live := range map[string]types.FormationState{
		"type":     {Type: "worker", Size: large.Size, Quantity: large.Quantity},
		"size":     {Type: large.Type, Size: "standard-2X", Quantity: large.Quantity},
		"quantity": {Type: large.Type, Size: large.Size, Quantity: 1},
	} {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{}
			src.snap.Store(snapshot("v1", compiled("web", types.PlatformHeroku, fill("large", "large", 0))))
			p := &resizer{state: live}

			r := NewReconciler(Config{
				Source:   src,
				Factory:  factoryOf(map[string]platform.Platform{"web": p}, nil),
				Watchdog: &fakeWatchdog{},
			})
			r.Tick(context.Background(), at(12, 0))
			r.Wait()

			require.Equal(t, 1, p.setCount())
			assert.Equal(t, large.State(), p.sets[0])
		})
	}
}

func TestTick_SkippedWhileReloading(t *testing.T) {
	src := &fakeSource{}
	src.snap.Store(snapshot("v1", compiled("web", types.PlatformHeroku, fill("small", "large", 0))))
	src.reloading.Store(true)
	p := &resizer{state: small.State()}
	built := 0
	wd := &fakeWatchdog{}
	sink := &fakeSink{}

	r := NewReconciler(Config{
		Source:   src,
		Factory:  factoryOf(map[string]platform.Platform{"web": p}, &built),
		Watchdog: wd,
		Sink:     sink,
	})
	r.Tick(context.Background(), at(10, 0))
	r.Wait()

	assert.Zero(t, p.calls)
	assert.Zero(t, built)
	assert.Empty(t, wd.checks)
	assert.Empty(t, sink.minutes)
}

func TestTick_NoSnapshot(t *testing.T) {
	src := &fakeSource{}
	built := 0
	r := NewReconciler(Config{Source: src, Factory: factoryOf(nil, &built)})

	assert.NotPanics(t, func() { r.Tick(context.Background(), at(10, 0)) })
	assert.Zero(t, built)
}

func TestTick_LifecycleCreateAndDelete(t *testing.T) {
	src := &fakeSource{}
	src.snap.Store(snapshot("v1", compiled("batch", types.PlatformDigitalOcean, fill("off", "small", 9*60))))
	p := &lifecycler{exists: false}

	r := NewReconciler(Config{
		Source:   src,
		Factory:  factoryOf(map[string]platform.Platform{"batch": p}, nil),
		Watchdog: &fakeWatchdog{},
	})

	// absent and planned off: nothing to do
	r.Tick(context.Background(), at(8, 0))
	assert.Zero(t, p.creates)
	assert.Zero(t, p.deletes)

	// planned on: create once
	r.Tick(context.Background(), at(9, 0))
	r.Tick(context.Background(), at(9, 1))
	assert.Equal(t, 1, p.creates)

	// back to off: delete once
	src.snap.Store(snapshot("v2", compiled("batch", types.PlatformDigitalOcean, fill("small", "off", 16*60))))
	r.Tick(context.Background(), at(16, 0))
	r.Tick(context.Background(), at(16, 1))
	assert.Equal(t, 1, p.deletes)
}

func TestTick_ErrorIsolatedPerApp(t *testing.T) {
	src := &fakeSource{}
	src.snap.Store(snapshot("v1",
		compiled("failing", types.PlatformHeroku, fill("large", "large", 0)),
		compiled("panicking", types.PlatformHeroku, fill("large", "large", 0)),
		compiled("unknown", "gcp", fill("large", "large", 0)),
		compiled("web", types.PlatformHeroku, fill("large", "large", 0)),
	))
	failing := &resizer{stateErr: errors.New("401 unauthorized")}
	panicking := &resizer{panicky: true}
	web := &resizer{state: small.State()}

	r := NewReconciler(Config{
		Source: src,
		Factory: factoryOf(map[string]platform.Platform{
			"failing":   failing,
			"panicking": panicking,
			"web":       web,
		}, nil),
		Watchdog: &fakeWatchdog{},
	})

	require.NotPanics(t, func() { r.Tick(context.Background(), at(10, 0)) })
	r.Wait()

	assert.Zero(t, failing.setCount())
	require.Equal(t, 1, web.setCount())
	assert.Equal(t, large.State(), web.sets[0])
}

func TestTick_WriteFailureDoesNotPropagate(t *testing.T) {
	src := &fakeSource{}
	src.snap.Store(snapshot("v1", compiled("web", types.PlatformHeroku, fill("large", "large", 0))))
	p := &resizer{state: small.State(), setErr: errors.New("422 invalid size")}

	r := NewReconciler(Config{
		Source:   src,
		Factory:  factoryOf(map[string]platform.Platform{"web": p}, nil),
		Watchdog: &fakeWatchdog{},
	})

	assert.NotPanics(t, func() { r.Tick(context.Background(), at(10, 0)) })
	r.Wait()
	assert.Equal(t, 1, p.setCount())
}

func TestTick_ClientCacheResetOnNewVersion(t *testing.T) {
	src := &fakeSource{}
	src.snap.Store(snapshot("v1", compiled("web", types.PlatformHeroku, fill("small", "small", 0))))
	p := &resizer{state: small.State()}
	built := 0
	wd := &fakeWatchdog{}

	r := NewReconciler(Config{
		Source:   src,
		Factory:  factoryOf(map[string]platform.Platform{"web": p}, &built),
		Watchdog: wd,
	})

	r.Tick(context.Background(), at(10, 0))
	r.Tick(context.Background(), at(10, 1))
	assert.Equal(t, 1, built)
	assert.Equal(t, 1, wd.resets)

	src.snap.Store(snapshot("v2", compiled("web", types.PlatformHeroku, fill("small", "small", 0))))
	r.Tick(context.Background(), at(10, 2))
	assert.Equal(t, 2, built)
	assert.Equal(t, 2, wd.resets)
}

func TestTick_MinuteInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	src := &fakeSource{loc: loc}
	src.snap.Store(snapshot("v1", compiled("web", types.PlatformHeroku, fill("small", "large", 9*60+15))))
	p := &resizer{state: small.State()}
	sink := &fakeSink{}

	r := NewReconciler(Config{
		Source:   src,
		Factory:  factoryOf(map[string]platform.Platform{"web": p}, nil),
		Watchdog: &fakeWatchdog{},
		Sink:     sink,
	})

	// 03:45 UTC is 09:15 at +05:30
	r.Tick(context.Background(), at(3, 45))
	r.Wait()

	require.Equal(t, 1, p.setCount())
	assert.Equal(t, []int{555}, sink.minutes)
}

func TestTick_WatchdogObservationsPublished(t *testing.T) {
	src := &fakeSource{}
	withRestart := compiled("web", types.PlatformHeroku, fill("small", "small", 0))
	withRestart.App.Restart = &types.RestartConfig{Enabled: true, AppDomain: "web.example.com"}
	without := compiled("api", types.PlatformHeroku, fill("small", "small", 0))
	src.snap.Store(snapshot("v1", withRestart, without))

	wd := &fakeWatchdog{value: 1}
	sink := &fakeSink{}
	r := NewReconciler(Config{
		Source: src,
		Factory: factoryOf(map[string]platform.Platform{
			"web": &resizer{state: small.State()},
			"api": &resizer{state: small.State()},
		}, nil),
		Watchdog: wd,
		Sink:     sink,
	})

	r.Tick(context.Background(), at(10, 0))

	assert.Equal(t, []string{"web"}, wd.checks)
	require.Len(t, sink.observations, 1)
	assert.Equal(t, map[string]float64{"web_restart": 1}, sink.observations[0])
	assert.Equal(t, []int{600}, sink.minutes)
}
