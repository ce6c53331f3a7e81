package poller

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huannv-sys/mik-moni-demo/internal/channels"
	"github.com/huannv-sys/mik-moni-demo/internal/collector"
	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
	"github.com/huannv-sys/mik-moni-demo/internal/store"
)

type fakeRoster struct {
	mu      sync.Mutex
	devices map[string]model.Device
}

func newFakeRoster(devices ...model.Device) *fakeRoster {
	r := &fakeRoster{devices: make(map[string]model.Device)}
	for _, d := range devices {
		r.devices[d.ID] = d
	}
	return r
}

func (r *fakeRoster) Devices() []model.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeRoster) Device(id string) (model.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	return d, ok
}

func (r *fakeRoster) remove(id string) {
	r.mu.Lock()
	delete(r.devices, id)
	r.mu.Unlock()
}

// blockingRunner records concurrency and optionally holds every cycle until gate closes
type blockingRunner struct {
	mu           sync.Mutex
	calls        map[string]int
	inFlight     map[string]int
	maxPerDevice int
	active       int
	maxActive    int

	started chan string
	gate    chan struct{}
}

func newBlockingRunner(gated bool) *blockingRunner {
	r := &blockingRunner{
		calls:    make(map[string]int),
		inFlight: make(map[string]int),
		started:  make(chan string, 64),
	}
	if gated {
		r.gate = make(chan struct{})
	}
	return r
}

func (r *blockingRunner) CollectAll(ctx context.Context, deviceID string) collector.Report {
	r.mu.Lock()
	r.calls[deviceID]++
	r.inFlight[deviceID]++
	r.maxPerDevice = max(r.maxPerDevice, r.inFlight[deviceID])
	r.active++
	r.maxActive = max(r.maxActive, r.active)
	r.mu.Unlock()

	r.started <- deviceID
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
		}
	}

	r.mu.Lock()
	r.inFlight[deviceID]--
	r.active--
	r.mu.Unlock()

	return collector.Report{
		DeviceID: deviceID,
		Success:  true,
		Results: map[collector.Family]collector.Result{
			collector.FamilySystem: {Family: collector.FamilySystem, Status: collector.StatusOK, Count: 1},
		},
	}
}

func (r *blockingRunner) callCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

type recordedDisconnects struct {
	mu  sync.Mutex
	ids []string
}

func (d *recordedDisconnects) Disconnect(id string) {
	d.mu.Lock()
	d.ids = append(d.ids, id)
	d.mu.Unlock()
}

func (d *recordedDisconnects) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSweeper) Sweep() int {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return 0
}

type harness struct {
	sched  *Scheduler
	roster *fakeRoster
	store  *store.Store
	runner *blockingRunner
	conns  *recordedDisconnects
	events *channels.EventChannels
}

func newHarness(t *testing.T, runner *blockingRunner, cfg config.SchedulerConfig, devices ...model.Device) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		roster: newFakeRoster(devices...),
		store:  store.New(10, 10),
		runner: runner,
		conns:  &recordedDisconnects{},
		events: channels.NewEventChannels(ctx, channels.DefaultConfig()),
	}
	h.sched = NewScheduler(Deps{
		Roster: h.roster,
		Store:  h.store,
		Runner: runner,
		Conns:  h.conns,
		Alerts: &countingSweeper{},
		Events: h.events,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, cfg)
	return h
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		RefreshIntervalSeconds:    60,
		RebuildIntervalSeconds:    300,
		AlertSweepIntervalSeconds: 3600,
		TickIntervalMS:            10,
		Workers:                   4,
	}
}

func enabled(id string) model.Device {
	return model.Device{ID: id, Name: id, Host: "192.0.2.1", Enabled: true}
}

func waitStarted(t *testing.T, r *blockingRunner, want string) {
	t.Helper()
	select {
	case id := <-r.started:
		require.Equal(t, want, id)
	case <-time.After(2 * time.Second):
		t.Fatalf("cycle for %s never started", want)
	}
}

// waitFor drains start notifications until want shows up
func waitFor(t *testing.T, r *blockingRunner, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case id := <-r.started:
			if id == want {
				return
			}
		case <-deadline:
			t.Fatalf("cycle for %s never started", want)
		}
	}
}

func TestRebuild_SchedulesEnabledDevices(t *testing.T) {
	off := enabled("r3")
	off.Enabled = false
	h := newHarness(t, newBlockingRunner(false), testSchedulerConfig(), enabled("r1"), enabled("r2"), off)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h.sched.now = func() time.Time { return now }
	h.sched.Rebuild()

	jobs := h.sched.Pending()
	require.Len(t, jobs, 4)

	var oneShots, recurring int
	for _, j := range jobs {
		assert.NotEqual(t, "r3", j.DeviceID)
		if j.OneShot {
			oneShots++
			assert.Equal(t, now, j.NextRun)
		} else {
			recurring++
			assert.Equal(t, now.Add(time.Minute), j.NextRun)
		}
	}
	assert.Equal(t, 2, oneShots)
	assert.Equal(t, 2, recurring)
	assert.True(t, jobs[0].OneShot, "immediate jobs sort first")

	// disabled devices are still known to the store but hold no session
	_, ok := h.store.Device("r3")
	assert.True(t, ok)
	assert.Contains(t, h.conns.all(), "r3")
}

func TestRebuild_PurgesDevicesMissingFromRoster(t *testing.T) {
	h := newHarness(t, newBlockingRunner(false), testSchedulerConfig(), enabled("r1"))

	h.store.UpsertDevice(enabled("gone"))
	h.store.SetSystem("gone", model.SystemSnapshot{DeviceID: "gone", CPULoad: 5})
	h.store.AppendSystemPoint("gone", model.SystemPoint{CPULoad: 5})

	h.sched.Rebuild()

	_, ok := h.store.Device("gone")
	assert.False(t, ok)
	assert.False(t, h.store.HasState("gone"))
	assert.Empty(t, h.store.SystemPoints("gone"))
	assert.Contains(t, h.conns.all(), "gone")

	select {
	case evt := <-h.events.DeviceState:
		assert.Equal(t, "gone", evt.DeviceID)
		assert.Equal(t, channels.DevicePurged, evt.State)
	default:
		t.Fatal("expected purge event")
	}
}

func TestRebuildMidFlight_DoesNotOverlapCycles(t *testing.T) {
	runner := newBlockingRunner(true)
	h := newHarness(t, runner, testSchedulerConfig(), enabled("r1"))
	ctx := context.Background()

	h.sched.Rebuild()
	h.sched.tick(ctx)
	waitStarted(t, runner, "r1")

	// The rebuild queues another immediate one-shot while the first cycle is blocked
	h.sched.Rebuild()
	h.sched.tick(ctx)
	h.sched.Trigger("r1")
	h.sched.tick(ctx)

	close(runner.gate)
	h.sched.wg.Wait()

	assert.Equal(t, 1, runner.callCount("r1"))
	assert.Equal(t, 1, runner.maxPerDevice)
	assert.False(t, h.sched.slots.Busy("r1"))
}

func TestTick_ReschedulesRecurringJobs(t *testing.T) {
	h := newHarness(t, newBlockingRunner(false), testSchedulerConfig(), enabled("r1"))
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h.sched.now = func() time.Time { return now }

	h.sched.Rebuild()
	h.sched.tick(context.Background())
	h.sched.wg.Wait()

	jobs := h.sched.Pending()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].OneShot)
	assert.Equal(t, now.Add(time.Minute), jobs[0].NextRun)

	now = now.Add(time.Minute)
	h.sched.tick(context.Background())
	h.sched.wg.Wait()

	jobs = h.sched.Pending()
	require.Len(t, jobs, 1)
	assert.Equal(t, now.Add(time.Minute), jobs[0].NextRun)
	assert.Equal(t, 2, h.runner.callCount("r1"))
}

func TestDispatch_DeviceRemovedFromRosterIsPurged(t *testing.T) {
	h := newHarness(t, newBlockingRunner(false), testSchedulerConfig(), enabled("r1"))
	h.sched.Rebuild()

	h.roster.remove("r1")
	h.sched.tick(context.Background())
	h.sched.wg.Wait()

	assert.Equal(t, 0, h.runner.callCount("r1"))
	_, ok := h.store.Device("r1")
	assert.False(t, ok)
	assert.Contains(t, h.conns.all(), "r1")
	assert.Zero(t, h.sched.slots.Len())
}

func TestDispatch_RemovedWhileRunningIsPurgedAfterCycle(t *testing.T) {
	runner := newBlockingRunner(true)
	h := newHarness(t, runner, testSchedulerConfig(), enabled("r1"))
	h.sched.Rebuild()
	h.sched.tick(context.Background())
	waitStarted(t, runner, "r1")

	h.roster.remove("r1")
	// state written by the in-flight cycle
	h.store.SetSystem("r1", model.SystemSnapshot{DeviceID: "r1"})
	close(runner.gate)
	h.sched.wg.Wait()

	assert.False(t, h.store.HasState("r1"))
	assert.Zero(t, h.sched.slots.Len())
}

func TestWorkers_BoundConcurrency(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Workers = 2
	runner := newBlockingRunner(true)
	h := newHarness(t, runner, cfg, enabled("a"), enabled("b"), enabled("c"), enabled("d"))

	h.sched.Rebuild()
	h.sched.tick(context.Background())

	<-runner.started
	<-runner.started
	select {
	case id := <-runner.started:
		t.Fatalf("third cycle %s started while two workers were busy", id)
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.gate)
	h.sched.wg.Wait()

	assert.Equal(t, 2, runner.maxActive)
	for _, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, 1, runner.callCount(id), id)
	}
}

func TestRefresh(t *testing.T) {
	t.Run("unknown device", func(t *testing.T) {
		h := newHarness(t, newBlockingRunner(false), testSchedulerConfig())
		_, err := h.sched.Refresh(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrUnknownDevice)
	})

	t.Run("runs synchronously", func(t *testing.T) {
		h := newHarness(t, newBlockingRunner(false), testSchedulerConfig(), enabled("r1"))
		report, err := h.sched.Refresh(context.Background(), "r1")
		require.NoError(t, err)
		assert.True(t, report.Success)
		assert.Equal(t, 1, h.runner.callCount("r1"))

		evt := <-h.events.CycleCompleted
		assert.Equal(t, "r1", evt.DeviceID)
		assert.True(t, evt.Families["system"])
		state := <-h.events.DeviceState
		assert.Equal(t, channels.DeviceUp, state.State)
	})

	t.Run("waits for in-flight cycle", func(t *testing.T) {
		runner := newBlockingRunner(true)
		h := newHarness(t, runner, testSchedulerConfig(), enabled("r1"))
		h.sched.Rebuild()
		h.sched.tick(context.Background())
		waitStarted(t, runner, "r1")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := h.sched.Refresh(ctx, "r1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(runner.gate)
		h.sched.wg.Wait()

		_, err = h.sched.Refresh(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, 2, runner.callCount("r1"))
		assert.Equal(t, 1, runner.maxPerDevice)
	})
}

func TestRun_LifecycleAndRebuildRequests(t *testing.T) {
	runner := newBlockingRunner(false)
	h := newHarness(t, runner, testSchedulerConfig(), enabled("r1"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.sched.Run(ctx) }()

	waitStarted(t, runner, "r1")
	assert.Eventually(t, h.sched.IsRunning, time.Second, 5*time.Millisecond)
	assert.Error(t, h.sched.Run(ctx), "second Run must fail")

	h.roster.mu.Lock()
	h.roster.devices["r2"] = enabled("r2")
	h.roster.mu.Unlock()
	h.sched.RequestRebuild()
	waitFor(t, runner, "r2")

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, h.sched.IsRunning())
}
