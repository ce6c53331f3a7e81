package poller

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/huannv-sys/mik-moni-demo/internal/channels"
	"github.com/huannv-sys/mik-moni-demo/internal/collector"
	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

// ErrUnknownDevice is returned by Refresh for IDs absent from the roster
var ErrUnknownDevice = errors.New("device not found")

// Roster is the authoritative list of configured devices
type Roster interface {
	Devices() []model.Device
	Device(id string) (model.Device, bool)
}

// Runner performs one full collection cycle for a device
type Runner interface {
	CollectAll(ctx context.Context, deviceID string) collector.Report
}

// DeviceStore is the part of the state store the scheduler maintains
type DeviceStore interface {
	UpsertDevice(d model.Device)
	DeviceIDs() []string
	RemoveDevice(id string)
}

type Disconnector interface {
	Disconnect(deviceID string)
}

type AlertSweeper interface {
	Sweep() int
}

// Scheduler drives periodic collection for every enabled device.
// Jobs live in a deadline-ordered heap that Rebuild replaces atomically.
// A device never has more than one cycle in flight.
type Scheduler struct {
	roster Roster
	store  DeviceStore
	runner Runner
	conns  Disconnector
	alerts AlertSweeper
	events *channels.EventChannels
	logger *slog.Logger

	// Configuration
	refreshInterval time.Duration
	rebuildInterval time.Duration
	sweepInterval   time.Duration
	tickInterval    time.Duration

	// Priority queue
	heap   PriorityQueue
	heapMu sync.Mutex

	slots   *DeviceSlots
	workers chan struct{}
	rebuild chan struct{}

	// Lifecycle management
	running bool
	runMu   sync.Mutex
	wg      sync.WaitGroup

	now func() time.Time
}

// Deps groups the collaborators of a Scheduler
type Deps struct {
	Roster Roster
	Store  DeviceStore
	Runner Runner
	Conns  Disconnector
	Alerts AlertSweeper
	Events *channels.EventChannels
	Logger *slog.Logger
}

func NewScheduler(deps Deps, cfg config.SchedulerConfig) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		roster:          deps.Roster,
		store:           deps.Store,
		runner:          deps.Runner,
		conns:           deps.Conns,
		alerts:          deps.Alerts,
		events:          deps.Events,
		logger:          logger.With("component", "scheduler"),
		refreshInterval: positive(cfg.RefreshInterval(), time.Minute),
		rebuildInterval: positive(cfg.RebuildInterval(), 5*time.Minute),
		sweepInterval:   positive(cfg.AlertSweepInterval(), time.Hour),
		tickInterval:    positive(cfg.TickInterval(), 500*time.Millisecond),
		heap:            make(PriorityQueue, 0),
		slots:           NewDeviceSlots(),
		workers:         make(chan struct{}, workers),
		rebuild:         make(chan struct{}, 1),
		now:             time.Now,
	}
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Run starts the scheduler and blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.runMu.Unlock()

	s.logger.Info("starting scheduler",
		"tick_interval", s.tickInterval,
		"refresh_interval", s.refreshInterval,
		"rebuild_interval", s.rebuildInterval,
		"workers", cap(s.workers),
	)

	s.Rebuild()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	rebuildTicker := time.NewTicker(s.rebuildInterval)
	defer rebuildTicker.Stop()
	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled, shutting down")
			s.shutdown()
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		case <-rebuildTicker.C:
			s.Rebuild()
		case <-s.rebuild:
			s.Rebuild()
		case <-sweepTicker.C:
			if s.alerts != nil {
				if n := s.alerts.Sweep(); n > 0 {
					s.logger.Info("swept resolved alerts", "count", n)
				}
			}
		}
	}
}

// RequestRebuild asks the run loop to rebuild soon. Requests coalesce.
func (s *Scheduler) RequestRebuild() {
	select {
	case s.rebuild <- struct{}{}:
	default:
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// Rebuild reconciles the store with the roster and replaces the job heap.
// Every enabled device gets a recurring job plus an immediate one-shot.
// Cycles already in flight keep running; the per-device slot stops the
// new one-shot from overlapping them.
func (s *Scheduler) Rebuild() {
	devices := s.roster.Devices()
	now := s.now()

	configured := make(map[string]bool, len(devices))
	jobs := make(PriorityQueue, 0, 2*len(devices))
	for _, d := range devices {
		configured[d.ID] = true
		s.store.UpsertDevice(d)
		if !d.Enabled {
			s.conns.Disconnect(d.ID)
			continue
		}
		jobs = append(jobs,
			&Job{DeviceID: d.ID, Interval: s.refreshInterval, NextRun: now.Add(s.refreshInterval), heapIndex: len(jobs)},
			&Job{DeviceID: d.ID, NextRun: now, OneShot: true, heapIndex: len(jobs) + 1},
		)
	}
	heap.Init(&jobs)

	for _, id := range s.store.DeviceIDs() {
		if !configured[id] {
			s.purge(id)
		}
	}

	s.heapMu.Lock()
	s.heap = jobs
	s.heapMu.Unlock()

	s.logger.Info("schedule rebuilt", "devices", len(devices), "jobs", len(jobs))
}

// Trigger queues an immediate one-shot cycle for the device
func (s *Scheduler) Trigger(deviceID string) {
	s.heapMu.Lock()
	heap.Push(&s.heap, &Job{DeviceID: deviceID, NextRun: s.now(), OneShot: true})
	s.heapMu.Unlock()
}

// Refresh runs a cycle synchronously, waiting for any in-flight cycle of
// the same device to finish first.
func (s *Scheduler) Refresh(ctx context.Context, deviceID string) (collector.Report, error) {
	if _, ok := s.roster.Device(deviceID); !ok {
		return collector.Report{}, ErrUnknownDevice
	}
	release, err := s.slots.Acquire(ctx, deviceID)
	if err != nil {
		return collector.Report{}, err
	}
	defer release()

	report, _ := s.runCycle(ctx, deviceID)
	return report, nil
}

// Pending returns a snapshot of the queued jobs in heap order
func (s *Scheduler) Pending() []Job {
	s.heapMu.Lock()
	defer s.heapMu.Unlock()
	out := make([]Job, 0, len(s.heap))
	for _, j := range s.heap {
		out = append(out, *j)
	}
	return out
}

// tick dispatches all jobs that are due
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	s.heapMu.Lock()
	var due []*Job
	for len(s.heap) > 0 {
		job := s.heap[0]
		if job.NextRun.After(now) {
			break
		}
		popped := heap.Pop(&s.heap).(*Job)
		due = append(due, popped)
		if !popped.OneShot {
			s.rescheduleUnlocked(popped, now)
		}
	}
	s.heapMu.Unlock()

	for _, job := range due {
		s.dispatch(ctx, job.DeviceID)
	}

	if len(due) > 0 {
		s.logger.Debug("tick processed due jobs", "count", len(due))
	}
}

func (s *Scheduler) rescheduleUnlocked(job *Job, now time.Time) {
	job.NextRun = now.Add(job.Interval)
	heap.Push(&s.heap, job)
}

// dispatch starts a cycle unless one is already running for the device
func (s *Scheduler) dispatch(ctx context.Context, deviceID string) {
	release, ok := s.slots.TryAcquire(deviceID)
	if !ok {
		s.logger.Debug("cycle already in flight, skipping", "device_id", deviceID)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()

		select {
		case s.workers <- struct{}{}:
			defer func() { <-s.workers }()
		case <-ctx.Done():
			return
		}
		s.runCycle(ctx, deviceID)
	}()
}

// runCycle must be called with the device's slot held. ran is false when
// the device was skipped.
func (s *Scheduler) runCycle(ctx context.Context, deviceID string) (report collector.Report, ran bool) {
	device, ok := s.roster.Device(deviceID)
	if !ok {
		s.purge(deviceID)
		return collector.Report{DeviceID: deviceID, Error: "Device not found or disabled"}, false
	}
	if !device.Enabled {
		return collector.Report{DeviceID: deviceID, Error: "Device not found or disabled"}, false
	}

	report = s.runner.CollectAll(ctx, deviceID)
	if _, ok := s.roster.Device(deviceID); !ok {
		// removed while the cycle was running; drop what it wrote
		s.purge(deviceID)
		return report, true
	}
	s.publish(report)
	return report, true
}

func (s *Scheduler) publish(report collector.Report) {
	if s.events == nil {
		return
	}
	now := s.now()
	channels.Send(s.events, s.events.CycleCompleted, channels.CycleCompletedEvent{
		DeviceID:  report.DeviceID,
		Success:   report.Success,
		Families:  report.Families(),
		Duration:  report.Duration,
		Timestamp: now,
	})

	state := channels.DeviceStateEvent{DeviceID: report.DeviceID, State: channels.DeviceUp, Timestamp: now}
	if len(report.Results) == 0 {
		state.State = channels.DeviceDown
		state.Error = report.Error
	}
	channels.Send(s.events, s.events.DeviceState, state)
}

// purge drops everything held for a device that left the roster
func (s *Scheduler) purge(deviceID string) {
	s.conns.Disconnect(deviceID)
	s.store.RemoveDevice(deviceID)
	s.slots.Forget(deviceID)
	s.logger.Info("purged removed device", "device_id", deviceID)

	if s.events != nil {
		channels.Send(s.events, s.events.DeviceState, channels.DeviceStateEvent{
			DeviceID:  deviceID,
			State:     channels.DevicePurged,
			Timestamp: s.now(),
		})
	}
}

// shutdown waits for in-flight cycles
func (s *Scheduler) shutdown() {
	s.logger.Info("waiting for in-flight cycles to complete")
	s.wg.Wait()

	s.runMu.Lock()
	s.running = false
	s.runMu.Unlock()

	s.logger.Info("scheduler shutdown complete")
}
