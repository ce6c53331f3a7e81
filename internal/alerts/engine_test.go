package alerts

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huannv-sys/mik-moni-demo/internal/channels"
	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
	"github.com/huannv-sys/mik-moni-demo/internal/store"
)

func setup(t *testing.T) (*Engine, *store.Store, *channels.EventChannels) {
	t.Helper()
	st := store.New(10, 10)
	st.UpsertDevice(model.Device{ID: "r1", Name: "edge"})

	events := channels.NewEventChannels(context.Background(), channels.DefaultConfig())
	t.Cleanup(func() { events.Close() })

	thresholds := config.ThresholdsConfig{CPULoad: 80, MemoryUsage: 80, DiskUsage: 80, InterfaceUsage: 80}
	e := NewEngine(st, st, thresholds, 24*time.Hour, events, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return e, st, events
}

func messages(alerts []model.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Message)
	}
	return out
}

func TestCheckThresholds_CPUDedup(t *testing.T) {
	e, st, events := setup(t)
	snap := model.SystemSnapshot{CPULoad: 90}

	e.CheckThresholds("r1", snap)
	e.CheckThresholds("r1", snap)

	got := st.Alerts(store.AlertFilter{DeviceID: "r1", ActiveOnly: true})
	require.Len(t, got, 1)
	assert.Equal(t, model.AlertCPULoad, got[0].Type)
	assert.Equal(t, "High CPU load on edge: 90%", got[0].Message)
	assert.Equal(t, model.SeverityWarning, got[0].Severity)
	assert.NotEqual(t, uuid.Nil, got[0].ID)

	require.Len(t, events.AlertRaised, 1)
	evt := <-events.AlertRaised
	assert.Equal(t, got[0].ID, evt.Alert.ID)
}

func TestCheckThresholds_ZeroTotalsSkipped(t *testing.T) {
	e, st, _ := setup(t)

	e.CheckThresholds("r1", model.SystemSnapshot{
		CPULoad:       10,
		FreeMemory:    0,
		TotalMemory:   0,
		FreeHDDSpace:  0,
		TotalHDDSpace: 0,
	})

	assert.Empty(t, st.Alerts(store.AlertFilter{}))
}

func TestCheckThresholds_MemoryAndDisk(t *testing.T) {
	e, st, _ := setup(t)

	e.CheckThresholds("r1", model.SystemSnapshot{
		CPULoad:       5,
		FreeMemory:    10,
		TotalMemory:   100,
		FreeHDDSpace:  1,
		TotalHDDSpace: 100,
	})

	got := st.Alerts(store.AlertFilter{})
	assert.ElementsMatch(t, []string{
		"High memory usage on edge: 90.00%",
		"High disk usage on edge: 99.00%",
	}, messages(got))
	for _, a := range got {
		assert.Equal(t, model.SeverityWarning, a.Severity)
	}
}

func TestCheckThresholds_AtThresholdDoesNotFire(t *testing.T) {
	e, st, _ := setup(t)
	e.CheckThresholds("r1", model.SystemSnapshot{CPULoad: 80})
	assert.Empty(t, st.Alerts(store.AlertFilter{}))
}

func TestCheckThresholds_UnknownDevice(t *testing.T) {
	e, st, _ := setup(t)
	e.CheckThresholds("ghost", model.SystemSnapshot{CPULoad: 99})
	assert.Empty(t, st.Alerts(store.AlertFilter{}))
}

func TestCheckInterfaces(t *testing.T) {
	e, st, _ := setup(t)

	e.CheckInterfaces("r1", []model.InterfaceSnapshot{
		{Name: "ether1", Running: true},
		{Name: "ether2", Running: false, Disabled: false},
		{Name: "ether3", Running: false, Disabled: true},
		{Name: "ether4", Running: true, RxError: 3, TxError: 0},
		{Name: "ether5", Running: true, RxDrop: 0, TxDrop: 7},
		{Name: "bridge1", Type: "bridge", Running: false},
	})

	got := st.Alerts(store.AlertFilter{})
	assert.ElementsMatch(t, []string{
		"Interface ether2 on edge is down",
		"Interface ether4 on edge has errors (RX: 3, TX: 0)",
		"Interface ether5 on edge has packet drops (RX: 0, TX: 7)",
	}, messages(got))

	severities := map[model.AlertType]model.Severity{}
	for _, a := range got {
		severities[a.Type] = a.Severity
	}
	assert.Equal(t, map[model.AlertType]model.Severity{
		model.AlertInterfaceDown:  model.SeverityError,
		model.AlertInterfaceError: model.SeverityWarning,
		model.AlertInterfaceDrop:  model.SeverityInfo,
	}, severities)
}

func TestCheckInterfaces_OneOpenAlertPerType(t *testing.T) {
	e, st, _ := setup(t)

	e.CheckInterfaces("r1", []model.InterfaceSnapshot{
		{Name: "ether2"},
		{Name: "ether3"},
	})

	got := st.Alerts(store.AlertFilter{ActiveOnly: true})
	require.Len(t, got, 1)
	assert.Equal(t, "Interface ether2 on edge is down", got[0].Message)
}

func TestResolveThenReraise(t *testing.T) {
	e, st, _ := setup(t)
	down := []model.InterfaceSnapshot{{Name: "ether2"}}

	e.CheckInterfaces("r1", down)
	active := st.Alerts(store.AlertFilter{ActiveOnly: true})
	require.Len(t, active, 1)

	resolved, err := e.Resolve(active[0].ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	e.CheckInterfaces("r1", down)
	assert.Len(t, st.Alerts(store.AlertFilter{ActiveOnly: true}), 1)
	assert.Len(t, st.Alerts(store.AlertFilter{}), 2)

	_, err = e.Resolve(uuid.New())
	assert.ErrorIs(t, err, store.ErrAlertNotFound)
}

func TestSweep(t *testing.T) {
	e, st, _ := setup(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	e.now = func() time.Time { return now.Add(-30 * time.Hour) }
	require.True(t, e.Raise("r1", model.AlertCPULoad, "old", model.SeverityWarning))
	old := st.Alerts(store.AlertFilter{})[0]
	_, err := e.Resolve(old.ID)
	require.NoError(t, err)

	e.now = func() time.Time { return now.Add(-time.Hour) }
	require.True(t, e.Raise("r1", model.AlertCPULoad, "recent", model.SeverityWarning))
	recent := st.Alerts(store.AlertFilter{ActiveOnly: true})[0]
	_, err = e.Resolve(recent.ID)
	require.NoError(t, err)

	require.True(t, e.Raise("r1", model.AlertCPULoad, "still active", model.SeverityWarning))

	e.now = func() time.Time { return now }
	assert.Equal(t, 1, e.Sweep())
	assert.ElementsMatch(t, []string{"recent", "still active"}, messages(st.Alerts(store.AlertFilter{})))
}
