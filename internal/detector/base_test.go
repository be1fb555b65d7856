package detector

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hara602/usbmonitor/device"
)

// fakeSource stands in for a native device registry: the test sets the
// snapshot it should report next.
type fakeSource struct {
	mu   sync.Mutex
	devs device.Map
	err  error
}

func (f *fakeSource) set(devs device.Map) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devs = devs
	f.err = nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) query() (device.Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.devs.Clone(), nil
}

func newTestDetector(t *testing.T, initial device.Map) (*base, *fakeSource) {
	t.Helper()
	src := &fakeSource{devs: initial}
	b := &base{query: src.query}
	require.NoError(t, b.init())
	return b, src
}

func TestChangesFromLastCheck(t *testing.T) {
	dev1 := device.Info{VendorID: "1234", ModelID: "abcd"}
	b, src := newTestDetector(t, device.Map{})

	src.set(device.Map{"dev1": dev1})
	removed, added, err := b.ChangesFromLastCheck(true)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, device.Map{"dev1": dev1}, added)

	src.set(device.Map{})
	removed, added, err = b.ChangesFromLastCheck(true)
	require.NoError(t, err)
	assert.Equal(t, device.Map{"dev1": dev1}, removed)
	assert.Empty(t, added)
}

func TestPeekDoesNotAdvanceReference(t *testing.T) {
	b, src := newTestDetector(t, device.Map{})
	src.set(device.Map{"dev1": {}})

	_, added, err := b.ChangesFromLastCheck(false)
	require.NoError(t, err)
	require.Len(t, added, 1)

	// Without consuming, the same addition is reported again.
	_, added, err = b.ChangesFromLastCheck(false)
	require.NoError(t, err)
	assert.Len(t, added, 1)

	// Consuming clears it.
	_, added, err = b.ChangesFromLastCheck(true)
	require.NoError(t, err)
	require.Len(t, added, 1)
	_, added, err = b.ChangesFromLastCheck(true)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestDisconnectsFireBeforeConnects(t *testing.T) {
	b, src := newTestDetector(t, device.Map{"old": {}})
	src.set(device.Map{"new": {}})

	var order []string
	err := b.CheckChanges(
		func(id string, _ device.Info) { order = append(order, "connect:"+id) },
		func(id string, _ device.Info) { order = append(order, "disconnect:"+id) },
		true,
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"disconnect:old", "connect:new"}, order)
}

func TestUnchangedSnapshotFiresNoCallbacks(t *testing.T) {
	b, _ := newTestDetector(t, device.Map{"dev1": {VendorID: "1234"}})

	calls := 0
	cb := func(string, device.Info) { calls++ }
	require.NoError(t, b.CheckChanges(cb, cb, true))
	require.NoError(t, b.CheckChanges(cb, cb, true))

	assert.Zero(t, calls)
}

func TestQueryFailureWrapsSentinel(t *testing.T) {
	b, src := newTestDetector(t, device.Map{})
	src.fail(errors.New("registry unavailable"))

	_, err := b.GetAvailableDevices()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueryFailed)

	_, _, err = b.ChangesFromLastCheck(true)
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestFilterAppliedToSnapshots(t *testing.T) {
	src := &fakeSource{devs: device.Map{
		"d1": {VendorID: "1234"},
		"d2": {VendorID: "5678"},
	}}
	b := &base{query: src.query, filter: device.Filter{{device.IDVendorID: "1234"}}}
	require.NoError(t, b.init())

	devs, err := b.GetAvailableDevices()
	require.NoError(t, err)
	assert.Len(t, devs, 1)
	assert.Contains(t, devs, "d1")
}

func TestStartMonitoringTwiceFails(t *testing.T) {
	b, _ := newTestDetector(t, device.Map{})
	cb := func(string, device.Info) {}

	require.NoError(t, b.StartMonitoring(cb, nil, 10*time.Millisecond))
	defer b.StopMonitoring(time.Second, false)

	assert.ErrorIs(t, b.StartMonitoring(cb, nil, 10*time.Millisecond), ErrAlreadyRunning)
}

func TestStopThenRestart(t *testing.T) {
	b, _ := newTestDetector(t, device.Map{})
	cb := func(string, device.Info) {}

	require.NoError(t, b.StartMonitoring(cb, nil, 10*time.Millisecond))
	b.StopMonitoring(time.Second, true)

	require.NoError(t, b.StartMonitoring(cb, nil, 10*time.Millisecond))
	b.StopMonitoring(time.Second, true)
}

func TestStopWhenNotRunningIsNonFatal(t *testing.T) {
	b, _ := newTestDetector(t, device.Map{})

	// Warns (or stays silent when suppressed) but never fails.
	b.StopMonitoring(time.Second, true)
	b.StopMonitoring(time.Second, false)
}

func TestMonitorReportsTransitions(t *testing.T) {
	b, src := newTestDetector(t, device.Map{})

	connected := make(chan string, 4)
	disconnected := make(chan string, 4)
	require.NoError(t, b.StartMonitoring(
		func(id string, _ device.Info) { connected <- id },
		func(id string, _ device.Info) { disconnected <- id },
		5*time.Millisecond,
	))
	defer b.StopMonitoring(time.Second, false)

	src.set(device.Map{"dev1": {VendorID: "1234"}})
	select {
	case id := <-connected:
		assert.Equal(t, "dev1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("connect notification never arrived")
	}

	src.set(device.Map{})
	select {
	case id := <-disconnected:
		assert.Equal(t, "dev1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect notification never arrived")
	}
}

func TestMonitorSurfacesRepeatedQueryFailures(t *testing.T) {
	src := &fakeSource{devs: device.Map{}}
	errs := make(chan error, 8)
	b := &base{query: src.query, onError: func(err error) {
		select {
		case errs <- err:
		default:
		}
	}}
	require.NoError(t, b.init())

	require.NoError(t, b.StartMonitoring(func(string, device.Info) {}, nil, 5*time.Millisecond))
	defer b.StopMonitoring(time.Second, false)

	src.fail(errors.New("registry down"))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrQueryFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("background failure never surfaced")
	}
}

func TestStopIsPromptDespiteLongInterval(t *testing.T) {
	b, _ := newTestDetector(t, device.Map{})
	require.NoError(t, b.StartMonitoring(func(string, device.Info) {}, nil, time.Hour))

	start := time.Now()
	b.StopMonitoring(5*time.Second, true)

	assert.Less(t, time.Since(start), time.Second, "stop must interrupt the interval wait")
}
