package detector

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Hara602/usbmonitor/device"
	"github.com/Hara602/usbmonitor/internal/sysutil"
)

// loopFunc is the body of the monitor goroutine. The default is pollLoop;
// sources with native push notification install their own.
type loopFunc func(onConnect, onDisconnect Callback, interval time.Duration, stop chan struct{})

// base carries the state machine and snapshot bookkeeping shared by every
// platform source. The embedding type must set query before calling init,
// and may replace runLoop for event-subscribed operation.
type base struct {
	query   func() (device.Map, error)
	filter  device.Filter
	onError func(error)
	runLoop loopFunc

	// mu guards lastCheck and the lifecycle fields. The monitor goroutine and
	// direct CheckChanges calls both read-modify-write lastCheck, so every
	// access goes through it.
	mu            sync.Mutex
	lastCheck     device.Map
	running       bool
	stopRequested bool
	stop          chan struct{}
	done          chan struct{}
}

// init takes the on-start snapshot. Construction fails if the first native
// query does, so a freshly built monitor always has a valid reference.
func (b *base) init() error {
	devs, err := b.GetAvailableDevices()
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.lastCheck = devs.Clone()
	b.mu.Unlock()
	return nil
}

func (b *base) GetAvailableDevices() (device.Map, error) {
	devs, err := b.query()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return b.filter.Apply(devs), nil
}

func (b *base) ChangesFromLastCheck(update bool) (removed, added device.Map, err error) {
	current, err := b.GetAvailableDevices()
	if err != nil {
		return nil, nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	removed, added = device.Diff(current, b.lastCheck)
	if update {
		b.lastCheck = current.Clone()
	}
	return removed, added, nil
}

func (b *base) CheckChanges(onConnect, onDisconnect Callback, update bool) error {
	removed, added, err := b.ChangesFromLastCheck(update)
	if err != nil {
		return err
	}
	if onDisconnect != nil {
		for id, info := range removed {
			onDisconnect(id, info)
		}
	}
	if onConnect != nil {
		for id, info := range added {
			onConnect(id, info)
		}
	}
	return nil
}

func (b *base) StartMonitoring(onConnect, onDisconnect Callback, interval time.Duration) error {
	if onConnect == nil && onDisconnect == nil {
		sysutil.Log.Warn("monitoring started without callbacks, changes will only refresh the reference snapshot")
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	b.stop, b.done = stop, done
	b.running = true
	b.stopRequested = false
	b.mu.Unlock()

	loop := b.runLoop
	if loop == nil {
		loop = b.pollLoop
	}
	go func() {
		defer close(done)
		loop(onConnect, onDisconnect, interval, stop)
	}()
	return nil
}

func (b *base) StopMonitoring(timeout time.Duration, warnIfStopped bool) {
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	b.mu.Lock()
	if !b.running || b.stopRequested {
		b.mu.Unlock()
		if warnIfStopped {
			sysutil.Log.Warn("usb monitor is not running, nothing to stop")
		}
		return
	}
	b.stopRequested = true
	stop, done := b.stop, b.done
	b.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(timeout):
		// Best-effort cleanup: the goroutine may still be stuck in a native
		// call, but the monitor is reusable once the state is cleared.
		sysutil.Log.Warn("usb monitor did not stop in time, clearing state anyway",
			zap.Duration("timeout", timeout))
	}

	b.mu.Lock()
	b.running = false
	b.stopRequested = false
	b.mu.Unlock()
}

// pollLoop drives polling-mode sources: snapshot, diff, dispatch, then an
// interruptible wait so stop latency never exceeds one interval.
func (b *base) pollLoop(onConnect, onDisconnect Callback, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		if err := b.CheckChanges(onConnect, onDisconnect, true); err != nil {
			failures++
			sysutil.Log.Warn("device query failed during monitoring",
				zap.Int("consecutive", failures), zap.Error(err))
			b.reportError(err)
		} else {
			failures = 0
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// reportError surfaces a background failure to the owner instead of letting
// the loop spin silently.
func (b *base) reportError(err error) {
	if b.onError != nil {
		b.onError(err)
	}
}

// storedInfo looks up the cached record for an identifier. Event-mode
// sources use it to replay a device that is already gone.
func (b *base) storedInfo(id string) (device.Info, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.lastCheck[id]
	return info, ok
}

// refreshReference replaces the stored snapshot with a fresh query. Used by
// event-mode sources after dispatching a native add or remove.
func (b *base) refreshReference() {
	devs, err := b.GetAvailableDevices()
	if err != nil {
		sysutil.Log.Warn("reference snapshot refresh failed", zap.Error(err))
		b.reportError(err)
		return
	}
	b.mu.Lock()
	b.lastCheck = devs.Clone()
	b.mu.Unlock()
}
