// Package detector hosts the platform device sources and the monitor loop
// shared between them. Each supported GOOS contributes one implementation of
// Detector behind a build tag; New hands back the right one for the running
// platform.
package detector

import (
	"errors"
	"time"

	"github.com/Hara602/usbmonitor/device"
)

var (
	// ErrUnsupportedPlatform is returned by New on a GOOS without a device source.
	ErrUnsupportedPlatform = errors.New("usbmonitor: unsupported platform")

	// ErrAlreadyRunning is returned by StartMonitoring while a monitor goroutine
	// is active. Stop the monitor before starting it again.
	ErrAlreadyRunning = errors.New("usbmonitor: monitor already running")

	// ErrQueryFailed wraps failures of the native device enumeration call.
	ErrQueryFailed = errors.New("usbmonitor: device query failed")
)

const (
	// DefaultCheckInterval is the polling period between snapshots.
	DefaultCheckInterval = 500 * time.Millisecond

	// DefaultStopTimeout bounds how long StopMonitoring waits for the monitor
	// goroutine to exit before giving up on the join.
	DefaultStopTimeout = 5 * time.Second
)

// Callback receives one connect or disconnect notification. It runs
// synchronously on the monitor goroutine, so it must not block for long.
type Callback func(deviceID string, info device.Info)

// Detector is the per-platform capability set behind the public facade.
type Detector interface {
	// GetAvailableDevices queries the native registry and returns the filtered
	// snapshot of currently attached USB devices. Zero devices is not an error.
	GetAvailableDevices() (device.Map, error)

	// ChangesFromLastCheck takes a fresh snapshot and diffs it against the
	// stored reference. With update true the reference is replaced by the new
	// snapshot (consume); with false it is left alone (peek).
	ChangesFromLastCheck(update bool) (removed, added device.Map, err error)

	// CheckChanges is ChangesFromLastCheck plus callback dispatch: every
	// disconnect fires before any connect.
	CheckChanges(onConnect, onDisconnect Callback, update bool) error

	// StartMonitoring spawns the background monitor. Fails with
	// ErrAlreadyRunning when one is active.
	StartMonitoring(onConnect, onDisconnect Callback, interval time.Duration) error

	// StopMonitoring signals the monitor to stop and waits up to timeout for
	// it to exit. Calling it on a stopped monitor warns unless suppressed.
	StopMonitoring(timeout time.Duration, warnIfStopped bool)
}

// New builds the device source for the running platform and takes the
// on-start snapshot, which becomes the initial diff reference.
func New(filter device.Filter, onError func(error)) (Detector, error) {
	return newDetector(filter, onError)
}
