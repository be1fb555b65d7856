// Package usbmonitor reports the USB devices attached to the host and
// notifies on connections and disconnections, behind one attribute schema
// and one monitoring contract on Linux, Windows and macOS.
//
// Typical use:
//
//	mon, err := usbmonitor.New()
//	if err != nil {
//		// ...
//	}
//	defer mon.Close()
//
//	err = mon.StartMonitoring(
//		func(id string, info device.Info) { fmt.Println("connected:", id) },
//		func(id string, info device.Info) { fmt.Println("disconnected:", id) },
//		usbmonitor.DefaultCheckInterval,
//	)
package usbmonitor

import (
	"time"

	"go.uber.org/zap"

	"github.com/Hara602/usbmonitor/device"
	"github.com/Hara602/usbmonitor/internal/detector"
	"github.com/Hara602/usbmonitor/internal/sysutil"
)

// Errors surfaced by the monitor. Test with errors.Is; QueryFailed wraps the
// underlying native failure.
var (
	ErrUnsupportedPlatform = detector.ErrUnsupportedPlatform
	ErrAlreadyRunning      = detector.ErrAlreadyRunning
	ErrQueryFailed         = detector.ErrQueryFailed
)

const (
	// DefaultCheckInterval is the polling period used when StartMonitoring is
	// given a non-positive interval.
	DefaultCheckInterval = detector.DefaultCheckInterval

	// DefaultStopTimeout bounds the StopMonitoring join wait when given a
	// non-positive timeout.
	DefaultStopTimeout = detector.DefaultStopTimeout
)

// Callback receives one connect or disconnect notification, synchronously on
// the monitor goroutine.
type Callback = detector.Callback

// Option configures a USBMonitor at construction.
type Option func(*options)

type options struct {
	filter  device.Filter
	onError func(error)
}

// WithFilter restricts reported devices to those matching at least one of the
// given attribute templates. Each template is an AND of attribute equalities:
//
//	usbmonitor.WithFilter(device.Template{device.IDVendorID: "046d"})
func WithFilter(templates ...device.Template) Option {
	return func(o *options) {
		o.filter = append(o.filter, templates...)
	}
}

// WithErrorCallback registers a sink for background query failures, so a
// repeatedly failing native registry surfaces instead of only being logged.
func WithErrorCallback(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// SetLogger routes the library's log output (warnings, diagnostics) into the
// given zap logger.
func SetLogger(l *zap.Logger) {
	sysutil.SetLogger(l)
}

// USBMonitor is the platform-independent entry point. It owns one device
// source chosen for the running platform and at most one background monitor.
type USBMonitor struct {
	det detector.Detector
}

// New selects the device source for the running platform and takes the
// initial snapshot, which seeds the change-detection reference. It fails
// with ErrUnsupportedPlatform on an unknown GOOS, or with a QueryFailed
// error when the first native enumeration fails.
func New(opts ...Option) (*USBMonitor, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	det, err := detector.New(o.filter, o.onError)
	if err != nil {
		return nil, err
	}
	return &USBMonitor{det: det}, nil
}

// GetAvailableDevices returns the filtered snapshot of currently attached
// USB devices, keyed by device identifier. Zero devices yields an empty map,
// not an error.
func (m *USBMonitor) GetAvailableDevices() (device.Map, error) {
	return m.det.GetAvailableDevices()
}

// ChangesFromLastCheck diffs a fresh snapshot against the stored reference.
// With updateLastCheck the reference is advanced (consume); without it the
// same changes will be reported again (peek).
func (m *USBMonitor) ChangesFromLastCheck(updateLastCheck bool) (removed, added device.Map, err error) {
	return m.det.ChangesFromLastCheck(updateLastCheck)
}

// CheckChanges performs one check cycle and dispatches callbacks: every
// disconnect for the cycle fires before any connect.
func (m *USBMonitor) CheckChanges(onConnect, onDisconnect Callback, updateLastCheck bool) error {
	return m.det.CheckChanges(onConnect, onDisconnect, updateLastCheck)
}

// StartMonitoring spawns the background monitor, which invokes the callbacks
// on every device transition until StopMonitoring. Fails with
// ErrAlreadyRunning while a monitor is active. Both callbacks nil is
// accepted but pointless, and logged as such.
func (m *USBMonitor) StartMonitoring(onConnect, onDisconnect Callback, interval time.Duration) error {
	return m.det.StartMonitoring(onConnect, onDisconnect, interval)
}

// StopMonitoring signals the monitor to stop and waits up to timeout for the
// goroutine to exit, logging a warning on timeout or when nothing is running.
func (m *USBMonitor) StopMonitoring(timeout time.Duration) {
	m.det.StopMonitoring(timeout, true)
}

// Close stops monitoring without the not-running warning. Safe to defer
// right after New.
func (m *USBMonitor) Close() error {
	m.det.StopMonitoring(DefaultStopTimeout, false)
	return nil
}
