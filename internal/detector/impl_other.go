//go:build !linux && !windows && !darwin

package detector

import "github.com/Hara602/usbmonitor/device"

func newDetector(device.Filter, func(error)) (Detector, error) {
	return nil, ErrUnsupportedPlatform
}
