//go:build darwin

package detector

import (
	"fmt"
	"os/exec"

	"github.com/Hara602/usbmonitor/device"
)

// darwinDetector shells out to ioreg, the I/O Registry inspection tool, and
// parses its IOUSB plane listing. There is no push notification here, so the
// source runs in polling mode.
type darwinDetector struct {
	base
}

func newDetector(filter device.Filter, onError func(error)) (Detector, error) {
	d := &darwinDetector{}
	d.base.filter = filter
	d.base.onError = onError
	d.base.query = d.queryDevices
	if err := d.base.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *darwinDetector) queryDevices() (device.Map, error) {
	out, err := exec.Command("ioreg", "-p", "IOUSB", "-w0", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("ioreg: %w", err)
	}

	devs := parseIORegOutput(string(out))
	for id, info := range devs {
		fillFromDatabase(&info)
		devs[id] = info
	}
	return devs, nil
}
