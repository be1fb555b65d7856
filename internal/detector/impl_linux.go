//go:build linux

package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"go.uber.org/zap"

	"github.com/Hara602/usbmonitor/device"
	"github.com/Hara602/usbmonitor/internal/sysutil"
)

const (
	sysUSBDevices = "/sys/bus/usb/devices"
	udevDataDir   = "/run/udev/data"
)

// linuxDetector enumerates over sysfs enriched with the udev property
// database, and monitors through a netlink uevent subscription instead of
// polling.
type linuxDetector struct {
	base
}

func newDetector(filter device.Filter, onError func(error)) (Detector, error) {
	d := &linuxDetector{}
	d.base.filter = filter
	d.base.onError = onError
	d.base.query = d.queryDevices
	d.base.runLoop = d.eventLoop
	if err := d.base.init(); err != nil {
		return nil, err
	}
	return d, nil
}

// queryDevices walks /sys/bus/usb/devices. Interface nodes ("1-1:1.0") and
// host controllers report other DEVTYPEs and fall out on the usb_device
// check, which leaves exactly the device-level entries.
func (d *linuxDetector) queryDevices() (device.Map, error) {
	entries, err := os.ReadDir(sysUSBDevices)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sysUSBDevices, err)
	}

	devs := make(device.Map, len(entries))
	for _, entry := range entries {
		sysPath := filepath.Join(sysUSBDevices, entry.Name())
		env := readUEventFile(sysPath)
		if env[device.DevType] != "usb_device" {
			continue
		}
		info := d.readDevice(sysPath, env)
		if info.DevName == "" {
			continue
		}
		devs[info.DevName] = info
	}
	return devs, nil
}

// readDevice assembles one record: kernel uevent fields first, then the udev
// property database, then raw sysfs attributes for whatever is still empty,
// then usb.ids for the database-derived names.
func (d *linuxDetector) readDevice(sysPath string, env map[string]string) device.Info {
	info := device.Info{
		DevName: devNodePath(env[device.DevName]),
		DevType: env[device.DevType],
	}

	// The env of a udev-processed uevent already carries the ID_* properties;
	// the uevent file of an enumerated device does not, so pull the matching
	// record out of /run/udev/data.
	applyUdevProperties(&info, env)
	if props := readUdevData(env["MAJOR"], env["MINOR"]); props != nil {
		applyUdevProperties(&info, props)
	}

	if info.VendorID == "" {
		info.VendorID = readSysAttr(sysPath, "idVendor")
	}
	if info.ModelID == "" {
		info.ModelID = readSysAttr(sysPath, "idProduct")
	}
	if info.Vendor == "" {
		info.Vendor = readSysAttr(sysPath, "manufacturer")
	}
	if info.Model == "" {
		info.Model = readSysAttr(sysPath, "product")
	}
	if info.Serial == "" {
		info.Serial = readSysAttr(sysPath, "serial")
	}
	if info.USBClassFromDB == "" {
		info.USBClassFromDB = readSysAttr(sysPath, "bDeviceClass")
	}
	if len(info.USBInterfaces) == 0 {
		info.USBInterfaces = readSysInterfaces(sysPath)
	}

	fillFromDatabase(&info)
	return info
}

// eventLoop subscribes to udev uevents over netlink. The connection is
// created inside the monitor goroutine so its lifetime matches the loop.
func (d *linuxDetector) eventLoop(onConnect, onDisconnect Callback, interval time.Duration, stop chan struct{}) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		sysutil.Log.Warn("netlink connect failed, falling back to polling", zap.Error(err))
		d.pollLoop(onConnect, onDisconnect, interval, stop)
		return
	}
	defer conn.Close()

	queue := make(chan netlink.UEvent, 10)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, nil)
	defer close(quit)

	for {
		select {
		case <-stop:
			return
		case err := <-errs:
			if err != nil {
				sysutil.Log.Warn("udev monitor error", zap.Error(err))
				d.reportError(err)
			}
		case uevent := <-queue:
			d.handleUEvent(uevent, onConnect, onDisconnect)
		}
	}
}

func (d *linuxDetector) handleUEvent(uevent netlink.UEvent, onConnect, onDisconnect Callback) {
	if uevent.Env["SUBSYSTEM"] != "usb" || uevent.Env[device.DevType] != "usb_device" {
		return
	}
	id := devNodePath(uevent.Env[device.DevName])
	if id == "" {
		return
	}

	switch uevent.Action {
	case "add":
		sysPath := "/sys" + uevent.KObj
		info := d.readDevice(sysPath, uevent.Env)
		if !d.filter.Matches(info) {
			return
		}
		if onConnect != nil {
			onConnect(id, info)
		}
		d.refreshReference()
	case "remove":
		// The device is gone, so replay the record cached at the last check.
		info, ok := d.storedInfo(id)
		if ok && onDisconnect != nil {
			onDisconnect(id, info)
		}
		d.refreshReference()
	}
}

func readUEventFile(sysPath string) map[string]string {
	b, err := os.ReadFile(filepath.Join(sysPath, "uevent"))
	if err != nil {
		return map[string]string{}
	}
	return parseUEventKeyValues(string(b))
}

// readUdevData loads the udev property record for a character device, named
// c<major>:<minor> under /run/udev/data.
func readUdevData(major, minor string) map[string]string {
	if major == "" || minor == "" {
		return nil
	}
	b, err := os.ReadFile(filepath.Join(udevDataDir, "c"+major+":"+minor))
	if err != nil {
		return nil
	}
	return parseUdevData(string(b))
}

func readSysAttr(sysPath, name string) string {
	b, err := os.ReadFile(filepath.Join(sysPath, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// readSysInterfaces collects the class/subclass/protocol triple of every
// interface node below a device ("1-1:1.0", "1-1:1.1", ...), in sysfs order.
func readSysInterfaces(sysPath string) []string {
	prefix := filepath.Base(sysPath) + ":"
	entries, err := os.ReadDir(sysPath)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		ifacePath := filepath.Join(sysPath, entry.Name())
		class := readSysAttr(ifacePath, "bInterfaceClass")
		sub := readSysAttr(ifacePath, "bInterfaceSubClass")
		proto := readSysAttr(ifacePath, "bInterfaceProtocol")
		if class == "" {
			continue
		}
		out = append(out, class+sub+proto)
	}
	return out
}
