//go:build windows

package detector

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/Hara602/usbmonitor/device"
)

// setupAPIEnumerators are the PnP enumerators queried per snapshot: the USB
// bus itself plus the mass-storage re-enumeration, mirroring the devices a
// WHERE PNPDeviceID LIKE 'USB%' registry query would return.
var setupAPIEnumerators = []string{"USB", "USBSTOR"}

// windowsDetector queries the SetupAPI device registry. Device info sets are
// opened and closed per query, so the source has no thread affinity and the
// polling goroutine can share it safely.
type windowsDetector struct {
	base
}

func newDetector(filter device.Filter, onError func(error)) (Detector, error) {
	d := &windowsDetector{}
	d.base.filter = filter
	d.base.onError = onError
	d.base.query = d.queryDevices
	if err := d.base.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *windowsDetector) queryDevices() (device.Map, error) {
	devs := make(device.Map)
	for _, enumerator := range setupAPIEnumerators {
		if err := d.queryEnumerator(enumerator, devs); err != nil {
			return nil, err
		}
	}
	return devs, nil
}

func (d *windowsDetector) queryEnumerator(enumerator string, out device.Map) error {
	devInfo, err := windows.SetupDiGetClassDevsEx(
		nil, enumerator, 0, windows.DIGCF_PRESENT|windows.DIGCF_ALLCLASSES, 0, "")
	if err != nil {
		return fmt.Errorf("SetupDiGetClassDevsEx(%s): %w", enumerator, err)
	}
	defer devInfo.Close()

	for i := 0; ; i++ {
		data, err := devInfo.EnumDeviceInfo(i)
		if err != nil {
			// ERROR_NO_MORE_ITEMS ends the enumeration.
			break
		}
		instanceID, err := devInfo.DeviceInstanceID(data)
		if err != nil || instanceID == "" {
			continue
		}
		if isWindowsPseudoDevice(instanceID) {
			continue
		}
		out[instanceID] = buildWindowsRecord(devInfo, data, instanceID)
	}
	return nil
}

// buildWindowsRecord maps the registry properties onto the canonical schema.
// The registry's friendly name stands in for both vendor and model name, as
// it is the only human-readable device name PnP exposes; the discrete ids
// are recovered from the composite instance id afterwards.
func buildWindowsRecord(devInfo windows.DevInfo, data *windows.DevInfoData, instanceID string) device.Info {
	name := registryString(devInfo, data, windows.SPDRP_FRIENDLYNAME)
	if name == "" {
		name = registryString(devInfo, data, windows.SPDRP_DEVICEDESC)
	}

	info := device.Info{
		Model:              name,
		Vendor:             name,
		ModelFromDatabase:  registryString(devInfo, data, windows.SPDRP_DEVICEDESC),
		VendorFromDatabase: registryString(devInfo, data, windows.SPDRP_MFG),
		USBClassFromDB:     registryString(devInfo, data, windows.SPDRP_CLASS),
		USBInterfaces:      registryStringList(devInfo, data, windows.SPDRP_COMPATIBLEIDS),
		Serial:             windowsInstanceSerial(instanceID),
		DevName:            instanceID,
		DevType:            instanceID,
	}
	finetuneWindowsAttributes(&info, instanceID)
	return info
}

func registryString(devInfo windows.DevInfo, data *windows.DevInfoData, prop windows.SPDRP) string {
	value, err := devInfo.DeviceRegistryProperty(data, prop)
	if err != nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func registryStringList(devInfo windows.DevInfo, data *windows.DevInfoData, prop windows.SPDRP) []string {
	value, err := devInfo.DeviceRegistryProperty(data, prop)
	if err != nil {
		return nil
	}
	switch v := value.(type) {
	case []string:
		return v
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
