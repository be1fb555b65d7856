package detector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Hara602/usbmonitor/device"
	"github.com/Hara602/usbmonitor/internal/sysutil"
)

// Pure attribute extraction shared by the platform sources. Nothing in this
// file touches the native registries, so it builds and tests on any GOOS.

// splitInterfaces converts the udev ":0806:0880:" interface encoding into an
// ordered list, dropping the empty segments the separators produce.
func splitInterfaces(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, device.InterfacesSeparator) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseUEventKeyValues parses the KEY=VALUE lines of a sysfs uevent file or a
// udev data record into a map.
func parseUEventKeyValues(content string) map[string]string {
	env := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if eq := strings.IndexByte(line, '='); eq > 0 {
			env[line[:eq]] = line[eq+1:]
		}
	}
	return env
}

// parseUdevData extracts the udev property database entries ("E:KEY=VALUE"
// lines) from a /run/udev/data record.
func parseUdevData(content string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "E:") {
			continue
		}
		if eq := strings.IndexByte(line, '='); eq > 2 {
			props[line[2:eq]] = line[eq+1:]
		}
	}
	return props
}

// applyUdevProperties overlays udev-held ID_* properties onto a record. Only
// non-empty properties win so sysfs-derived values survive as fallbacks.
func applyUdevProperties(info *device.Info, props map[string]string) {
	set := func(dst *string, key string) {
		if v := props[key]; v != "" {
			*dst = v
		}
	}
	set(&info.VendorID, device.IDVendorID)
	set(&info.ModelID, device.IDModelID)
	set(&info.Vendor, device.IDVendor)
	set(&info.Model, device.IDModel)
	set(&info.Serial, device.IDSerial)
	set(&info.VendorFromDatabase, device.IDVendorFromDatabase)
	set(&info.ModelFromDatabase, device.IDModelFromDatabase)
	set(&info.USBClassFromDB, device.IDUSBClassFromDB)
	if v := props[device.IDUSBInterfaces]; v != "" {
		info.USBInterfaces = splitInterfaces(v)
	}
}

// devNodePath normalizes a kernel DEVNAME ("bus/usb/001/004") into the
// device node path udev reports ("/dev/bus/usb/001/004").
func devNodePath(devName string) string {
	if devName == "" || strings.HasPrefix(devName, "/dev") {
		return devName
	}
	return "/dev/" + devName
}

// Windows PnP instance-id cleanup. The registry exposes vendor and product
// ids only inside the composite instance id, encoded differently per driver:
// plain USB devices carry VID_xxxx/PID_xxxx pairs, mass storage re-exports
// them as VEN_/PROD_ name fields.
var windowsRegexByDriver = map[string]map[string]*regexp.Regexp{
	"USB": {
		device.IDVendorID: regexp.MustCompile(`VID_([0-9A-Fa-f]{4})`),
		device.IDModelID:  regexp.MustCompile(`PID_([0-9A-Fa-f]{4})`),
		device.DevType:    regexp.MustCompile(`^(.+?)\\`),
	},
	"USBSTOR": {
		device.IDVendorID: regexp.MustCompile(`VEN_([^&#\\]+)`),
		device.IDModelID:  regexp.MustCompile(`PROD_([^&#\\]+)`),
		device.DevType:    regexp.MustCompile(`^(.+?)\\`),
	},
}

// windowsPseudoDeviceIDs marks the virtual root-hub entries the registry
// reports alongside physical devices.
var windowsPseudoDeviceIDs = []string{"ROOT_HUB20", "ROOT_HUB30"}

func isWindowsPseudoDevice(instanceID string) bool {
	for _, marker := range windowsPseudoDeviceIDs {
		if strings.Contains(instanceID, marker) {
			return true
		}
	}
	return false
}

// windowsDriverType returns the enumerator prefix of an instance id
// ("USB\VID_..." -> "USB"). An instance id without a prefix, or with one
// missing from the regex table, means the mapping table itself is out of
// date, which is a bug rather than a runtime condition.
func windowsDriverType(instanceID string) string {
	prefix, _, ok := strings.Cut(instanceID, `\`)
	if !ok || prefix == "" {
		panic(fmt.Sprintf("usbmonitor: malformed device instance id %q", instanceID))
	}
	if _, known := windowsRegexByDriver[prefix]; !known {
		panic(fmt.Sprintf("usbmonitor: no attribute patterns for driver type %q", prefix))
	}
	return prefix
}

// extractPattern applies a capture regex across the candidate values.
// No match anywhere: warn and pass the first raw value through, so callers
// still see the platform string for unmappable outliers. Matches that
// disagree with each other indicate a broken pattern and panic.
func extractPattern(values []string, re *regexp.Regexp) string {
	var found []string
	for _, v := range values {
		if m := re.FindStringSubmatch(v); m != nil {
			found = append(found, m[1])
		}
	}
	if len(found) == 0 {
		sysutil.Log.Warn("attribute pattern found no match, passing raw value through",
			zap.String("pattern", re.String()), zap.Strings("values", values))
		if len(values) == 0 {
			return ""
		}
		return values[0]
	}
	for _, v := range found[1:] {
		if v != found[0] {
			panic(fmt.Sprintf("usbmonitor: pattern %q extracted disagreeing values %v", re.String(), found))
		}
	}
	return found[0]
}

// finetuneWindowsAttributes derives the ids the registry does not expose as
// discrete fields and uppercases vendor/product ids for schema consistency.
func finetuneWindowsAttributes(info *device.Info, instanceID string) {
	patterns := windowsRegexByDriver[windowsDriverType(instanceID)]
	values := []string{instanceID}
	info.VendorID = strings.ToUpper(extractPattern(values, patterns[device.IDVendorID]))
	info.ModelID = strings.ToUpper(extractPattern(values, patterns[device.IDModelID]))
	info.DevType = extractPattern(values, patterns[device.DevType])
}

// windowsInstanceSerial pulls the serial segment off an instance id.
// Generated (non-unique) ids contain '&' and are not real serials.
func windowsInstanceSerial(instanceID string) string {
	parts := strings.Split(instanceID, `\`)
	if len(parts) < 3 {
		return ""
	}
	serial := parts[len(parts)-1]
	if strings.Contains(serial, "&") {
		return ""
	}
	return serial
}

// ioreg output parsing for the darwin source. Node headers look like
// "+-o AppleUSBDeviceName  <class IOUSBHostDevice, id ...>"; properties are
// quoted key = value lines inside the node body.
var (
	ioregNodeRe      = regexp.MustCompile(`\+-o\s+(.+?)\s+<`)
	ioregStringProps = map[string]*regexp.Regexp{
		device.IDVendor: regexp.MustCompile(`"USB Vendor Name" = "(.*)"`),
		device.IDModel:  regexp.MustCompile(`"USB Product Name" = "(.*)"`),
		device.IDSerial: regexp.MustCompile(`"USB Serial Number" = "(.*)"`),
	}
	ioregNumberProps = map[string]*regexp.Regexp{
		device.IDVendorID:       regexp.MustCompile(`"idVendor" = (\d+)`),
		device.IDModelID:        regexp.MustCompile(`"idProduct" = (\d+)`),
		device.IDUSBClassFromDB: regexp.MustCompile(`"bDeviceClass" = (\d+)`),
	}
)

// parseIORegOutput walks the ioreg -p IOUSB -w0 -l listing and builds one
// record per device node. The node name is the device identifier; the
// simulated root-hub nodes are not physical devices and are dropped.
func parseIORegOutput(output string) device.Map {
	devs := make(device.Map)
	var current *device.Info
	currentID := ""

	flush := func() {
		if current != nil && currentID != "" && !strings.Contains(currentID, "Root Hub") {
			current.DevName = currentID
			devs[currentID] = *current
		}
		current = nil
		currentID = ""
	}

	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "+-o") {
			flush()
			if m := ioregNodeRe.FindStringSubmatch(line); m != nil {
				currentID = m[1]
				current = &device.Info{}
			}
			continue
		}
		if current == nil {
			continue
		}
		for attr, re := range ioregStringProps {
			if m := re.FindStringSubmatch(line); m != nil {
				setIORegAttr(current, attr, m[1])
			}
		}
		for attr, re := range ioregNumberProps {
			if m := re.FindStringSubmatch(line); m != nil {
				setIORegAttr(current, attr, ioregNumberValue(attr, m[1]))
			}
		}
	}
	flush()
	return devs
}

// ioregNumberValue renders ioreg's decimal properties in the hex form the
// canonical schema uses: 4 digits for vendor/product ids, 2 for class codes.
func ioregNumberValue(attr, decimal string) string {
	n, err := strconv.ParseUint(decimal, 10, 32)
	if err != nil {
		sysutil.Log.Warn("unparseable ioreg numeric property, passing raw value through",
			zap.String("attribute", attr), zap.String("value", decimal))
		return decimal
	}
	if attr == device.IDUSBClassFromDB {
		return fmt.Sprintf("%02x", n)
	}
	return fmt.Sprintf("%04x", n)
}

func setIORegAttr(info *device.Info, attr, value string) {
	switch attr {
	case device.IDVendor:
		info.Vendor = value
	case device.IDModel:
		info.Model = value
	case device.IDSerial:
		info.Serial = value
	case device.IDVendorID:
		info.VendorID = value
	case device.IDModelID:
		info.ModelID = value
	case device.IDUSBClassFromDB:
		info.USBClassFromDB = value
	}
}
