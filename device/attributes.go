// Package device defines the canonical USB device attribute schema shared by
// every platform backend, plus the snapshot filter and differ that operate on it.
//
// Attribute keys deliberately reuse the udev property names (ID_VENDOR_ID,
// ID_MODEL, ...) so that records look the same no matter which operating
// system produced them.
package device

// Canonical attribute keys. Values are scalar strings except IDUSBInterfaces,
// which is an ordered list.
const (
	IDModelID            = "ID_MODEL_ID"
	IDModel              = "ID_MODEL"
	IDModelFromDatabase  = "ID_MODEL_FROM_DATABASE"
	IDVendor             = "ID_VENDOR"
	IDVendorID           = "ID_VENDOR_ID"
	IDVendorFromDatabase = "ID_VENDOR_FROM_DATABASE"
	IDSerial             = "ID_SERIAL"
	IDUSBInterfaces      = "ID_USB_INTERFACES"
	IDUSBClassFromDB     = "ID_USB_CLASS_FROM_DATABASE"
	DevName              = "DEVNAME"
	DevType              = "DEVTYPE"
)

// InterfacesSeparator joins/splits the ID_USB_INTERFACES attribute, matching
// the udev encoding (":0806:0880:" style strings).
const InterfacesSeparator = ":"

// Attributes lists every canonical key, in the order records are reported.
var Attributes = []string{
	IDModelID,
	IDModel,
	IDModelFromDatabase,
	IDVendor,
	IDVendorID,
	IDVendorFromDatabase,
	IDSerial,
	IDUSBInterfaces,
	IDUSBClassFromDB,
	DevName,
	DevType,
}

// Info is one normalized device record. Fields default to the empty string
// when the platform cannot provide them, so every record carries the full
// schema and any attribute can be looked up unconditionally.
type Info struct {
	ModelID            string
	Model              string
	ModelFromDatabase  string
	Vendor             string
	VendorID           string
	VendorFromDatabase string
	Serial             string
	USBInterfaces      []string
	USBClassFromDB     string
	DevName            string
	DevType            string
}

// Attr returns the value of a canonical attribute by key. The list-valued
// ID_USB_INTERFACES attribute is returned joined with InterfacesSeparator.
// ok is false only for keys outside the canonical schema.
func (i Info) Attr(key string) (value string, ok bool) {
	switch key {
	case IDModelID:
		return i.ModelID, true
	case IDModel:
		return i.Model, true
	case IDModelFromDatabase:
		return i.ModelFromDatabase, true
	case IDVendor:
		return i.Vendor, true
	case IDVendorID:
		return i.VendorID, true
	case IDVendorFromDatabase:
		return i.VendorFromDatabase, true
	case IDSerial:
		return i.Serial, true
	case IDUSBInterfaces:
		return joinInterfaces(i.USBInterfaces), true
	case IDUSBClassFromDB:
		return i.USBClassFromDB, true
	case DevName:
		return i.DevName, true
	case DevType:
		return i.DevType, true
	}
	return "", false
}

func joinInterfaces(ifaces []string) string {
	out := ""
	for _, s := range ifaces {
		if s == "" {
			continue
		}
		if out != "" {
			out += InterfacesSeparator
		}
		out += s
	}
	return out
}

// Map is a snapshot: device identifier to record, as visible at one instant.
type Map map[string]Info

// Clone returns a shallow copy of the snapshot. Records are value types, so
// the copy can be stored as a reference point without aliasing the source map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for id, info := range m {
		out[id] = info
	}
	return out
}
