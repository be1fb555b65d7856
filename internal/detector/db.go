package detector

import (
	"github.com/Hara602/usbmonitor/device"
	"github.com/Hara602/usbmonitor/internal/usbdb"
)

// fillFromDatabase backfills the *_FROM_DATABASE attributes from usb.ids when
// the native registry did not provide them. A raw 2-hex class code left by the
// platform parser is upgraded to the database class name when one exists;
// otherwise the code stays visible to the caller.
func fillFromDatabase(info *device.Info) {
	if info.VendorFromDatabase == "" && info.VendorID != "" {
		info.VendorFromDatabase = usbdb.VendorName(info.VendorID)
	}
	if info.ModelFromDatabase == "" && info.VendorID != "" && info.ModelID != "" {
		info.ModelFromDatabase = usbdb.ProductName(info.VendorID, info.ModelID)
	}
	if len(info.USBClassFromDB) == 2 {
		if name := usbdb.ClassName(info.USBClassFromDB); name != "" {
			info.USBClassFromDB = name
		}
	}
}
