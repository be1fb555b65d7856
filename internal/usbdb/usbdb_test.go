package usbdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUSBIDs = `#
#	List of USB ID's
#
046d  Logitech, Inc.
	c24f  G29 Driving Force Racing Wheel
	c534  Unifying Receiver
05e3  Genesys Logic, Inc.
	0610  Hub

# List of known device classes
C 00  (Defined at Interface level)
C 03  Human Interface Device
	01  Boot Interface Subclass
		01  Keyboard
C 09  Hub
`

func loadSample(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usb.ids")
	require.NoError(t, os.WriteFile(path, []byte(sampleUSBIDs), 0o644))
	require.NoError(t, Load(path))
}

func TestVendorName(t *testing.T) {
	loadSample(t)

	assert.Equal(t, "Logitech, Inc.", VendorName("046d"))
	assert.Equal(t, "Logitech, Inc.", VendorName("046D"), "lookup is case-insensitive")
	assert.Equal(t, "", VendorName("ffff"))
}

func TestProductName(t *testing.T) {
	loadSample(t)

	assert.Equal(t, "Unifying Receiver", ProductName("046d", "c534"))
	assert.Equal(t, "Hub", ProductName("05E3", "0610"))
	assert.Equal(t, "", ProductName("046d", "0000"))
	assert.Equal(t, "", ProductName("ffff", "c534"))
}

func TestClassName(t *testing.T) {
	loadSample(t)

	assert.Equal(t, "Human Interface Device", ClassName("03"))
	assert.Equal(t, "Hub", ClassName("09"))
	assert.Equal(t, "", ClassName("fe"))
}

func TestSubclassLinesAreNotProducts(t *testing.T) {
	loadSample(t)

	// "01  Boot Interface Subclass" sits under class 03, not under a vendor.
	assert.Equal(t, "", ProductName("046d", "0001"))
	assert.Equal(t, "", VendorName("0001"))
}

func TestLoadMissingFile(t *testing.T) {
	assert.Error(t, Load(filepath.Join(t.TempDir(), "absent.ids")))
}
