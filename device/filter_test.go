package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilFilterIsIdentity(t *testing.T) {
	devs := Map{"d1": {VendorID: "1234"}, "d2": {VendorID: "5678"}}

	assert.Equal(t, devs, Filter(nil).Apply(devs))
	assert.Equal(t, devs, Filter{}.Apply(devs))
}

func TestEmptyTemplateMatchesEverything(t *testing.T) {
	devs := Map{"d1": {VendorID: "1234"}, "d2": {}}

	filtered := Filter{Template{}}.Apply(devs)
	assert.Equal(t, devs, filtered)
}

func TestFilterByVendorID(t *testing.T) {
	devs := Map{
		"d1": {VendorID: "1234"},
		"d2": {VendorID: "5678"},
	}

	filtered := Filter{Template{IDVendorID: "1234"}}.Apply(devs)

	assert.Len(t, filtered, 1)
	assert.Contains(t, filtered, "d1")
}

func TestFilterIsOrOfAnds(t *testing.T) {
	devs := Map{
		"both":       {VendorID: "1234", ModelID: "abcd"},
		"vendorOnly": {VendorID: "1234", ModelID: "ffff"},
		"other":      {VendorID: "9999", ModelID: "abcd"},
		"alt":        {VendorID: "5678"},
	}
	filter := Filter{
		Template{IDVendorID: "1234", IDModelID: "abcd"}, // AND inside a template
		Template{IDVendorID: "5678"},                    // OR across templates
	}

	filtered := filter.Apply(devs)

	assert.Len(t, filtered, 2)
	assert.Contains(t, filtered, "both")
	assert.Contains(t, filtered, "alt")
}

func TestFilterMatchesInterfacesAttribute(t *testing.T) {
	info := Info{USBInterfaces: []string{"0806", "0880"}}

	assert.True(t, Filter{Template{IDUSBInterfaces: "0806:0880"}}.Matches(info))
	assert.False(t, Filter{Template{IDUSBInterfaces: "0806"}}.Matches(info))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	devs := Map{"d1": {VendorID: "1234"}, "d2": {VendorID: "5678"}}

	Filter{Template{IDVendorID: "1234"}}.Apply(devs)

	assert.Len(t, devs, 2)
}
