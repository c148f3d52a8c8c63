package usbmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDevicePropertiesAcceptsDaemonIntegerTypes(t *testing.T) {
	m := map[string]any{
		"SerialNumber":    "ABC123",
		"ProductID":       uint64(4776),
		"LocationID":      int64(338690048),
		"ConnectionSpeed": int(480000000),
		"ConnectionType":  "USB",
	}
	p := parseDeviceProperties(m)
	assert.Equal(t, "ABC123", p.SerialNumber)
	assert.Equal(t, uint32(4776), p.ProductID)
	assert.Equal(t, uint32(338690048), p.LocationID)
	assert.Equal(t, uint32(480000000), p.ConnectionSpeed)
	assert.Equal(t, "USB", p.ConnectionType)
}

func TestParseDevicePropertiesIgnoresUnknownTypes(t *testing.T) {
	p := parseDeviceProperties(map[string]any{"ProductID": "not-a-number"})
	assert.Equal(t, uint32(0), p.ProductID)
}
