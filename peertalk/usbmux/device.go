package usbmux

// Device is the record published by the hub's enumeration (spec.md §3
// "Device record"): a stable numeric id plus the daemon's property map for
// it. Device records are created on Attached notifications and destroyed
// on Detached; a Channel already connected to a device survives detach but
// observes a transport error on its next I/O.
type Device struct {
	ID         uint32
	Properties DeviceProperties
}

// DeviceProperties mirrors the well-known keys the daemon reports in an
// Attached notification's Properties dictionary (original_source
// PTUSBHub.h's documented example payload).
type DeviceProperties struct {
	SerialNumber    string
	ProductID       uint32
	LocationID      uint32
	ConnectionSpeed uint32
	ConnectionType  string
}

func parseDeviceProperties(m map[string]any) DeviceProperties {
	var p DeviceProperties
	if v, ok := m["SerialNumber"].(string); ok {
		p.SerialNumber = v
	}
	if v, ok := toUint32(m["ProductID"]); ok {
		p.ProductID = v
	}
	if v, ok := toUint32(m["LocationID"]); ok {
		p.LocationID = v
	}
	if v, ok := toUint32(m["ConnectionSpeed"]); ok {
		p.ConnectionSpeed = v
	}
	if v, ok := m["ConnectionType"].(string); ok {
		p.ConnectionType = v
	}
	return p
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint64:
		return uint32(n), true
	case int64:
		return uint32(n), true
	case int:
		return uint32(n), true
	case uint32:
		return n, true
	default:
		return 0, false
	}
}
