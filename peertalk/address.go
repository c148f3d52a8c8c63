package peertalk

import "strconv"

// Address identifies the peer at the other end of a Channel. For network
// peers, Name is a textual IPv4 address; for USB peers, Name is the decimal
// device id (spec.md §3).
type Address struct {
	Name string
	Port int
}

func (a Address) String() string {
	return a.Name + ":" + strconv.Itoa(a.Port)
}

// NetworkAddress builds the Address for a direct IPv4 peer.
func NetworkAddress(ipv4 string, port int) Address {
	return Address{Name: ipv4, Port: port}
}

// usbAddress builds the Address for a USB-bridged peer: its name is the
// decimal device id and its port is the remote TCP port on that device.
func usbAddress(deviceID uint32, port int) Address {
	return Address{Name: strconv.FormatUint(uint64(deviceID), 10), Port: port}
}
