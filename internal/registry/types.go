package registry

import "github.com/hollowgate/irfleet-core/internal/device"

// DeviceSpec describes one configured physical device (or a rack of
// identical ones, via Count) per §4.4/§6.
type DeviceSpec struct {
	Type     string // "itach"; reserved for future hardware families
	Host     string
	TCPPort  int // default 4998
	Module   int // default 1
	MaxPorts int // default 3
	Count    int // default 1; replicates across Count sequential host IPs
}

func (s DeviceSpec) withDefaults() DeviceSpec {
	if s.TCPPort == 0 {
		s.TCPPort = 4998
	}
	if s.Module == 0 {
		s.Module = 1
	}
	if s.MaxPorts == 0 {
		s.MaxPorts = 3
	}
	if s.Count == 0 {
		s.Count = 1
	}
	return s
}

// SlotMapping binds one externally-assigned slot to a port on one
// expanded device. DeviceIndex refers to the flattened device list
// produced by expanding every DeviceSpec's Count.
type SlotMapping struct {
	Slot        int
	DeviceIndex int
	Port        int
}

// LogicalAddress is a (module, port) pair identifying an IR port on one
// physical device.
type LogicalAddress struct {
	Module int
	Port   int
}

// SlotHealth is one row of a diagnostics listing.
type SlotHealth struct {
	Slot    int
	Address LogicalAddress
	Health  device.HealthRecord
}

type slotEntry struct {
	address LogicalAddress
	conn    *device.Connection
}

type expandedDevice struct {
	spec DeviceSpec
	host string
}
