package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/hollowgate/irfleet-core/internal/device"
)

// Registry owns every Device Connection in the fleet and maps the flat
// slot addressing scheme the Dispatcher uses onto them. It exclusively
// owns Connection lifecycles; callers only ever receive non-owning
// handles via resolve.
type Registry struct {
	mu     sync.RWMutex
	slots  map[int]slotEntry
	all    []*device.Connection
	logger *slog.Logger
}

// New builds every Device Connection described by specs, opens them,
// and indexes slots per mappings. If any connection fails its first
// dial attempt the Registry is still returned — Device Connections
// retry on their own backoff schedule, and Registry.List surfaces the
// Faulted state for diagnostics.
func New(ctx context.Context, specs []DeviceSpec, mappings []SlotMapping, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	expanded, err := expandSpecs(specs)
	if err != nil {
		return nil, err
	}

	conns := make([][]*device.Connection, len(expanded))
	for di, ed := range expanded {
		conns[di] = make([]*device.Connection, ed.spec.MaxPorts+1) // 1-indexed by port
		for port := 1; port <= ed.spec.MaxPorts; port++ {
			conn := device.NewConnection(device.Config{
				Host:    ed.host,
				TCPPort: ed.spec.TCPPort,
				Module:  ed.spec.Module,
				Port:    port,
				Logger:  logger,
			})
			if err := conn.Open(ctx); err != nil {
				logger.Warn("device connection failed initial dial, will retry in background",
					"host", ed.host, "module", ed.spec.Module, "port", port, "error", err)
			}
			conns[di][port] = conn
		}
	}

	r := &Registry{
		slots:  make(map[int]slotEntry, len(mappings)),
		logger: logger,
	}

	for _, m := range mappings {
		if m.DeviceIndex < 0 || m.DeviceIndex >= len(expanded) {
			return nil, fmt.Errorf("%w: slot %d references device index %d out of range", ErrBadDeviceSpec, m.Slot, m.DeviceIndex)
		}
		ed := expanded[m.DeviceIndex]
		if m.Port < 1 || m.Port > ed.spec.MaxPorts {
			return nil, fmt.Errorf("%w: slot %d references port %d out of range for device %d", ErrBadDeviceSpec, m.Slot, m.Port, m.DeviceIndex)
		}
		r.slots[m.Slot] = slotEntry{
			address: LogicalAddress{Module: ed.spec.Module, Port: m.Port},
			conn:    conns[m.DeviceIndex][m.Port],
		}
	}

	for _, perDevice := range conns {
		for _, c := range perDevice {
			if c != nil {
				r.all = append(r.all, c)
			}
		}
	}

	return r, nil
}

// expandSpecs flattens DeviceSpec.Count into one entry per physical
// device, incrementing the host's last IPv4 octet for each replica.
func expandSpecs(specs []DeviceSpec) ([]expandedDevice, error) {
	var out []expandedDevice
	for _, raw := range specs {
		spec := raw.withDefaults()
		if spec.Count == 1 {
			out = append(out, expandedDevice{spec: spec, host: spec.Host})
			continue
		}

		ip := net.ParseIP(spec.Host).To4()
		if ip == nil {
			return nil, fmt.Errorf("%w: count=%d requires an IPv4 host, got %q", ErrBadDeviceSpec, spec.Count, spec.Host)
		}
		for i := 0; i < spec.Count; i++ {
			replica := make(net.IP, len(ip))
			copy(replica, ip)
			replica[3] += byte(i)
			out = append(out, expandedDevice{spec: spec, host: replica.String()})
		}
	}
	return out, nil
}

// Resolve returns the connection and logical address bound to slot.
func (r *Registry) Resolve(slot int) (LogicalAddress, *device.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.slots[slot]
	if !ok {
		return LogicalAddress{}, nil, fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}
	return entry.address, entry.conn, nil
}

// List returns a health snapshot for every mapped slot, for diagnostics.
func (r *Registry) List() []SlotHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SlotHealth, 0, len(r.slots))
	for slot, entry := range r.slots {
		out = append(out, SlotHealth{
			Slot:    slot,
			Address: entry.address,
			Health:  entry.conn.Health(),
		})
	}
	return out
}

// Shutdown drains and closes every Device Connection, mapped or not.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	conns := r.all
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *device.Connection) {
			defer wg.Done()
			if err := c.Close(ctx); err != nil {
				r.logger.Warn("connection close failed", "error", err)
			}
		}(c)
	}
	wg.Wait()
}
