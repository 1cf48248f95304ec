package dispatcher

import (
	"context"
	"time"

	"github.com/hollowgate/irfleet-core/internal/device"
	"github.com/hollowgate/irfleet-core/internal/gcprotocol"
	"github.com/hollowgate/irfleet-core/internal/keyset"
	"github.com/hollowgate/irfleet-core/internal/registry"
)

// healthWatchInterval is how often the background health watcher polls
// the Registry for state transitions to publish as Events.
const healthWatchInterval = 5 * time.Second

// Outcome is the structured result of one Dispatcher operation, the
// façade contract offered to the external HTTP layer per §6.
type Outcome struct {
	Status    string // "ok" | "error"
	RequestID int
	ElapsedMs int64
	Err       error
}

func okOutcome(requestID int, elapsed time.Duration) Outcome {
	return Outcome{Status: "ok", RequestID: requestID, ElapsedMs: elapsed.Milliseconds()}
}

func errOutcome(err error, elapsed time.Duration) Outcome {
	return Outcome{Status: "error", ElapsedMs: elapsed.Milliseconds(), Err: err}
}

// Dispatcher is the façade: given (slot, device_name, key_name,
// {repeats|hold_ms}), it resolves the target connection, fetches the
// waveform, computes repeat count, issues the command, and returns a
// structured result.
type Dispatcher struct {
	registry  *registry.Registry
	catalogue *keyset.KeysetCatalogue
	fanout    *fanout
}

// New builds a Dispatcher over an already-constructed Registry and
// KeysetCatalogue. observers receive best-effort Events for every
// press outcome and health transition; pass nil for none.
func New(reg *registry.Registry, catalogue *keyset.KeysetCatalogue, observers ...Observer) *Dispatcher {
	return &Dispatcher{
		registry:  reg,
		catalogue: catalogue,
		fanout:    newFanout(observers),
	}
}

// Close stops the telemetry fan-out workers. It does not touch the
// Registry; call registry.Shutdown separately.
func (d *Dispatcher) Close() {
	d.fanout.close()
}

// DroppedEvents reports how many telemetry events were discarded
// because the fan-out queue was full.
func (d *Dispatcher) DroppedEvents() uint64 {
	return d.fanout.droppedCount()
}

// Press issues one logical key press repeated count times.
func (d *Dispatcher) Press(ctx context.Context, slot int, deviceName, keyName string, count int) Outcome {
	start := time.Now()
	address, conn, wave, err := d.resolve(slot, deviceName, keyName)
	if err != nil {
		return d.finish(slot, address, deviceName, keyName, OperationPress, start, errOutcome(err, time.Since(start)))
	}

	sendir := buildSendIR(wave, address.Module, address.Port, repeatForCount(count))
	frame, err := conn.SendIR(ctx, sendir)
	return d.finish(slot, address, deviceName, keyName, OperationPress, start, outcomeFrom(frame, err, start))
}

// PressAndHold computes <repeat> from durationMs and the waveform's
// durations, issuing one sendir, or — when the computed repeat count
// would exceed the connection's MaxRepeats — falling back to a
// continuous burst per §4.5.
func (d *Dispatcher) PressAndHold(ctx context.Context, slot int, deviceName, keyName string, durationMs int) Outcome {
	start := time.Now()
	address, conn, wave, err := d.resolve(slot, deviceName, keyName)
	if err != nil {
		return d.finish(slot, address, deviceName, keyName, OperationHold, start, errOutcome(err, time.Since(start)))
	}

	repeat := repeatForHold(wave.BaseDurationMs(), wave.RepeatDurationMs(), durationMs)
	maxRepeats := conn.Model().MaxRepeats()

	var frame gcprotocol.Frame
	if repeat <= maxRepeats {
		sendir := buildSendIR(wave, address.Module, address.Port, repeat)
		frame, err = conn.SendIR(ctx, sendir)
	} else {
		frame, err = continuousHold(ctx, conn, wave, address, maxRepeats, durationMs)
	}
	return d.finish(slot, address, deviceName, keyName, OperationHold, start, outcomeFrom(frame, err, start))
}

// Stop cancels ongoing repeats on the port bound to slot, including an
// in-progress continuous burst.
func (d *Dispatcher) Stop(ctx context.Context, slot int) Outcome {
	start := time.Now()
	address, conn, err := d.registry.Resolve(slot)
	if err != nil {
		return errOutcome(err, time.Since(start))
	}
	err = conn.StopIR(ctx)
	if err != nil {
		return d.finish(slot, address, "", "", OperationStop, start, errOutcome(err, time.Since(start)))
	}
	return d.finish(slot, address, "", "", OperationStop, start, okOutcome(0, time.Since(start)))
}

// ListKeys returns every key name known for deviceName.
func (d *Dispatcher) ListKeys(deviceName string) ([]string, error) {
	return d.catalogue.ListKeys(deviceName)
}

// Health returns aggregated Registry health for every mapped slot.
func (d *Dispatcher) Health() []registry.SlotHealth {
	return d.registry.List()
}

// WatchHealth polls the Registry at healthWatchInterval and publishes
// an EventHealthTransition whenever a slot's state changes, until ctx
// is cancelled. Intended to run as a background goroutine for the
// lifetime of the process.
func (d *Dispatcher) WatchHealth(ctx context.Context) {
	last := make(map[int]device.State)
	ticker := time.NewTicker(healthWatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, h := range d.registry.List() {
				if prev, ok := last[h.Slot]; !ok || prev != h.Health.State {
					last[h.Slot] = h.Health.State
					d.fanout.publish(Event{
						Kind:    EventHealthTransition,
						Slot:    h.Slot,
						Address: h.Address,
						Outcome: h.Health.State.String(),
						At:      time.Now(),
					})
				}
			}
		}
	}
}

func (d *Dispatcher) resolve(slot int, deviceName, keyName string) (registry.LogicalAddress, *device.Connection, keyset.IRWaveform, error) {
	address, conn, err := d.registry.Resolve(slot)
	if err != nil {
		return registry.LogicalAddress{}, nil, keyset.IRWaveform{}, err
	}
	wave, err := d.catalogue.Lookup(deviceName, keyName)
	if err != nil {
		return address, nil, keyset.IRWaveform{}, err
	}
	return address, conn, wave, nil
}

func (d *Dispatcher) finish(slot int, address registry.LogicalAddress, deviceName, keyName string, op Operation, start time.Time, outcome Outcome) Outcome {
	d.fanout.publish(Event{
		Kind:       EventPressOutcome,
		Operation:  op,
		Slot:       slot,
		Address:    address,
		DeviceName: deviceName,
		KeyName:    keyName,
		Outcome:    outcome.Status,
		Err:        outcome.Err,
		ElapsedMs:  outcome.ElapsedMs,
		At:         start,
	})
	return outcome
}

func outcomeFrom(frame gcprotocol.Frame, err error, start time.Time) Outcome {
	elapsed := time.Since(start)
	if err != nil {
		return errOutcome(err, elapsed)
	}
	return okOutcome(frame.ID, elapsed)
}

// buildSendIR assembles the sendir parameters for one waveform per
// §4.2: durations are base_cycles, then intra_sig_pause_cycles, then
// repeat_cycles when a repeat segment exists.
func buildSendIR(wave keyset.IRWaveform, module, port, repeat int) gcprotocol.SendIR {
	offset := 1
	durations := append([]int{}, wave.BaseCycles...)
	if len(wave.RepeatCycles) > 0 {
		offset = len(wave.BaseCycles) + 1
		durations = append(durations, wave.IntraSigPauseCycles)
		durations = append(durations, wave.RepeatCycles...)
	}
	return gcprotocol.SendIR{
		Module:    module,
		Port:      port,
		FreqHz:    wave.ModulationFreqHz,
		Repeat:    repeat,
		Offset:    offset,
		Durations: durations,
	}
}

// continuousHold realizes a hold duration whose computed repeat count
// exceeds the connection's firmware cap: repeated max-repeat sendir
// bursts sharing one request id, fire-and-forget except the final,
// awaited burst, at a cadence of one every max_repeat_duration/4.
func continuousHold(ctx context.Context, conn *device.Connection, wave keyset.IRWaveform, address registry.LogicalAddress, maxRepeats, durationMs int) (gcprotocol.Frame, error) {
	id := conn.NextID()
	sendir := buildSendIR(wave, address.Module, address.Port, maxRepeats)

	maxRepeatDuration := time.Duration(wave.BaseDurationMicros()+float64(maxRepeats-1)*wave.RepeatDurationMicros()) * time.Microsecond
	cadence := maxRepeatDuration / 4
	deadline := time.Now().Add(time.Duration(durationMs) * time.Millisecond)

	for time.Now().Add(maxRepeatDuration).Before(deadline) {
		_, _ = conn.SendIRAsync(id, sendir, time.Now().Add(maxRepeatDuration+2*time.Second))
		select {
		case <-time.After(cadence):
		case <-ctx.Done():
			return gcprotocol.Frame{}, ctx.Err()
		}
	}

	return conn.SendIRWithID(ctx, id, sendir)
}
