// Package midihost adapts gitlab.com/gomidi/midi/v2 to the internal
// midiio capability interface and to the raw-byte callback MtcInput
// expects, so internal/mtc never imports a concrete MIDI library
// (spec.md §1: MIDI port I/O is an external collaborator's concern). The
// host binary must blank-import a concrete driver package (e.g.
// gitlab.com/gomidi/midi/v2/drivers/rtmididrv) to register a backend.
package midihost

import (
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// OutputPort adapts a MIDI output port to midiio.MessageWriter.
type OutputPort struct {
	out drivers.Out
}

// OpenOutput finds and opens the named output port.
func OpenOutput(name string) (*OutputPort, error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("midihost: find output port %q: %w", name, err)
	}
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("midihost: open output port %q: %w", name, err)
	}
	return &OutputPort{out: out}, nil
}

// WriteMIDI implements midiio.MessageWriter.
func (p *OutputPort) WriteMIDI(data []byte) error {
	return p.out.Send(data)
}

// Close releases the underlying port.
func (p *OutputPort) Close() error {
	return p.out.Close()
}

// InputPort wraps a MIDI input port, delivering each raw message to cb on
// the driver's own callback thread, matching spec.md §5 thread 2 ("one
// MIDI callback thread per opened MIDI input device").
type InputPort struct {
	in   drivers.In
	stop func()
}

// OpenInput finds and opens the named input port, calling cb with every
// raw message (including timing-clock and quarter-frame bytes) until
// Close is called.
func OpenInput(name string, cb func(msg []byte, nowMs int64)) (*InputPort, error) {
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("midihost: find input port %q: %w", name, err)
	}

	stop, err := midi.ListenTo(in, func(msg []byte, milliseconds int32) {
		// milliseconds is the driver's own internal clock, not wall time;
		// every liveness/interpolation calculation downstream assumes
		// time.Now().UnixMilli() units (spec.md §5), so we stamp it here.
		cb(msg, time.Now().UnixMilli())
	})
	if err != nil {
		return nil, fmt.Errorf("midihost: listen on input port %q: %w", name, err)
	}

	return &InputPort{in: in, stop: stop}, nil
}

// Close stops delivery and releases the underlying port. Idempotent.
func (p *InputPort) Close() error {
	if p.stop == nil {
		return nil
	}
	p.stop()
	p.stop = nil
	return p.in.Close()
}

// OutputPorts/InputPorts list the system's available MIDI ports by name,
// for the settings UI's device picker.
func OutputPorts() []string {
	names := make([]string, 0)
	for _, p := range midi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

func InputPorts() []string {
	names := make([]string, 0)
	for _, p := range midi.GetInPorts() {
		names = append(names, p.String())
	}
	return names
}
