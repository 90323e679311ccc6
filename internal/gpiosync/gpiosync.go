// Package gpiosync pulses a GPIO output line once per output frame
// tick, for studio hardware (tally lights, legacy sync generators) that
// wants an electrical heartbeat alongside the protocol outputs. It is a
// supplementary feature beyond the distilled spec (see SPEC_FULL.md
// §4.l); the teacher's go.mod already carries
// github.com/warthog618/go-gpiocdev as the modern replacement for its
// unix-ioctl PTT path (src/ptt.go), wired here to a new, in-scope use.
package gpiosync

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// pulseHigh/pulseLow are the two logic levels a tick alternates between;
// a consumer watching the line sees a square wave at half the output
// frame rate (one level per frame) rather than a single-sample blip that
// a slow poller could miss.
const (
	pulseHigh = 1
	pulseLow  = 0
)

// outputLine is the capability Pulser needs from a GPIO line, narrowed
// from *gpiocdev.Line so tests can substitute a mock without the
// gpio-sim kernel module (mirrors the teacher's mockGPIODLine in
// src/ptt_test.go).
type outputLine interface {
	SetValue(value int) error
	Close() error
}

// Pulser drives one GPIO output line, one tick at a time. Not
// goroutine-safe by design: callers invoke Tick from the same
// orchestration thread that drives Engine.Tick (spec.md §5 thread 1).
type Pulser struct {
	line  outputLine
	level int
}

// Open requests offset on chip (e.g. "gpiochip0") as an output and
// returns a Pulser for it.
func Open(chip string, offset int) (*Pulser, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(pulseLow))
	if err != nil {
		return nil, fmt.Errorf("gpiosync: request line %s:%d: %w", chip, offset, err)
	}
	return &Pulser{line: line, level: pulseLow}, nil
}

// Tick flips the line's level. Called once per output frame tick.
func (p *Pulser) Tick() error {
	if p.level == pulseLow {
		p.level = pulseHigh
	} else {
		p.level = pulseLow
	}
	return p.line.SetValue(p.level)
}

// Close releases the underlying line, leaving it low.
func (p *Pulser) Close() error {
	if p.line == nil {
		return nil
	}
	_ = p.line.SetValue(pulseLow)
	return p.line.Close()
}
