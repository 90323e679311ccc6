package mtc

import (
	"sync"

	"github.com/lanewave/tcbridge/internal/midiio"
	"github.com/lanewave/tcbridge/internal/timecode"
)

// Output emits 4 MTC quarter-frame messages per frame (8 QF over two
// frames) on a drift-free fractional accumulator, and re-syncs receivers
// with a Full-Frame message after a pause/resume.
//
// Tick is driven externally (by a 1ms timer in the real daemon, or
// directly by a test) so the accumulator math stays pure and testable;
// see spec.md §4.c / §9 for why a plain "sleep until next ideal time" or
// integer-ms tick counter is not acceptable here.
type Output struct {
	writer midiio.MessageWriter

	mu      sync.Mutex
	running bool

	targetTc   timecode.Timecode
	targetRate timecode.FrameRate

	lastSendMs float64
	qfIndex    int
	cycleTc    timecode.Timecode
}

// NewOutput returns an Output that writes quarter-frame/full-frame
// messages to w.
func NewOutput(w midiio.MessageWriter) *Output {
	return &Output{writer: w, targetRate: timecode.FPS_30}
}

// SetTarget updates the Timecode/FrameRate the next quarter frames will
// describe. Safe to call from a different thread than Tick (e.g. the
// engine's orchestration thread); each handler owns its own pending state
// per spec.md §5.
func (o *Output) SetTarget(tc timecode.Timecode, rate timecode.FrameRate) {
	o.mu.Lock()
	o.targetTc = tc
	o.targetRate = rate
	o.mu.Unlock()
}

// Resume zeros the quarter-frame index, emits a Full-Frame message to
// re-sync receivers, and restarts the drift-free accumulator from nowMs.
func (o *Output) Resume(nowMs float64) {
	o.mu.Lock()
	o.running = true
	o.qfIndex = 0
	tc, rate := o.targetTc, o.targetRate
	o.lastSendMs = nowMs
	o.mu.Unlock()

	o.sendFullFrame(tc, rate)
}

// Pause stops quarter-frame emission. Idempotent.
func (o *Output) Pause() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

// Tick advances the drift-free accumulator to nowMs, sending at most two
// quarter frames per call (catch-up burst cap) and resetting the
// accumulator if the caller fell behind by more than 50ms (e.g. the
// process was suspended).
func (o *Output) Tick(nowMs float64) {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}

	if nowMs-o.lastSendMs > 50 {
		o.lastSendMs = nowMs
	}

	idealInterval := 1000.0 / (o.targetRate.RealFPS() * 4.0)
	sent := 0
	for nowMs-o.lastSendMs >= idealInterval && sent < 2 {
		o.sendQFLocked()
		o.lastSendMs += idealInterval
		sent++
	}
	o.mu.Unlock()
}

// sendQFLocked must be called with o.mu held. On index 0 it snapshots
// targetTc into cycleTc so all 8 nibbles of the two-frame cycle describe
// the same frame (cycle coherence, spec.md §4.c).
func (o *Output) sendQFLocked() {
	if o.qfIndex == 0 {
		o.cycleTc = o.targetTc
	}

	nibble := qfNibble(o.qfIndex, o.cycleTc, o.targetRate)
	o.writer.WriteMIDI([]byte{0xF1, byte(o.qfIndex)<<4 | nibble})

	o.qfIndex = (o.qfIndex + 1) % 8
}

// qfNibble extracts the nibble value for quarter-frame index idx from tc
// at rate, using the same bit layout HandleQuarterFrame decodes.
func qfNibble(idx int, tc timecode.Timecode, rate timecode.FrameRate) byte {
	rateCode := timecode.RateToCode(rate)
	switch idx {
	case 0:
		return tc.Frames & 0x0F
	case 1:
		return (tc.Frames >> 4) & 0x01
	case 2:
		return tc.Seconds & 0x0F
	case 3:
		return (tc.Seconds >> 4) & 0x03
	case 4:
		return tc.Minutes & 0x0F
	case 5:
		return (tc.Minutes >> 4) & 0x03
	case 6:
		return tc.Hours & 0x0F
	case 7:
		hoursHighBit := (tc.Hours >> 4) & 0x01
		return rateCode<<1 | hoursHighBit
	default:
		return 0
	}
}

// sendFullFrame emits F0 7F 7F 01 01 HR MN SC FR F7, suppressing the send
// if tc is out of range for rate (spec.md §4.c range validation).
func (o *Output) sendFullFrame(tc timecode.Timecode, rate timecode.FrameRate) {
	if !tc.InRange(rate) {
		return
	}
	hr := timecode.RateToCode(rate)<<5 | (tc.Hours & 0x1F)
	msg := []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, hr, tc.Minutes, tc.Seconds, tc.Frames, 0xF7}
	o.writer.WriteMIDI(msg)
}
