// Package mtc implements the MIDI Time Code decoder/encoder: 8-quarter-
// frame reassembly and Full-Frame SysEx on the input side, and the 4
// QF/frame drift-free emitter on the output side. Both sides see only raw
// MIDI bytes — MIDI port I/O itself is an external collaborator.
package mtc

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/lanewave/tcbridge/internal/tcconst"
	"github.com/lanewave/tcbridge/internal/timecode"
)

// Input reassembles quarter-frame and full-frame MIDI Time Code messages
// into a synced Timecode and exposes an interpolated "now" between syncs.
//
// All mutating methods are intended to be called from the single MIDI
// callback thread that owns the port (spec.md §5); CurrentTimecode may be
// called concurrently from another thread and sees a coherent triple via
// the synced/tcLock discipline in spec.md §5.
type Input struct {
	// nibbles is callback-thread-local: no synchronization needed.
	nibbles [8]uint8

	synced atomic.Bool

	tcLock       sync.Mutex
	syncTc       timecode.Timecode
	syncMs       int64
	detectedRate timecode.FrameRate
	lastMsgMs    int64
}

// NewInput returns a fresh, unsynced Input.
func NewInput() *Input {
	return &Input{detectedRate: timecode.FPS_30}
}

// HandleQuarterFrame processes one MTC quarter-frame data byte (the byte
// that followed a 0xF1 status byte on the wire). nowMs is the caller's
// wall-clock timestamp in milliseconds, used both for liveness and as the
// publish time of any resulting sync point.
func (in *Input) HandleQuarterFrame(data byte, nowMs int64) {
	idx := (data >> 4) & 0x07
	val := data & 0x0F
	in.nibbles[idx] = val
	in.markReceived(nowMs)

	if idx == 7 {
		in.reconstruct(nowMs)
	}
}

// reconstruct rebuilds (h,m,s,f)+rateCode from the 8 accumulated nibbles
// and, if the fields are in range, publishes a new sync point two frames
// ahead (the 8-QF sequence describes the timecode at its start).
func (in *Input) reconstruct(nowMs int64) {
	n := in.nibbles

	frames := (n[1]&0x01)<<4 | (n[0] & 0x0F)
	seconds := (n[3]&0x03)<<4 | (n[2] & 0x0F)
	minutes := (n[5]&0x03)<<4 | (n[4] & 0x0F)
	hoursHighBit := n[7] & 0x01
	hours := hoursHighBit<<4 | (n[6] & 0x0F)
	rateCode := (n[7] >> 1) & 0x03

	rate, ok := timecode.RateFromCode(rateCode)
	if !ok {
		rate = in.currentRateLocked()
	}

	tc := timecode.Timecode{Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames}
	if !tc.InRange(rate) {
		return // ProtocolFraming: out-of-range reconstructed fields, dropped silently.
	}

	tc = timecode.AdvanceFrames(tc, 2, rate)
	in.publish(tc, rate, nowMs)
}

func (in *Input) currentRateLocked() timecode.FrameRate {
	in.tcLock.Lock()
	defer in.tcLock.Unlock()
	return in.detectedRate
}

// markReceived records nowMs as the last time any MTC message arrived,
// under tcLock so CurrentTimecode's triple read can never tear against it.
func (in *Input) markReceived(nowMs int64) {
	in.tcLock.Lock()
	in.lastMsgMs = nowMs
	in.tcLock.Unlock()
}

// HandleFullFrame processes a complete MTC Full-Frame SysEx message:
// F0 7F 7F 01 01 HR MN SC FR F7. Accepted unconditionally (replacing any
// prior sync point) provided the framing and field ranges are valid.
func (in *Input) HandleFullFrame(msg []byte, nowMs int64) {
	in.markReceived(nowMs)

	if len(msg) != 10 ||
		msg[0] != 0xF0 || msg[1] != 0x7F || msg[2] != 0x7F ||
		msg[3] != 0x01 || msg[4] != 0x01 || msg[9] != 0xF7 {
		return // ProtocolFraming
	}

	hr := msg[5]
	rateCode := (hr >> 5) & 0x03
	hours := hr & 0x1F
	minutes, seconds, frames := msg[6], msg[7], msg[8]

	rate, ok := timecode.RateFromCode(rateCode)
	if !ok {
		rate = in.currentRateLocked()
	}

	tc := timecode.Timecode{Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames}
	if !tc.InRange(rate) {
		return
	}

	in.publish(tc, rate, nowMs)
}

func (in *Input) publish(tc timecode.Timecode, rate timecode.FrameRate, nowMs int64) {
	in.tcLock.Lock()
	in.syncTc = tc
	in.syncMs = nowMs
	in.detectedRate = rate
	in.tcLock.Unlock()
	in.synced.Store(true)
}

// CurrentTimecode returns the last sync point advanced by elapsed time
// since it was published, and whether the source is currently "receiving"
// (any quarter-frame or Full-Frame message arrived within
// tcconst.SourceTimeoutMs of nowMs). When not
// receiving, the last sync point is returned unchanged.
func (in *Input) CurrentTimecode(nowMs int64) (tc timecode.Timecode, rate timecode.FrameRate, receiving bool) {
	if !in.synced.Load() {
		return timecode.Timecode{}, timecode.FPS_30, false
	}

	in.tcLock.Lock()
	syncTc, syncMs, detectedRate, lastMsgMs := in.syncTc, in.syncMs, in.detectedRate, in.lastMsgMs
	in.tcLock.Unlock()

	if nowMs-lastMsgMs > tcconst.SourceTimeoutMs {
		return syncTc, detectedRate, false
	}

	elapsedMs := nowMs - syncMs
	framesAdvance := int64(math.Floor(float64(elapsedMs) * detectedRate.RealFPS() / 1000.0))
	tc = timecode.AdvanceFrames(syncTc, framesAdvance, detectedRate)
	return tc, detectedRate, true
}

// HandleRaw dispatches one raw MIDI message to HandleQuarterFrame or
// HandleFullFrame by its leading status byte, so a MIDI port adapter can
// hand Input every message it receives without knowing MTC framing
// itself (spec.md §1: MIDI port I/O is an external collaborator).
// Anything else (notes, clock, etc.) is silently ignored.
func (in *Input) HandleRaw(msg []byte, nowMs int64) {
	if len(msg) == 0 {
		return
	}
	switch msg[0] {
	case 0xF1:
		if len(msg) >= 2 {
			in.HandleQuarterFrame(msg[1], nowMs)
		}
	case 0xF0:
		in.HandleFullFrame(msg, nowMs)
	}
}
