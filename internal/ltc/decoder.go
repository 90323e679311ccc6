// Package ltc implements the Linear Timecode codec: a biphase-mark audio
// decoder that recovers frame-rate and Timecode purely from signal
// transitions (no separate clock), and an encoder that synthesises the
// same waveform with free-running auto-increment.
package ltc

import (
	"sync/atomic"

	"github.com/lanewave/tcbridge/internal/tcconst"
	"github.com/lanewave/tcbridge/internal/timecode"
)

// syncWord is the LTC sync pattern occupying bits 64..79 of the 80-bit
// frame (0011 1111 1111 1101, LSB-first on the wire).
const syncWord uint16 = 0xBFFC

// goodFrameDebounce is how many consecutive in-range, sync-latched
// frames are required before a newly detected rate is committed
// (spec.md §4.f).
const goodFrameDebounce = 3

// maxSyncGapSeconds: if the measured gap between two sync words exceeds
// this, the period measurement is discarded as meaningless (e.g. after a
// dropout) and the debounce counter restarts.
const maxSyncGapSeconds = 2.0

// Decoder is callback-thread-only: every field below is touched solely
// by the audio callback that owns the LTC input device, so there is no
// synchronization within the decoder itself (spec.md §4.f/§5). Only the
// published snapshot at the bottom is safe to read from another thread.
type Decoder struct {
	sampleRate float64

	// Edge/bit-cell recovery state.
	signalHigh        bool
	samplesSinceEdge  int64
	bitPeriodEstimate float64
	halfBitPending    bool

	// 80-bit shift register: bits 0-63 in shiftRegLow, bits 64-79 (sync
	// word when locked) in shiftRegHigh. New bits enter at bit 79 and
	// the oldest bit (bit 0) falls off.
	shiftRegLow  uint64
	shiftRegHigh uint16

	samplesSinceLastSync  int64
	candidateRate         timecode.FrameRate
	consecutiveGoodFrames int

	// forceFPS2398, set by the user override (spec.md §4.i/§9): 23.976
	// and 24 fps are bit-for-bit indistinguishable, so auto-detection
	// can never tell them apart on its own.
	forceFPS2398 bool

	committedRate timecode.FrameRate

	// Published snapshot: safe for concurrent readers.
	packedTc        atomic.Uint32
	rateCode        atomic.Uint32
	lastFrameTimeMs atomic.Int64
	synced          atomic.Bool
}

// NewDecoder returns a Decoder for audio sampled at sampleRate Hz. The
// bit-period estimate is seeded to Fs/2160, the midpoint between the
// mean transition rates of 24 and 30 fps biphase-mark LTC, to minimise
// convergence time.
func NewDecoder(sampleRate float64) *Decoder {
	return &Decoder{
		sampleRate:        sampleRate,
		bitPeriodEstimate: sampleRate / 2160.0,
		committedRate:     timecode.FPS_30,
	}
}

// ForceFPS2398 sets whether a committed FPS_24 detection should instead
// be reported as FPS_2398 (spec.md §9: the user's explicit choice, never
// overwritten by auto-detect for this ambiguous pair).
func (d *Decoder) ForceFPS2398(force bool) {
	d.forceFPS2398 = force
}

// ProcessSample feeds one audio sample (already gain-applied by the
// caller) through edge detection and bit classification. nowMs is the
// caller's wall-clock timestamp, stamped onto any frame latched this
// call.
func (d *Decoder) ProcessSample(sample float32, nowMs int64) {
	d.samplesSinceEdge++
	d.samplesSinceLastSync++

	wasHigh := d.signalHigh
	switch {
	case sample > 0.05:
		d.signalHigh = true
	case sample < -0.05:
		d.signalHigh = false
	}
	if d.signalHigh == wasHigh {
		return
	}

	interval := float64(d.samplesSinceEdge)
	d.samplesSinceEdge = 0
	d.classifyEdge(interval, nowMs)
}

// classifyEdge implements spec.md §4.f's bit-classification table.
func (d *Decoder) classifyEdge(interval float64, nowMs int64) {
	halfBit := d.bitPeriodEstimate / 2.0

	switch {
	case interval < 0.4*halfBit || interval > 1.8*d.bitPeriodEstimate:
		// Invalid transition: drop any pending half-bit.
		d.halfBitPending = false

	case interval < 0.75*d.bitPeriodEstimate:
		// A half-bit cell.
		if d.halfBitPending {
			d.pushBit(1, nowMs)
			d.bitPeriodEstimate = 0.95*d.bitPeriodEstimate + 0.05*(interval*2)
			d.halfBitPending = false
		} else {
			d.halfBitPending = true
		}

	default:
		// A full bit cell (~bitPeriod).
		d.halfBitPending = false // salvage: a stray pending half-bit is discarded
		d.pushBit(0, nowMs)
		d.bitPeriodEstimate = 0.95*d.bitPeriodEstimate + 0.05*interval
	}
}

// pushBit shifts bit into the 80-bit register at the newest position and
// checks for the sync word.
func (d *Decoder) pushBit(bit uint8, nowMs int64) {
	carryToLow := uint64(d.shiftRegHigh&1) << 63
	d.shiftRegHigh = (d.shiftRegHigh >> 1) | (uint16(bit) << 15)
	d.shiftRegLow = (d.shiftRegLow >> 1) | carryToLow

	if d.shiftRegHigh == syncWord {
		d.latchFrame(nowMs)
	}
}

// latchFrame decodes the 64 payload bits currently held below the sync
// word, validates field ranges, measures the inter-sync period for rate
// detection, and — once debounced — publishes the result.
func (d *Decoder) latchFrame(nowMs int64) {
	low := d.shiftRegLow

	frameUnits := uint8(low & 0xF)
	frameTens := uint8((low >> 8) & 0x3)
	dropFrameFlag := (low>>10)&1 == 1
	secUnits := uint8((low >> 16) & 0xF)
	secTens := uint8((low >> 24) & 0x7)
	minUnits := uint8((low >> 32) & 0xF)
	minTens := uint8((low >> 40) & 0x7)
	hourUnits := uint8((low >> 48) & 0xF)
	hourTens := uint8((low >> 56) & 0x3)

	frames := frameTens*10 + frameUnits
	seconds := secTens*10 + secUnits
	minutes := minTens*10 + minUnits
	hours := hourTens*10 + hourUnits

	period := float64(d.samplesSinceLastSync) / d.sampleRate
	d.samplesSinceLastSync = 0

	if hours > 23 || minutes > 59 || seconds > 59 || frames > 29 {
		return
	}
	tc := timecode.Timecode{Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames}

	if period > maxSyncGapSeconds || period <= 0 {
		d.consecutiveGoodFrames = 0
	} else {
		detected := classifyRate(period, dropFrameFlag)
		if detected == d.candidateRate {
			d.consecutiveGoodFrames++
		} else {
			d.candidateRate = detected
			d.consecutiveGoodFrames = 1
		}
		if d.consecutiveGoodFrames >= goodFrameDebounce {
			committed := detected
			if committed == timecode.FPS_24 && d.forceFPS2398 {
				committed = timecode.FPS_2398
			}
			d.committedRate = committed
		}
	}

	d.publish(tc, d.committedRate, nowMs)
}

// classifyRate turns a measured inter-sync period into a FrameRate per
// spec.md §4.f's fps thresholds. FPS_2398 is never produced here — it is
// indistinguishable from FPS_24 from the bitstream alone.
func classifyRate(periodSeconds float64, dropFrameFlag bool) timecode.FrameRate {
	fps := 1.0 / periodSeconds
	switch {
	case fps < 24.5:
		return timecode.FPS_24
	case fps < 27:
		return timecode.FPS_25
	case dropFrameFlag:
		return timecode.FPS_2997
	default:
		return timecode.FPS_30
	}
}

func (d *Decoder) publish(tc timecode.Timecode, rate timecode.FrameRate, nowMs int64) {
	d.packedTc.Store(tc.Packed())
	d.rateCode.Store(uint32(rate))
	d.lastFrameTimeMs.Store(nowMs)
	d.synced.Store(true)
}

// CurrentTimecode returns the last published Timecode/FrameRate and
// whether the source is currently receiving (a frame latched within
// tcconst.SourceTimeoutMs of nowMs). Safe to call from any goroutine.
func (d *Decoder) CurrentTimecode(nowMs int64) (tc timecode.Timecode, rate timecode.FrameRate, receiving bool) {
	if !d.synced.Load() {
		return timecode.Timecode{}, timecode.FPS_30, false
	}
	tc = timecode.Unpack(d.packedTc.Load())
	rate = timecode.FrameRate(d.rateCode.Load())
	lastMs := d.lastFrameTimeMs.Load()
	return tc, rate, nowMs-lastMs <= tcconst.SourceTimeoutMs
}
