package ltc

import "github.com/lanewave/tcbridge/internal/timecode"

// biphaseAmplitude is the peak amplitude fraction before gain (spec.md
// §6: "peak amplitude 0.8 · user_gain").
const biphaseAmplitude = 0.8

// Encoder synthesises the LTC biphase-mark waveform sample by sample.
// Like Decoder, it is callback-thread-only: NextSample is called once
// per output sample from the audio device's callback, and must never
// allocate or block.
type Encoder struct {
	sampleRate float64
	fps        timecode.FrameRate
	gain       float32

	frameBits       [80]uint8
	currentBitIndex int
	halfCellIndex   int // 0 or 1
	samplesPerHalf  float64
	samplePos       float64
	currentLevel    float32
	needNewFrame    bool

	encoderTc     timecode.Timecode
	encoderSeeded bool
	pendingTc     timecode.Timecode
	pendingFresh  bool
}

// NewEncoder returns an Encoder for the given device sample rate, output
// frame rate and linear gain. The first call to NextSample seeds the
// generator from whatever Timecode SetPendingTimecode was last called
// with (or the zero Timecode if never called).
func NewEncoder(sampleRate float64, fps timecode.FrameRate, gain float32) *Encoder {
	e := &Encoder{
		sampleRate:   sampleRate,
		gain:         gain,
		currentLevel: 1,
		needNewFrame: true,
	}
	e.SetFPS(fps)
	return e
}

// SetFPS changes the output frame rate. Takes effect at the next frame
// boundary, where samplesPerHalf is recomputed; the in-flight frame
// finishes at its original rate.
func (e *Encoder) SetFPS(fps timecode.FrameRate) {
	e.fps = fps
}

// SetGain updates the linear output gain.
func (e *Encoder) SetGain(gain float32) {
	e.gain = gain
}

// SetPendingTimecode updates the UI-supplied seek/seed target. The
// generator free-runs between calls; a jump beyond one frame from the
// generator's current position forces an immediate resync at the next
// frame boundary (spec.md §4.g), otherwise it coasts through to honour
// the audio clock exactly.
func (e *Encoder) SetPendingTimecode(tc timecode.Timecode) {
	e.pendingTc = tc
	e.pendingFresh = true
}

// NextSample advances the encoder by one sample and returns its value.
func (e *Encoder) NextSample() float32 {
	if e.needNewFrame {
		e.startNewFrame()
	}

	out := e.currentLevel * biphaseAmplitude * e.gain

	e.samplePos++
	if e.samplePos >= e.samplesPerHalf {
		e.samplePos -= e.samplesPerHalf
		if e.halfCellIndex == 0 {
			if e.frameBits[e.currentBitIndex] == 1 {
				e.currentLevel = -e.currentLevel
			}
			e.halfCellIndex = 1
		} else {
			e.currentLevel = -e.currentLevel // mandatory cell-boundary transition
			e.halfCellIndex = 0
			e.currentBitIndex++
			if e.currentBitIndex >= 80 {
				e.needNewFrame = true
			}
		}
	}
	return out
}

// startNewFrame applies the current rate's samplesPerHalf, advances (or
// seeds) encoderTc, resyncs it to a pending target set since the last
// frame boundary if that target is more than one frame away, rebuilds
// frameBits for it, and resets the bit/cell cursor. It must not touch
// currentLevel: the mandatory cell-boundary transition for the 80th bit
// already performed the frame-boundary transition (spec.md §4.g).
func (e *Encoder) startNewFrame() {
	e.samplesPerHalf = e.sampleRate / (e.fps.RealFPS() * 160.0)
	if !e.encoderSeeded {
		e.encoderTc = e.pendingTc
		e.encoderSeeded = true
	} else {
		e.encoderTc = timecode.IncrementFrame(e.encoderTc, e.fps)
	}

	if d := timecode.ShortestFrameDistance(e.encoderTc, e.pendingTc, e.fps); e.pendingFresh && (d > 1 || d < -1) {
		e.encoderTc = e.pendingTc
	}
	e.pendingFresh = false

	e.frameBits = buildFrameBits(e.encoderTc, e.fps)
	e.currentBitIndex = 0
	e.halfCellIndex = 0
	e.needNewFrame = false
}

// CurrentTimecode returns the Timecode the encoder is currently
// transmitting (the frame in progress, not the pending seek target).
func (e *Encoder) CurrentTimecode() timecode.Timecode {
	return e.encoderTc
}

// evenParityBit returns the bit that makes the total number of set bits
// across bits, plus itself, even.
func evenParityBit(bits []uint8) uint8 {
	var x uint8
	for _, b := range bits {
		x ^= b
	}
	return x
}

// buildFrameBits lays out tc/fps into the 80-bit LTC frame using the
// inverse of the field positions Decoder.latchFrame reads (spec.md
// §4.f/§4.g): frame-units 0-3, frame-tens 8-9, drop-frame flag 10,
// second-units 16-19, second-tens 24-26, minute-units 32-35,
// minute-tens 40-42, hour-units 48-51, hour-tens 56-57, parity bits 27
// and 59, sync word 64-79. Bits with no assigned field are left at 0.
func buildFrameBits(tc timecode.Timecode, fps timecode.FrameRate) [80]uint8 {
	var bits [80]uint8

	setField := func(value uint8, startBit, numBits int) {
		for i := 0; i < numBits; i++ {
			bits[startBit+i] = (value >> uint(i)) & 1
		}
	}

	setField(tc.Frames%10, 0, 4)
	setField(tc.Frames/10, 8, 2)
	if fps == timecode.FPS_2997 {
		bits[10] = 1
	}
	setField(tc.Seconds%10, 16, 4)
	setField(tc.Seconds/10, 24, 3)
	setField(tc.Minutes%10, 32, 4)
	setField(tc.Minutes/10, 40, 3)
	setField(tc.Hours%10, 48, 4)
	setField(tc.Hours/10, 56, 2)

	bits[27] = evenParityBit(bits[0:27])
	bits[59] = evenParityBit(bits[32:59])

	for i := 0; i < 16; i++ {
		bits[64+i] = uint8((syncWord >> uint(i)) & 1)
	}

	return bits
}
