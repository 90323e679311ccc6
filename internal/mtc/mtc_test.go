package mtc

import (
	"testing"

	"github.com/lanewave/tcbridge/internal/timecode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages [][]byte
}

func (r *recordingWriter) WriteMIDI(data []byte) error {
	cp := append([]byte(nil), data...)
	r.messages = append(r.messages, cp)
	return nil
}

// feedQF emits the 8-QF stream describing tc at rate, starting at nibble 0.
func feedQF(in *Input, tc timecode.Timecode, rate timecode.FrameRate, nowMs int64) {
	for idx := 0; idx < 8; idx++ {
		nib := qfNibble(idx, tc, rate)
		in.HandleQuarterFrame(byte(idx)<<4|nib, nowMs)
	}
}

func TestMtcRoundTrip(t *testing.T) {
	tc := timecode.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}
	in := NewInput()
	feedQF(in, tc, timecode.FPS_30, 1000)

	got, rate, receiving := in.CurrentTimecode(1000)
	require.True(t, receiving)
	assert.Equal(t, timecode.FPS_30, rate)

	// the decoder documents a +2 frame compensation for the time the 8-QF
	// cycle took to describe the frame.
	expected := timecode.AdvanceFrames(tc, 2, timecode.FPS_30)
	assert.Equal(t, expected, got)
}

func TestMtcFullFrameAcceptsAndOverridesSync(t *testing.T) {
	in := NewInput()
	msg := []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, (1 << 5) | 10, 20, 30, 15, 0xF7}
	in.HandleFullFrame(msg, 500)

	got, rate, receiving := in.CurrentTimecode(500)
	require.True(t, receiving)
	assert.Equal(t, timecode.FPS_25, rate)
	assert.Equal(t, timecode.Timecode{Hours: 10, Minutes: 20, Seconds: 30, Frames: 15}, got)
}

func TestMtcFullFrameRejectsBadFraming(t *testing.T) {
	in := NewInput()
	msg := []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, 10, 20, 30, 15, 0xF6} // bad terminator
	in.HandleFullFrame(msg, 500)

	_, _, receiving := in.CurrentTimecode(500)
	assert.False(t, receiving)
}

func TestMtcHandleRawDispatchesFullFrame(t *testing.T) {
	in := NewInput()
	msg := []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, (3 << 5) | 1, 2, 3, 4, 0xF7}
	in.HandleRaw(msg, 500)

	got, rate, receiving := in.CurrentTimecode(500)
	require.True(t, receiving)
	assert.Equal(t, timecode.FPS_30, rate)
	assert.Equal(t, timecode.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}, got)
}

func TestMtcHandleRawDispatchesQuarterFrame(t *testing.T) {
	in := NewInput()
	in.HandleRaw([]byte{0xF1, 0x00}, 100)
	assert.Equal(t, uint8(0), in.nibbles[0])
}

func TestMtcHandleRawIgnoresUnrelatedStatusBytes(t *testing.T) {
	in := NewInput()
	in.HandleRaw([]byte{0x90, 0x40, 0x7F}, 100) // note-on
	_, _, receiving := in.CurrentTimecode(100)
	assert.False(t, receiving)
}

func TestMtcLivenessTimesOut(t *testing.T) {
	in := NewInput()
	tc := timecode.Timecode{Hours: 0, Minutes: 0, Seconds: 0, Frames: 0}
	feedQF(in, tc, timecode.FPS_25, 0)

	_, _, receiving := in.CurrentTimecode(149)
	assert.True(t, receiving)

	_, _, receiving = in.CurrentTimecode(151)
	assert.False(t, receiving)
}

func TestMtcOutputEmitsEightQFPerTwoFrames(t *testing.T) {
	w := &recordingWriter{}
	out := NewOutput(w)
	out.SetTarget(timecode.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}, timecode.FPS_25)
	out.Resume(0)

	// Full-frame resync on Resume.
	require.Len(t, w.messages, 1)
	assert.Equal(t, byte(0xF0), w.messages[0][0])

	idealInterval := 1000.0 / (25.0 * 4.0)
	now := 0.0
	for i := 0; i < 8; i++ {
		now += idealInterval
		out.Tick(now)
	}

	assert.Len(t, w.messages, 9) // 1 full frame + 8 quarter frames
	for _, m := range w.messages[1:] {
		assert.Equal(t, byte(0xF1), m[0])
	}
}

func TestMtcOutputCycleCoherence(t *testing.T) {
	w := &recordingWriter{}
	out := NewOutput(w)
	out.SetTarget(timecode.Timecode{Hours: 0, Minutes: 0, Seconds: 0, Frames: 0}, timecode.FPS_30)
	out.Resume(0)

	idealInterval := 1000.0 / (30.0 * 4.0)
	// Tick half an interval past each QF deadline so float rounding of the
	// accumulated deadline cannot push a send to a later tick.
	now := 1.5 * idealInterval
	out.Tick(now) // send QF index 0, snapshotting cycleTc

	// Mutate the target mid-cycle; indices 1-7 must still describe the
	// snapshotted frame, not the new target.
	out.SetTarget(timecode.Timecode{Hours: 5, Minutes: 5, Seconds: 5, Frames: 5}, timecode.FPS_30)

	for i := 0; i < 7; i++ {
		now += idealInterval
		out.Tick(now)
	}

	// messages[0] is the resync full frame; [1..8] are the 8 QF of one cycle.
	require.Len(t, w.messages, 9)
	for _, m := range w.messages[1:] {
		idx := m[1] >> 4
		if idx == 6 { // hours-low nibble
			assert.Equal(t, byte(0), m[1]&0x0F, "cycle must describe snapshotted hours=0, not mutated hours=5")
		}
	}
}

func TestMtcOutputPauseStopsEmission(t *testing.T) {
	w := &recordingWriter{}
	out := NewOutput(w)
	out.SetTarget(timecode.Timecode{}, timecode.FPS_30)
	out.Resume(0)
	out.Pause()

	before := len(w.messages)
	out.Tick(1000)
	assert.Equal(t, before, len(w.messages))
}
