package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackedUnpackRoundTrip(t *testing.T) {
	tc := Timecode{Hours: 13, Minutes: 45, Seconds: 6, Frames: 22}
	assert.Equal(t, tc, Unpack(tc.Packed()))
}

func TestIncrementFrameScenarioA(t *testing.T) {
	// 00:09:59:29 @ 29.97 DF -> 00:10:00:00 (frame 0 kept: minutes%10==0)
	in := Timecode{Hours: 0, Minutes: 9, Seconds: 59, Frames: 29}
	got := IncrementFrame(in, FPS_2997)
	assert.Equal(t, Timecode{Hours: 0, Minutes: 10, Seconds: 0, Frames: 0}, got)
}

func TestIncrementFrameScenarioB(t *testing.T) {
	// 00:00:59:29 @ 29.97 DF -> 00:01:00:02
	in := Timecode{Hours: 0, Minutes: 0, Seconds: 59, Frames: 29}
	got := IncrementFrame(in, FPS_2997)
	assert.Equal(t, Timecode{Hours: 0, Minutes: 1, Seconds: 0, Frames: 2}, got)
}

func TestOffsetTimecodeScenarioC(t *testing.T) {
	in := Timecode{Hours: 1, Minutes: 0, Seconds: 0, Frames: 0}
	got, err := OffsetTimecode(in, -1, FPS_30)
	require.NoError(t, err)
	assert.Equal(t, Timecode{Hours: 0, Minutes: 59, Seconds: 59, Frames: 29}, got)
}

func TestOffsetTimecodeClampsOutOfRange(t *testing.T) {
	in := Timecode{Hours: 1}
	_, err := OffsetTimecode(in, 31, FPS_30)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
	_, err = OffsetTimecode(in, -31, FPS_30)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
}

func TestWallClockToTimecodeScenarioD(t *testing.T) {
	got := WallClockToTimecode(3_661_000, FPS_25)
	assert.Equal(t, Timecode{Hours: 1, Minutes: 1, Seconds: 1, Frames: 0}, got)
}

func TestDropFrameIllegalPairNeverProduced(t *testing.T) {
	for ms := int64(0); ms < msPerDay; ms += 137 {
		tc := WallClockToTimecode(ms, FPS_2997)
		if tc.Seconds == 0 && tc.Minutes%10 != 0 {
			assert.GreaterOrEqualf(t, tc.Frames, uint8(2), "illegal DF pair at ms=%d: %s", ms, tc)
		}
	}
}

func TestDropFrameCadenceTenMinutes(t *testing.T) {
	seen := map[Timecode]bool{}
	tc := Timecode{}
	const framesInTenMinutes = 10 * 60 * 30
	for i := 0; tc != (Timecode{Minutes: 10}) && i < framesInTenMinutes; i++ {
		seen[tc] = true
		tc = IncrementFrame(tc, FPS_2997)
	}
	assert.Len(t, seen, 17982)
}

func TestConvertTimecodeRateIdentity(t *testing.T) {
	rates := []FrameRate{FPS_2398, FPS_24, FPS_25, FPS_2997, FPS_30}
	tc := Timecode{Hours: 12, Minutes: 34, Seconds: 56, Frames: 3}
	for _, r := range rates {
		assert.Equal(t, tc, ConvertTimecodeRate(tc, r, r))
	}
}

func TestRateFromCodeToCode(t *testing.T) {
	cases := []struct {
		code uint8
		rate FrameRate
	}{
		{0, FPS_24},
		{1, FPS_25},
		{2, FPS_2997},
		{3, FPS_30},
	}
	for _, c := range cases {
		got, ok := RateFromCode(c.code)
		require.True(t, ok)
		assert.Equal(t, c.rate, got)
		assert.Equal(t, c.code, RateToCode(c.rate))
	}
	// FPS_2398 has no dedicated wire code; documented to collapse to 0.
	assert.Equal(t, uint8(0), RateToCode(FPS_2398))
}
