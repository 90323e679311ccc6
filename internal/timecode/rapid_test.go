package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var allRates = []FrameRate{FPS_2398, FPS_24, FPS_25, FPS_2997, FPS_30}

func rapidRate(t *rapid.T) FrameRate {
	return rapid.SampledFrom(allRates).Draw(t, "fps")
}

// rapidLegalTimecode draws a Timecode guaranteed to be in-range (and, for
// FPS_2997, DF-legal) for the drawn rate.
func rapidLegalTimecode(t *rapid.T, fps FrameRate) Timecode {
	hours := uint8(rapid.IntRange(0, 23).Draw(t, "h"))
	minutes := uint8(rapid.IntRange(0, 59).Draw(t, "m"))
	seconds := uint8(rapid.IntRange(0, 59).Draw(t, "s"))
	frames := uint8(rapid.IntRange(0, fps.IntFPS()-1).Draw(t, "f"))
	tc := Timecode{Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames}
	return dfPatch(tc, fps)
}

func TestRapidIncrementClosure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fps := rapidRate(t)
		tc := rapidLegalTimecode(t, fps)
		got := IncrementFrame(tc, fps)
		assert.True(t, got.InRange(fps), "increment produced out-of-range %s at %s", got, fps)
	})
}

func TestRapidDropFrameLegality(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tc := rapidLegalTimecode(t, FPS_2997)
		got := IncrementFrame(tc, FPS_2997)
		if got.Seconds == 0 && got.Minutes%10 != 0 {
			assert.GreaterOrEqual(t, got.Frames, uint8(2))
		}
	})
}

func TestRapidWallClockRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fps := rapidRate(t)
		ms := rapid.Int64Range(0, msPerDay-1).Draw(t, "ms")
		tc := WallClockToTimecode(ms, fps)
		back := TimecodeToMs(tc, fps)
		tolerance := int64(1000.0/fps.RealFPS()) + 1
		diff := back - ms
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqualf(t, diff, tolerance, "ms=%d fps=%s tc=%s back=%d", ms, fps, tc, back)
	})
}

func TestRapidCrossRateIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fps := rapidRate(t)
		tc := rapidLegalTimecode(t, fps)
		assert.Equal(t, tc, ConvertTimecodeRate(tc, fps, fps))
	})
}

func TestRapidOffsetSymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fps := rapidRate(t)
		tc := rapidLegalTimecode(t, fps)
		n := rapid.IntRange(-30, 30).Draw(t, "n")
		forward, err := OffsetTimecode(tc, n, fps)
		assert.NoError(t, err)
		back, err := OffsetTimecode(forward, -n, fps)
		assert.NoError(t, err)
		assert.Equal(t, tc, back)
	})
}
