package ltc

import (
	"testing"

	"github.com/lanewave/tcbridge/internal/timecode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runEncoder generates n samples at sampleRate, seeds the encoder with
// start at fps, and feeds every sample into dec.
func runEncoder(t *testing.T, start timecode.Timecode, fps timecode.FrameRate, sampleRate float64, n int, dec *Decoder) {
	t.Helper()
	enc := NewEncoder(sampleRate, fps, 1.0)
	enc.SetPendingTimecode(start)
	for i := 0; i < n; i++ {
		s := enc.NextSample()
		dec.ProcessSample(s, int64(float64(i)*1000.0/sampleRate))
	}
}

// TestEncodeDecodeScenarioF mirrors the spec's worked example: seeded at
// 10:00:00:00/30fps, one second of 48kHz audio should decode to
// 10:00:01:00 (30 frames after the seed) within one frame.
func TestEncodeDecodeScenarioF(t *testing.T) {
	const sampleRate = 48000.0
	start := timecode.Timecode{Hours: 10}
	dec := NewDecoder(sampleRate)

	runEncoder(t, start, timecode.FPS_30, sampleRate, int(sampleRate), dec)

	tc, rate, receiving := dec.CurrentTimecode(1000)
	require.True(t, receiving)
	assert.Equal(t, timecode.FPS_30, rate)

	expected := timecode.Timecode{Hours: 10, Seconds: 1}
	diff := timecode.ShortestFrameDistance(tc, expected, timecode.FPS_30)
	assert.GreaterOrEqual(t, diff, int64(-1), "expected within 1 frame of 10:00:01:00")
	assert.LessOrEqual(t, diff, int64(1))
}

// TestEncodeDecodeRoundTripVariousRates exercises property 7: encode at a
// known rate, decode, recover the rate and a Timecode within a frame or
// two once the debounce has committed.
func TestEncodeDecodeRoundTripVariousRates(t *testing.T) {
	const sampleRate = 48000.0
	cases := []struct {
		name string
		fps  timecode.FrameRate
		tc   timecode.Timecode
	}{
		{"24fps", timecode.FPS_24, timecode.Timecode{Hours: 1, Minutes: 2, Seconds: 3}},
		{"25fps", timecode.FPS_25, timecode.Timecode{Hours: 5}},
		{"2997fps", timecode.FPS_2997, timecode.Timecode{Minutes: 5}},
		{"30fps", timecode.FPS_30, timecode.Timecode{Hours: 23, Minutes: 59}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dec := NewDecoder(sampleRate)
			// A few seconds gives the debounce (3 consecutive good frames)
			// time to commit the detected rate.
			n := int(sampleRate * 3)
			runEncoder(t, c.tc, c.fps, sampleRate, n, dec)

			_, rate, receiving := dec.CurrentTimecode(int64(float64(n) * 1000.0 / sampleRate))
			require.True(t, receiving)
			assert.Equal(t, c.fps, rate)
		})
	}
}

func TestEncoderWrapsAt24Hours(t *testing.T) {
	enc := NewEncoder(48000.0, timecode.FPS_30, 1.0)
	enc.SetPendingTimecode(timecode.Timecode{Hours: 23, Minutes: 59, Seconds: 59, Frames: 29})

	// Run two full frames' worth of samples: the seed frame, then the one
	// frame the encoder advances to from it.
	samplesPerFrame := int(48000.0 / 30.0)
	for i := 0; i < samplesPerFrame*2; i++ {
		enc.NextSample()
	}

	assert.Equal(t, timecode.Timecode{}, enc.CurrentTimecode(), "must wrap to 00:00:00:00")
}

func TestEncoderResyncsOnLargeSeek(t *testing.T) {
	enc := NewEncoder(48000.0, timecode.FPS_30, 1.0)
	enc.SetPendingTimecode(timecode.Timecode{Hours: 1})

	samplesPerFrame := int(48000.0 / 30.0)
	for i := 0; i < samplesPerFrame+1; i++ {
		enc.NextSample()
	}
	require.Equal(t, timecode.Timecode{Hours: 1, Frames: 1}, enc.CurrentTimecode())

	// A large seek must be picked up at the very next frame boundary,
	// not coasted through one frame at a time.
	enc.SetPendingTimecode(timecode.Timecode{Hours: 5})
	for i := 0; i < samplesPerFrame+1; i++ {
		enc.NextSample()
	}
	assert.Equal(t, uint8(5), enc.CurrentTimecode().Hours)
}

func TestDecoderNotReceivingBeforeFirstSyncWord(t *testing.T) {
	dec := NewDecoder(48000.0)
	_, _, receiving := dec.CurrentTimecode(0)
	assert.False(t, receiving)
}

func TestBuildFrameBitsParityIsEven(t *testing.T) {
	bits := buildFrameBits(timecode.Timecode{Hours: 12, Minutes: 34, Seconds: 56, Frames: 18}, timecode.FPS_25)

	var ones1, ones2 int
	for i := 0; i <= 27; i++ {
		ones1 += int(bits[i])
	}
	for i := 32; i <= 59; i++ {
		ones2 += int(bits[i])
	}
	assert.Zero(t, ones1%2, "bits[0..27] parity group must be even")
	assert.Zero(t, ones2%2, "bits[32..59] parity group must be even")
}

func TestBuildFrameBitsDropFrameFlag(t *testing.T) {
	df := buildFrameBits(timecode.Timecode{}, timecode.FPS_2997)
	assert.Equal(t, uint8(1), df[10])

	ndf := buildFrameBits(timecode.Timecode{}, timecode.FPS_30)
	assert.Equal(t, uint8(0), ndf[10])
}
