package settings

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseV2RoundTrips(t *testing.T) {
	orig := Default()
	orig.Engines[0].Name = "Studio A"
	orig.Engines[0].MTCOutput = OutputSettings{Enabled: true, Offset: 3, FrameRate: "25"}

	data, err := Marshal(orig)
	require.NoError(t, err)

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestParseMigratesV1FlatShape(t *testing.T) {
	v1 := []byte(`{
		"version": 1,
		"audioInputTypeFilter": "wasapi",
		"preferredSampleRate": 44100,
		"preferredBufferSize": 256,
		"name": "Legacy Engine",
		"selectedInput": "ltc",
		"inputFrameRate": "2997",
		"meterGainPercent": 150,
		"userOverrodeLtcFps": true,
		"mtcOutput": {"enabled": true, "offset": -5, "frameRate": "30"}
	}`)

	got, err := Parse(v1)
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, got.Version)
	assert.Equal(t, "wasapi", got.AudioInputTypeFilter)
	assert.Equal(t, 44100, got.PreferredSampleRate)
	assert.Equal(t, 0, got.SelectedEngine)
	require.Len(t, got.Engines, 1)

	e := got.Engines[0]
	assert.Equal(t, "Legacy Engine", e.Name)
	assert.Equal(t, "ltc", e.SelectedInput)
	assert.Equal(t, "2997", e.InputFrameRate)
	assert.Equal(t, 150, e.MeterGainPercent)
	assert.True(t, e.UserOverrodeLtcFps)
	assert.Equal(t, OutputSettings{Enabled: true, Offset: -5, FrameRate: "30"}, e.MTCOutput)
}

func TestParseTreatsMissingVersionAsV1(t *testing.T) {
	// No "version" key at all: must still migrate, not error.
	noVersion := []byte(`{"name": "Unversioned", "selectedInput": "wallclock"}`)
	got, err := Parse(noVersion)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, got.Version)
	require.Len(t, got.Engines, 1)
	assert.Equal(t, "Unversioned", got.Engines[0].Name)
}

func TestDebouncedWriterCoalescesBurstsIntoOneWrite(t *testing.T) {
	var writes atomic.Int32
	w := NewDebouncedWriter(func(s *Settings) error {
		writes.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		w.Notify(Default())
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, int32(0), writes.Load(), "burst must not have fired yet")
	time.Sleep(debounceDelay + 100*time.Millisecond)
	assert.Equal(t, int32(1), writes.Load())
}

func TestDebouncedWriterFlushWritesImmediately(t *testing.T) {
	var writes atomic.Int32
	w := NewDebouncedWriter(func(s *Settings) error {
		writes.Add(1)
		return nil
	})

	w.Notify(Default())
	require.NoError(t, w.Flush(Default()))
	assert.Equal(t, int32(1), writes.Load())

	// The pending timer from Notify must have been cancelled by Flush.
	time.Sleep(debounceDelay + 100*time.Millisecond)
	assert.Equal(t, int32(1), writes.Load())
}
