// Package pahost adapts github.com/gordonklaus/portaudio to the
// internal/audioio capability interfaces so LtcInput, LtcOutput, and
// AudioPassthru never import a concrete audio library themselves
// (spec.md §1: the audio I/O substrate is an external collaborator).
package pahost

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// framesPerBufferUnspecified is the buffer size that makes Start fall
// back to its default of 512 frames per buffer.
const framesPerBufferUnspecified = 0

// Init must be called once before opening any stream, and Terminate once
// at shutdown; both forward directly to the portaudio library's global
// init/terminate pair.
func Init() error      { return portaudio.Initialize() }
func Terminate() error { return portaudio.Terminate() }

// Input wraps a portaudio input stream as an audioio.InputStream.
type Input struct {
	stream      *portaudio.Stream
	sampleRate  float64
	channels    int
	bufferSize  int
	deviceIndex *portaudio.DeviceInfo
}

// OpenInput opens device (nil for the system default) at sampleRate with
// the given channel count and buffer size (0 selects 512 frames).
func OpenInput(device *portaudio.DeviceInfo, sampleRate float64, channels, bufferFrames int) (*Input, error) {
	in := &Input{sampleRate: sampleRate, channels: channels, bufferSize: bufferFrames, deviceIndex: device}
	return in, nil
}

func (in *Input) SampleRate() float64 { return in.sampleRate }
func (in *Input) Channels() int       { return in.channels }

// Start opens and starts the portaudio stream, forwarding each captured
// buffer to cb. Per spec.md §5, cb itself must not block, allocate, or
// take locks — that discipline is the caller's (internal/ltc,
// internal/passthru) responsibility; this adapter only wires the stream.
func (in *Input) Start(cb func(samples []float32)) error {
	bufLen := in.bufferSize
	if bufLen == 0 {
		bufLen = 512
	}
	buf := make([]float32, bufLen*in.channels)

	params := portaudio.LowLatencyParameters(in.deviceIndex, nil)
	params.Input.Channels = in.channels
	params.SampleRate = in.sampleRate
	params.FramesPerBuffer = bufLen

	stream, err := portaudio.OpenStream(params, func(inBuf []float32) {
		copy(buf, inBuf)
		cb(buf)
	})
	if err != nil {
		return fmt.Errorf("pahost: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("pahost: start input stream: %w", err)
	}
	in.stream = stream
	return nil
}

// Stop is idempotent and bounded-time, per spec.md §5 cancellation rules.
func (in *Input) Stop() error {
	if in.stream == nil {
		return nil
	}
	stream := in.stream
	in.stream = nil
	if err := stream.Stop(); err != nil {
		return err
	}
	return stream.Close()
}

// Output wraps a portaudio output stream as an audioio.OutputStream.
type Output struct {
	stream      *portaudio.Stream
	sampleRate  float64
	channels    int
	bufferSize  int
	deviceIndex *portaudio.DeviceInfo
}

// OpenOutput mirrors OpenInput for the write side.
func OpenOutput(device *portaudio.DeviceInfo, sampleRate float64, channels, bufferFrames int) (*Output, error) {
	return &Output{sampleRate: sampleRate, channels: channels, bufferSize: bufferFrames, deviceIndex: device}, nil
}

func (out *Output) SampleRate() float64 { return out.sampleRate }
func (out *Output) Channels() int       { return out.channels }

func (out *Output) Start(fill func(samples []float32)) error {
	bufLen := out.bufferSize
	if bufLen == 0 {
		bufLen = 512
	}

	params := portaudio.LowLatencyParameters(nil, out.deviceIndex)
	params.Output.Channels = out.channels
	params.SampleRate = out.sampleRate
	params.FramesPerBuffer = bufLen

	stream, err := portaudio.OpenStream(params, func(outBuf []float32) {
		fill(outBuf)
	})
	if err != nil {
		return fmt.Errorf("pahost: open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("pahost: start output stream: %w", err)
	}
	out.stream = stream
	return nil
}

func (out *Output) Stop() error {
	if out.stream == nil {
		return nil
	}
	stream := out.stream
	out.stream = nil
	if err := stream.Stop(); err != nil {
		return err
	}
	return stream.Close()
}

// Devices lists every audio device portaudio can see, for the settings
// UI's device picker.
func Devices() ([]*portaudio.DeviceInfo, error) {
	return portaudio.Devices()
}

// FindDevice resolves a persisted device name to a portaudio.DeviceInfo for
// OpenInput/OpenOutput. An empty or unmatched name returns nil, which both
// open calls treat as "system default".
func FindDevice(name string) *portaudio.DeviceInfo {
	if name == "" {
		return nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil
	}
	for _, d := range devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}
