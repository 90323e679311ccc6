// Package audioio defines the capability boundary between the LTC
// protocol logic / AudioPassthru and whatever owns real audio devices.
// Per spec.md §1, device enumeration and the audio I/O substrate are
// external collaborators: this package only describes the shape of the
// delivery contract (interleaved float32 samples at a known rate and
// buffer size, delivered/consumed on a callback). The concrete adapter
// (e.g. portaudio-backed) lives outside internal/, in cmd/tcbridged.
package audioio

// InputStream is a capability that delivers interleaved float32 samples
// from a real (or simulated) audio input device.
type InputStream interface {
	// SampleRate is the device's actual sample rate in Hz.
	SampleRate() float64
	// Channels is the number of interleaved channels per sample frame.
	Channels() int
	// Start begins calling cb with successive buffers of interleaved
	// samples until Stop is called. cb must not block, allocate, or take
	// locks (spec.md §5).
	Start(cb func(samples []float32)) error
	// Stop halts the stream. Idempotent, bounded-time, safe to call
	// multiple times (spec.md §5 cancellation rules).
	Stop() error
}

// OutputStream is the write-side counterpart of InputStream.
type OutputStream interface {
	SampleRate() float64
	Channels() int
	// Start begins calling fill to produce successive buffers of
	// interleaved samples to play. fill must not block, allocate, or take
	// locks.
	Start(fill func(samples []float32)) error
	Stop() error
}
