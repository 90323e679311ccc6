package passthru

import (
	"fmt"
	"sync/atomic"
)

// Source is the non-owning handle an AudioPassthru consumer holds on its
// producer's Ring. It is an atomic optional reference rather than a raw
// pointer with ordering conventions (spec.md §9): the producer clears it
// before tearing down the Ring, and the consumer callback re-acquires it
// on every invocation rather than caching it once.
type Source struct {
	ring atomic.Pointer[Ring]
}

// Bind publishes ring as the current producer. Called by the engine when
// (re)starting the pass-through consumer; the producer should call
// ring.SyncReadToWrite() first so no stale audio is queued.
func (s *Source) Bind(ring *Ring) {
	s.ring.Store(ring)
}

// Unbind clears the reference. Must be called before the producer Ring
// is discarded (spec.md §9 shutdown order: unbind, then stop the
// consumer callback, then close the device, then destroy the producer).
func (s *Source) Unbind() {
	s.ring.Store(nil)
}

// InputRate/OutputRate describe the two independent clock domains the
// pass-through bridges; no resampling is performed, so unequal rates
// drift and are reported via Status.
type RateMismatch struct {
	InputRate, OutputRate float64
}

// Passthru pipes audio from an LTC input device's Ring to an independent
// output device, with a channel-mapping and gain stage applied on the
// consumer side. ChannelMap of -1 selects stereo duplication: the
// primary channel is written, then copied into the second.
type Passthru struct {
	src        Source
	channelMap int
	gain       float32
	rates      RateMismatch

	peak    float32
	scratch []float32 // reused across Fill calls: no allocation in the audio callback
}

// New returns a Passthru with the given channel mapping (-1 for stereo
// duplication, or a concrete channel index) and linear gain.
func New(channelMap int, gain float32) *Passthru {
	return &Passthru{channelMap: channelMap, gain: gain}
}

// Bind/Unbind forward to the embedded Source; see Source's docs for the
// shutdown-ordering contract.
func (p *Passthru) Bind(ring *Ring, rates RateMismatch) {
	p.rates = rates
	p.src.Bind(ring)
}

func (p *Passthru) Unbind() {
	p.src.Unbind()
}

// Fill is the output device's audio callback: it must never block,
// allocate, or take a lock. out is the interleaved output buffer
// (len(out)/channels frames); channels is the output device's channel
// count.
func (p *Passthru) Fill(out []float32, channels int) {
	ring := p.src.ring.Load()
	if ring == nil {
		for i := range out {
			out[i] = 0
		}
		p.peak = 0
		return
	}

	frames := len(out) / channels
	if cap(p.scratch) < frames {
		p.scratch = make([]float32, frames)
	}
	mono := p.scratch[:frames]
	ring.Read(mono)

	peak := float32(0)
	for i := 0; i < frames; i++ {
		s := mono[i] * p.gain
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}

		base := i * channels
		if p.channelMap < 0 {
			// Stereo: primary channel then a memcpy-equivalent duplicate.
			out[base] = s
			if channels > 1 {
				out[base+1] = s
			}
		} else if p.channelMap < channels {
			out[base+p.channelMap] = s
		}
	}
	p.peak = peak
}

// Overruns/Underruns surface the bound Ring's counters, or zero if
// unbound.
func (p *Passthru) Overruns() uint32 {
	if r := p.src.ring.Load(); r != nil {
		return r.Overruns()
	}
	return 0
}

func (p *Passthru) Underruns() uint32 {
	if r := p.src.ring.Load(); r != nil {
		return r.Underruns()
	}
	return 0
}

// PeakLevel returns the last-observed absolute sample peak, for VU
// metering (spec.md §4.i decays this externally at 0.85/tick).
func (p *Passthru) PeakLevel() float32 { return p.peak }

// CaptureInto applies gain to samples and writes the result into ring,
// using scratch as reusable storage so the LTC input callback (which
// must not allocate) can call this every block. Returns the possibly
// reallocated scratch slice for the caller to keep and pass in next
// time.
func CaptureInto(ring *Ring, gain float32, samples []float32, scratch []float32) []float32 {
	if cap(scratch) < len(samples) {
		scratch = make([]float32, len(samples))
	}
	scratch = scratch[:len(samples)]
	for i, s := range samples {
		scratch[i] = s * gain
	}
	ring.Write(scratch)
	return scratch
}

// Status renders the pass-through status line: XRUN counters and, when
// the bound rates differ, a rate-mismatch annotation (spec.md §4.h/§7).
func (p *Passthru) Status() string {
	status := fmt.Sprintf("[XRUNS: %d]", p.Overruns()+p.Underruns())
	if p.rates.InputRate != 0 && p.rates.OutputRate != 0 && p.rates.InputRate != p.rates.OutputRate {
		status += " [RATE MISMATCH in/out]"
	}
	return status
}
