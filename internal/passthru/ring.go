// Package passthru implements the lock-free single-producer/single-
// consumer audio ring and the pass-through output stage that drains it
// onto an independent device.
package passthru

import "sync/atomic"

// ringSize is the capacity in float32 samples: a power of two so
// (pos & mask) substitutes for modulo, with one sentinel slot reserved
// (the buffer reads "full" when exactly one slot remains empty).
const ringSize = 32768
const ringMask = ringSize - 1

// Ring is a wait-free SPSC FIFO of float32 audio samples. The zero value
// is not usable; construct with NewRing. Exactly one goroutine may call
// Write (the LTC input callback) and exactly one may call Read (the
// pass-through output callback); Overruns/Underruns may be read from any
// goroutine.
type Ring struct {
	buf [ringSize]float32

	// writePos/readPos are the classic SPSC pair: the producer only ever
	// writes writePos and reads readPos; the consumer is the mirror.
	// atomic.Uint32 loads/stores give the acquire/release pairing the
	// spec calls for without a full mutex.
	writePos atomic.Uint32
	readPos  atomic.Uint32

	overruns  atomic.Uint32
	underruns atomic.Uint32
}

// NewRing returns an empty Ring.
func NewRing() *Ring {
	return &Ring{}
}

// Write copies as many samples from src into the ring as will fit
// without overwriting unread data, returning the count actually
// written. Any surplus is dropped and counted as an overrun — existing
// unread data is never overwritten.
func (r *Ring) Write(src []float32) int {
	writePos := r.writePos.Load()
	readPos := r.readPos.Load() // acquire: see the consumer's latest drain

	free := ringSize - 1 - int(writePos-readPos)
	n := len(src)
	if n > free {
		r.overruns.Add(1)
		n = free
	}
	for i := 0; i < n; i++ {
		r.buf[(writePos+uint32(i))&ringMask] = src[i]
	}
	r.writePos.Store(writePos + uint32(n)) // release: publish the new samples
	return n
}

// Read fills dst with the next len(dst) samples. If fewer than len(dst)
// are available, the remainder is zero-filled and an underrun is
// counted — stale data is never returned.
func (r *Ring) Read(dst []float32) {
	readPos := r.readPos.Load()
	writePos := r.writePos.Load() // acquire: see the producer's latest commit

	avail := int(writePos - readPos)
	n := len(dst)
	if n > avail {
		r.underruns.Add(1)
		for i := avail; i < n; i++ {
			dst[i] = 0
		}
		n = avail
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(readPos+uint32(i))&ringMask]
	}
	r.readPos.Store(readPos + uint32(n)) // release: free the consumed slots
}

// SyncReadToWrite snaps readPos to the current writePos, discarding any
// buffered stale audio. Called by the producer before the consumer
// (re)starts (spec.md §4.h "sync read pointer").
func (r *Ring) SyncReadToWrite() {
	r.readPos.Store(r.writePos.Load())
}

// Overruns returns the running overrun count.
func (r *Ring) Overruns() uint32 { return r.overruns.Load() }

// Underruns returns the running underrun count.
func (r *Ring) Underruns() uint32 { return r.underruns.Load() }
