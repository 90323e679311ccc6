// Package supervisor owns the set of running engines, detects
// cross-engine device conflicts, and drives the 60 Hz orchestration tick.
// Grounded on the teacher's cmd/direwolf/main.go bring-up/teardown
// sequencing of its fixed radio-channel array, generalised here to a
// dynamic, hot-reconfigurable slice with a single "primary" slot.
package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/lanewave/tcbridge/internal/engine"
	"github.com/lanewave/tcbridge/internal/passthru"
	"github.com/lanewave/tcbridge/internal/settings"
	"github.com/lanewave/tcbridge/internal/tcconst"
)

// tickInterval is the orchestration thread's fixed cadence (spec.md §4.j).
const tickInterval = time.Second / 60

// ManagedEngine bundles one TimecodeEngine with the bookkeeping the
// supervisor needs: its persisted settings, whether it is primary, and
// (if primary) its AudioPassthru.
type ManagedEngine struct {
	Engine   *engine.Engine
	Settings settings.EngineSettings
	Primary  bool
	Passthru *passthru.Passthru

	// Status holds the last device-conflict annotation per local
	// namespace key ("ltcOut", "passthruOut", ...), empty when clean.
	Status map[string]string
}

// deviceKey identifies one real device within one namespace. Namespaces
// are kept separate per spec.md §4.j(i): an MTC output and an Art-Net
// output can legitimately share a "name" string without conflicting.
type deviceKey struct {
	namespace string
	name      string
}

// Supervisor owns engines[0..<=8], the globally selected engine, and the
// device-conflict table. All methods are safe for concurrent use; Tick is
// normally only ever invoked by the supervisor's own internal ticker
// goroutine, started by Start.
type Supervisor struct {
	mu sync.Mutex

	engines  []*ManagedEngine
	selected int

	preferredSampleRate  int
	preferredBufferSize  int
	audioInputTypeFilter string

	// holders maps a device key to the set of engine indices that
	// currently have it open, across all engines.
	holders map[deviceKey]map[int]bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns an empty Supervisor with the given global audio
// preferences; call AddEngine at least once before Start.
func New(preferredSampleRate, preferredBufferSize int) *Supervisor {
	return &Supervisor{
		preferredSampleRate: preferredSampleRate,
		preferredBufferSize: preferredBufferSize,
		holders:             make(map[deviceKey]map[int]bool),
	}
}

// AddEngine appends a new engine built from cfg, rejecting the call once
// tcconst.MaxEngines are already present. The new engine becomes primary
// (and lazily gets an AudioPassthru) only if it is the first one added.
func (s *Supervisor) AddEngine(cfg settings.EngineSettings) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.engines) >= tcconst.MaxEngines {
		return -1, fmt.Errorf("supervisor: at most %d engines", tcconst.MaxEngines)
	}

	me := &ManagedEngine{
		Engine:   engine.New(),
		Settings: cfg,
		Status:   make(map[string]string),
	}
	s.engines = append(s.engines, me)
	idx := len(s.engines) - 1
	if idx == 0 {
		me.Primary = true
		s.makePrimaryLocked(me)
	}
	return idx, nil
}

// RemoveEngine releases engine i's device-table entries and, if it was
// primary, unbinds and drops its AudioPassthru; it then erases the engine
// and reindexes the remainder so index 0 is always primary (spec.md §4.j).
// It does not stop the engine's protocol handlers or close the devices
// they opened.
func (s *Supervisor) RemoveEngine(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.engines) {
		return fmt.Errorf("supervisor: index %d out of range", i)
	}

	removed := s.engines[i]
	s.releaseAllDevicesLocked(i)
	if removed.Primary && removed.Passthru != nil {
		removed.Passthru.Unbind()
		removed.Passthru = nil
	}

	s.engines = append(s.engines[:i], s.engines[i+1:]...)
	s.reindexLocked()
	return nil
}

// reindexLocked reassigns primary status after a removal: the engine now
// at index 0 becomes (or stays) primary. Every other transition away
// from primary tears its AudioPassthru down.
func (s *Supervisor) reindexLocked() {
	for idx, me := range s.engines {
		wasPrimary := me.Primary
		isPrimary := idx == 0
		me.Primary = isPrimary

		switch {
		case isPrimary && !wasPrimary:
			s.makePrimaryLocked(me)
		case !isPrimary && wasPrimary && me.Passthru != nil:
			me.Passthru.Unbind()
			me.Passthru = nil
		}
	}
}

func (s *Supervisor) makePrimaryLocked(me *ManagedEngine) {
	if me.Passthru != nil {
		return
	}
	me.Passthru = passthru.New(-1, 1.0)
	me.Engine.AttachPassthru(me.Passthru)
}

// SelectEngine changes which engine index is considered "current" for UI
// purposes; it has no effect on tick routing (every engine ticks
// regardless, spec.md §4.j).
func (s *Supervisor) SelectEngine(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.engines) {
		return fmt.Errorf("supervisor: index %d out of range", i)
	}
	s.selected = i
	return nil
}

// Engine returns the i'th managed engine, or nil if out of range.
func (s *Supervisor) Engine(i int) *ManagedEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.engines) {
		return nil
	}
	return s.engines[i]
}

// Count returns the number of currently managed engines.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}

// PreferredSampleRate returns the global audio sample rate new audio
// devices should be opened at.
func (s *Supervisor) PreferredSampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferredSampleRate
}

// PreferredBufferSize returns the global audio buffer size new audio
// devices should be opened with.
func (s *Supervisor) PreferredBufferSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferredBufferSize
}

// NoteDeviceOpen records that engine i has opened (namespace, name), and
// reports whether another engine already holds the same device open so
// the caller can annotate its UI (spec.md §4.j(ii): permitted, but
// flagged).
func (s *Supervisor) NoteDeviceOpen(namespace, name string, i int) (conflictsWithOther bool) {
	if name == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := deviceKey{namespace, name}
	holders := s.holders[key]
	if holders == nil {
		holders = make(map[int]bool)
		s.holders[key] = holders
	}
	for holderIdx := range holders {
		if holderIdx != i {
			conflictsWithOther = true
		}
	}
	holders[i] = true
	return conflictsWithOther
}

// NoteDeviceClose removes engine i's hold on (namespace, name).
func (s *Supervisor) NoteDeviceClose(namespace, name string, i int) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deviceKey{namespace, name}
	if holders := s.holders[key]; holders != nil {
		delete(holders, i)
		if len(holders) == 0 {
			delete(s.holders, key)
		}
	}
}

func (s *Supervisor) releaseAllDevicesLocked(i int) {
	for key, holders := range s.holders {
		delete(holders, i)
		if len(holders) == 0 {
			delete(s.holders, key)
		}
	}
}

// namespace constants for NoteDeviceOpen/NoteDeviceClose, one per
// independent device type (spec.md §4.j(i)).
const (
	NamespaceMTCIn       = "mtcIn"
	NamespaceMTCOut      = "mtcOut"
	NamespaceArtnetIn    = "artnetIn"
	NamespaceArtnetOut   = "artnetOut"
	NamespaceLTCIn       = "ltcIn"
	NamespaceLTCOut      = "ltcOut"
	NamespacePassthruOut = "passthruOut"
)

// CheckSameEngineLtcOutConflict implements spec.md §4.j(iii): within one
// engine, if LtcOutput and AudioPassthru target the same device, the
// AudioPassthru loses and is annotated accordingly. Returns the status
// string to record (empty if no conflict).
func (s *Supervisor) CheckSameEngineLtcOutConflict(i int, ltcOutDevice, passthruOutDevice string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.engines) {
		return ""
	}
	me := s.engines[i]
	if ltcOutDevice == "" || passthruOutDevice == "" || ltcOutDevice != passthruOutDevice {
		delete(me.Status, "passthruOut")
		return ""
	}
	status := "CONFLICT: same device as LTC OUT"
	me.Status["passthruOut"] = status
	if me.Passthru != nil {
		me.Passthru.Unbind()
	}
	return status
}

// Start launches the 60 Hz orchestration goroutine; nowFn supplies the
// current time in milliseconds (a seam for tests and for any monotonic
// clock source the host chooses).
func (s *Supervisor) Start(nowFn func() int64) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				s.tickAll(nowFn())
			}
		}
	}()
}

func (s *Supervisor) tickAll(nowMs int64) {
	s.mu.Lock()
	engines := make([]*ManagedEngine, len(s.engines))
	copy(engines, s.engines)
	s.mu.Unlock()

	for _, me := range engines {
		me.Engine.Tick(nowMs)
	}
}

// Stop halts the orchestration goroutine and waits for it to exit.
// Idempotent: calling it twice, or before Start, is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}
