// Package devicescan runs the background audio-device enumeration
// thread called for in spec.md §5 thread 7: one goroutine that lists
// audio-capable devices at startup and again on an explicit refresh
// request, with a bounded shutdown. The teacher's go.mod already carries
// github.com/jochenvg/go-udev for Linux hotplug awareness; this package
// is its first wiring into the retrieved source subset.
package devicescan

import (
	"context"
	"sort"
	"time"

	"github.com/jochenvg/go-udev"
)

// shutdownTimeout bounds how long Stop waits for the scan goroutine to
// notice cancellation (spec.md §5: "≤2 s for device-scan thread").
const shutdownTimeout = 2 * time.Second

// audioSubsystems are the udev subsystems that can host an audio
// capture/playback device.
var audioSubsystems = []string{"sound", "usb"}

// Device is a minimal description of an enumerated device, enough for a
// UI to offer it as an audio-input/output/MIDI candidate.
type Device struct {
	Syspath string
	Name    string
	Vendor  string
}

// Scanner owns the udev handle and the background goroutine. Refresh
// requests are coalesced: at most one Refresh() is queued behind a running
// scan, and further calls made while one is queued are dropped.
type Scanner struct {
	udev udev.Udev

	onResult  func([]Device)
	refreshCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New returns a Scanner that calls onResult with the freshly enumerated
// device list after every scan (startup and each Refresh).
func New(onResult func([]Device)) *Scanner {
	return &Scanner{
		onResult:  onResult,
		refreshCh: make(chan struct{}, 1),
	}
}

// Start performs an initial scan and then runs the background loop that
// waits for Refresh() requests until Stop is called.
func (s *Scanner) Start() {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		s.scanOnce()
		for {
			select {
			case <-s.stopCh:
				return
			case <-s.refreshCh:
				s.scanOnce()
			}
		}
	}()
}

// Refresh asks the background loop to re-enumerate devices. Non-blocking:
// if a refresh is already pending it is not duplicated.
func (s *Scanner) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// Stop signals the background loop to exit and waits up to
// shutdownTimeout. If the goroutine does not exit in time, Stop gives up
// without killing it (spec.md §5: "if it fails, the next scan is
// skipped, not force-killed") — the caller should not start a new
// Scanner on top of a still-running one.
func (s *Scanner) Stop() (clean bool) {
	if s.stopCh == nil {
		return true
	}
	close(s.stopCh)
	select {
	case <-s.doneCh:
		return true
	case <-time.After(shutdownTimeout):
		return false
	}
}

func (s *Scanner) scanOnce() {
	var results []Device
	for _, subsystem := range audioSubsystems {
		e := s.udev.NewEnumerate()
		e.AddMatchSubsystem(subsystem)
		devices, err := e.Devices()
		if err != nil {
			continue
		}
		for _, d := range devices {
			results = append(results, Device{
				Syspath: d.Syspath(),
				Name:    d.Sysname(),
				Vendor:  d.PropertyValue("ID_VENDOR"),
			})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Syspath < results[j].Syspath })
	if s.onResult != nil {
		s.onResult(results)
	}
}

// WaitContext blocks until ctx is done or the scanner's loop exits,
// whichever comes first — a convenience for callers that want to bound
// scan lifetime with a context instead of the fixed shutdownTimeout.
func WaitContext(ctx context.Context, s *Scanner) {
	select {
	case <-ctx.Done():
		s.Stop()
	case <-s.doneCh:
	}
}
