// Package engine implements the per-pipeline orchestrator: it reads one
// active timecode source, decides the current frame rate, and pushes an
// offset-adjusted target Timecode to whichever protocol outputs are
// enabled. One Engine is one independent input->outputs pipeline;
// EngineSupervisor runs ≤8 of them concurrently.
package engine

import (
	"sync"

	"github.com/lanewave/tcbridge/internal/artnet"
	"github.com/lanewave/tcbridge/internal/ltc"
	"github.com/lanewave/tcbridge/internal/mtc"
	"github.com/lanewave/tcbridge/internal/passthru"
	"github.com/lanewave/tcbridge/internal/timecode"
)

// InputKind tags which of the four sources is active. A tagged variant
// rather than an interface hierarchy (spec.md §9): each arm below carries
// exactly the state it needs and nothing is shared through inheritance.
type InputKind int

const (
	InputWallClock InputKind = iota
	InputMTC
	InputArtNet
	InputLTC
)

func (k InputKind) String() string {
	switch k {
	case InputWallClock:
		return "System Time"
	case InputMTC:
		return "MTC"
	case InputArtNet:
		return "Art-Net"
	case InputLTC:
		return "LTC"
	default:
		return "unknown"
	}
}

// OutputSlot bundles one protocol output's enable flag and per-output
// frame offset; all three output kinds hold one of these.
type OutputSlot struct {
	Enabled bool
	Offset  int // bounded to [-30, 30], see timecode.OffsetTimecode
}

// VUMeter smooths an instantaneous peak reading with per-tick decay:
// new = max(instant, old*0.85) (spec.md §4.i step 5).
type VUMeter struct {
	level float32
}

func (v *VUMeter) Update(instant float32) float32 {
	decayed := v.level * 0.85
	if instant > decayed {
		v.level = instant
	} else {
		v.level = decayed
	}
	return v.level
}

func (v *VUMeter) Level() float32 { return v.level }

// Engine is touched only from the single orchestration ("message")
// thread per spec.md §5; the mutex exists only because user actions
// (switching input, toggling outputs) may arrive from a different
// goroutine (a UI or control-API handler) than the 60 Hz tick loop.
type Engine struct {
	mu sync.Mutex

	activeInput         InputKind
	currentFps          timecode.FrameRate
	currentTimecode     timecode.Timecode
	sourceActive        bool
	userOverrodeLtcFps  bool
	fpsConvertEnabled   bool
	outputFps           timecode.FrameRate
	inputStatus         string
	pendingDetectedRate timecode.FrameRate // rate reported by the active input this tick

	mtcIn    *mtc.Input
	artnetIn *artnet.Input
	ltcIn    *ltc.Decoder

	mtcOut           *mtc.Output
	mtcOutput        OutputSlot
	mtcOutputRunning bool

	artnetOut           *artnet.Output
	artnetOutput        OutputSlot
	artnetOutputRunning bool

	ltcOut    *ltc.Encoder
	ltcOutput OutputSlot

	passthru *passthru.Passthru

	passthruVU VUMeter
}

// New returns an Engine defaulting to the wall-clock source at 30fps,
// every output disabled.
func New() *Engine {
	return &Engine{
		currentFps: timecode.FPS_30,
		outputFps:  timecode.FPS_30,
	}
}

// AttachMTCInput/AttachArtnetInput/AttachLTCInput/AttachMTCOutput/... let
// the supervisor wire in the protocol handlers it opened. A nil handler
// is a valid "not open" state; tick() treats it as an inactive source or
// a no-op output.
func (e *Engine) AttachMTCInput(in *mtc.Input)       { e.mu.Lock(); e.mtcIn = in; e.mu.Unlock() }
func (e *Engine) AttachArtnetInput(in *artnet.Input) { e.mu.Lock(); e.artnetIn = in; e.mu.Unlock() }
func (e *Engine) AttachLTCInput(in *ltc.Decoder)     { e.mu.Lock(); e.ltcIn = in; e.mu.Unlock() }

func (e *Engine) AttachMTCOutput(out *mtc.Output)       { e.mu.Lock(); e.mtcOut = out; e.mu.Unlock() }
func (e *Engine) AttachArtnetOutput(out *artnet.Output) { e.mu.Lock(); e.artnetOut = out; e.mu.Unlock() }
func (e *Engine) AttachLTCOutput(out *ltc.Encoder)      { e.mu.Lock(); e.ltcOut = out; e.mu.Unlock() }
func (e *Engine) AttachPassthru(p *passthru.Passthru)   { e.mu.Lock(); e.passthru = p; e.mu.Unlock() }

// SetActiveInput switches the source. Per spec.md §4.i this stops the
// prior handler (the caller's responsibility, since handler lifecycle is
// owned by the supervisor), clears the LTC-ambiguous-rate override, and
// leaves sourceActive to be recomputed on the next tick.
func (e *Engine) SetActiveInput(kind InputKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeInput = kind
	e.userOverrodeLtcFps = false
	e.sourceActive = false
}

// SetUserOverrodeLtcFps records that the user explicitly chose between
// an ambiguous rate pair (24/23.976 or 30/29.97) for the LTC source; see
// tick()'s rate-adoption rule.
func (e *Engine) SetUserOverrodeLtcFps(v bool) {
	e.mu.Lock()
	e.userOverrodeLtcFps = v
	e.mu.Unlock()
}

func (e *Engine) SetFpsConvert(enabled bool, outputFps timecode.FrameRate) {
	e.mu.Lock()
	e.fpsConvertEnabled = enabled
	e.outputFps = outputFps
	e.mu.Unlock()
}

func (e *Engine) SetMTCOutput(slot OutputSlot)    { e.mu.Lock(); e.mtcOutput = slot; e.mu.Unlock() }
func (e *Engine) SetArtnetOutput(slot OutputSlot) { e.mu.Lock(); e.artnetOutput = slot; e.mu.Unlock() }
func (e *Engine) SetLTCOutput(slot OutputSlot)    { e.mu.Lock(); e.ltcOutput = slot; e.mu.Unlock() }

// isAmbiguousPair reports whether from/to are the 24<->23.976 or
// 30<->29.97 pair that the bitstream alone cannot discriminate.
func isAmbiguousPair(from, to timecode.FrameRate) bool {
	pair := func(a, b timecode.FrameRate) bool {
		return (from == a && to == b) || (from == b && to == a)
	}
	return pair(timecode.FPS_24, timecode.FPS_2398) || pair(timecode.FPS_30, timecode.FPS_2997)
}

// Tick runs one orchestration cycle; the supervisor calls this at 60 Hz
// for every engine, not just the selected one (spec.md §4.j).
func (e *Engine) Tick(nowMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.readActiveInput(nowMs)
	e.adoptDetectedRate()

	outputTc := e.currentTimecode
	if e.fpsConvertEnabled {
		outputTc = timecode.ConvertTimecodeRate(e.currentTimecode, e.currentFps, e.outputFps)
	}
	effectiveFps := e.currentFps
	if e.fpsConvertEnabled {
		effectiveFps = e.outputFps
	}

	e.driveOutputs(outputTc, effectiveFps, nowMs)
	e.decayMeters()
}

func (e *Engine) readActiveInput(nowMs int64) {
	switch e.activeInput {
	case InputWallClock:
		e.currentTimecode = timecode.WallClockToTimecode(nowMs, e.currentFps)
		e.sourceActive = true
		e.inputStatus = "System Time"

	case InputMTC:
		if e.mtcIn == nil {
			e.sourceActive = false
			e.inputStatus = "MTC: not open"
			return
		}
		tc, rate, receiving := e.mtcIn.CurrentTimecode(nowMs)
		e.currentTimecode = tc
		e.sourceActive = receiving
		e.pendingDetectedRate = rate
		e.inputStatus = statusLine("MTC", receiving)

	case InputArtNet:
		if e.artnetIn == nil {
			e.sourceActive = false
			e.inputStatus = "Art-Net: not open"
			return
		}
		tc, rate, receiving := e.artnetIn.CurrentTimecode(nowMs)
		e.currentTimecode = tc
		e.sourceActive = receiving
		e.pendingDetectedRate = rate
		e.inputStatus = statusLine("Art-Net", receiving)

	case InputLTC:
		if e.ltcIn == nil {
			e.sourceActive = false
			e.inputStatus = "LTC: not open"
			return
		}
		tc, rate, receiving := e.ltcIn.CurrentTimecode(nowMs)
		e.currentTimecode = tc
		e.sourceActive = receiving
		e.pendingDetectedRate = rate
		e.inputStatus = statusLine("LTC", receiving)
	}
}

func statusLine(name string, receiving bool) string {
	if receiving {
		return name + ": receiving"
	}
	return name + ": no signal"
}

// adoptDetectedRate applies spec.md §4.i step 2: adopt the detected rate
// from a protocol input unless the user has overridden an LTC-ambiguous
// pair.
func (e *Engine) adoptDetectedRate() {
	if e.activeInput == InputWallClock || !e.sourceActive {
		return
	}
	if e.pendingDetectedRate == 0 || e.pendingDetectedRate == e.currentFps {
		return
	}
	if e.activeInput == InputLTC && e.userOverrodeLtcFps && isAmbiguousPair(e.pendingDetectedRate, e.currentFps) {
		return
	}
	e.currentFps = e.pendingDetectedRate
}

func (e *Engine) driveOutputs(outputTc timecode.Timecode, effectiveFps timecode.FrameRate, nowMs int64) {
	paused := !e.sourceActive

	if e.mtcOut != nil {
		if e.mtcOutput.Enabled && !paused {
			tc, _ := timecode.OffsetTimecode(outputTc, e.mtcOutput.Offset, effectiveFps)
			e.mtcOut.SetTarget(tc, effectiveFps)
			if !e.mtcOutputRunning {
				e.mtcOut.Resume(float64(nowMs))
				e.mtcOutputRunning = true
			}
		} else if e.mtcOutputRunning {
			e.mtcOut.Pause()
			e.mtcOutputRunning = false
		}
	}

	if e.artnetOut != nil {
		if e.artnetOutput.Enabled && !paused {
			tc, _ := timecode.OffsetTimecode(outputTc, e.artnetOutput.Offset, effectiveFps)
			e.artnetOut.SetTarget(tc, effectiveFps)
			if !e.artnetOutputRunning {
				e.artnetOut.Resume()
				e.artnetOutputRunning = true
			}
		} else if e.artnetOutputRunning {
			e.artnetOut.Pause()
			e.artnetOutputRunning = false
		}
	}

	if e.ltcOut != nil && e.ltcOutput.Enabled && !paused {
		tc, _ := timecode.OffsetTimecode(outputTc, e.ltcOutput.Offset, effectiveFps)
		e.ltcOut.SetPendingTimecode(tc)
	}
}

func (e *Engine) decayMeters() {
	if e.passthru != nil {
		e.passthruVU.Update(e.passthru.PeakLevel())
	}
}

// InputStatus returns the last input-source status line.
func (e *Engine) InputStatus() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inputStatus
}

// PassthruVU returns the current smoothed pass-through VU level.
func (e *Engine) PassthruVU() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.passthruVU.Level()
}

// CurrentTimecode and CurrentFps return the engine's live source state.
func (e *Engine) CurrentTimecode() timecode.Timecode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTimecode
}

func (e *Engine) CurrentFps() timecode.FrameRate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentFps
}

func (e *Engine) SourceActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sourceActive
}
