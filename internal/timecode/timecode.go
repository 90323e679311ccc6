// Package timecode implements rate-aware SMPTE timecode arithmetic: the
// Timecode/FrameRate data types, frame increment, bounded offset, and
// wall-clock <-> timecode conversion, correct for 29.97 drop-frame.
//
// Everything here is a pure function of its arguments. No package-level
// state, no I/O, no locking: every other package in this module builds on
// top of these primitives.
package timecode

import "fmt"

// Timecode is the canonical (HH, MM, SS, FF) representation of a position
// on the 24 hour timecode wheel.
type Timecode struct {
	Hours   uint8
	Minutes uint8
	Seconds uint8
	Frames  uint8
}

// Packed returns the bijective 32-bit transport form used for lock-free
// atomic handoff between threads: one byte per field, hours in the high
// byte. Packed and Unpack round-trip for every in-range Timecode.
func (tc Timecode) Packed() uint32 {
	return uint32(tc.Hours)<<24 | uint32(tc.Minutes)<<16 | uint32(tc.Seconds)<<8 | uint32(tc.Frames)
}

// Unpack reconstructs a Timecode from its Packed() form.
func Unpack(p uint32) Timecode {
	return Timecode{
		Hours:   uint8(p >> 24),
		Minutes: uint8(p >> 16),
		Seconds: uint8(p >> 8),
		Frames:  uint8(p),
	}
}

func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}

// InRange reports whether every field of tc is within the limits for fps.
func (tc Timecode) InRange(fps FrameRate) bool {
	if tc.Hours > 23 || tc.Minutes > 59 || tc.Seconds > 59 {
		return false
	}
	return tc.Frames < uint8(fps.IntFPS())
}

// totalFrames converts tc to a linear frame count on a fps.IntFPS() grid,
// ignoring drop-frame semantics (the caller applies those separately).
func (tc Timecode) totalFrames(fps FrameRate) int64 {
	fpsInt := int64(fps.IntFPS())
	return ((int64(tc.Hours)*60+int64(tc.Minutes))*60+int64(tc.Seconds))*fpsInt + int64(tc.Frames)
}

// fromTotalFrames is the inverse of totalFrames, wrapping modulo 24h.
func fromTotalFrames(total int64, fps FrameRate) Timecode {
	fpsInt := int64(fps.IntFPS())
	framesPerDay := fpsInt * 86400
	total %= framesPerDay
	if total < 0 {
		total += framesPerDay
	}
	frames := total % fpsInt
	totalSeconds := total / fpsInt
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := (totalMinutes / 60) % 24
	return Timecode{
		Hours:   uint8(hours),
		Minutes: uint8(minutes),
		Seconds: uint8(seconds),
		Frames:  uint8(frames),
	}
}

// FrameRate is a tagged variant of the five SMPTE rates this system
// understands. The zero value is not a valid rate; always use one of the
// FPS_* constants.
type FrameRate uint8

const (
	FPS_2398 FrameRate = iota + 1
	FPS_24
	FPS_25
	FPS_2997
	FPS_30
)

func (r FrameRate) String() string {
	switch r {
	case FPS_2398:
		return "23.976"
	case FPS_24:
		return "24"
	case FPS_25:
		return "25"
	case FPS_2997:
		return "29.97"
	case FPS_30:
		return "30"
	default:
		return "invalid"
	}
}

// IntFPS returns the integer frames-per-second grid a rate counts on:
// 24/25/30 directly, 30 for FPS_2997 (drop-frame counts on a 30 fps grid)
// and 24 for FPS_2398 (shares the 24 fps grid).
func (r FrameRate) IntFPS() int {
	switch r {
	case FPS_2398, FPS_24:
		return 24
	case FPS_25:
		return 25
	case FPS_2997, FPS_30:
		return 30
	default:
		return 0
	}
}

// RealFPS returns the exact (non-integer for NTSC rates) frames-per-second.
func (r FrameRate) RealFPS() float64 {
	switch r {
	case FPS_2398:
		return 24000.0 / 1001.0
	case FPS_24:
		return 24.0
	case FPS_25:
		return 25.0
	case FPS_2997:
		return 30000.0 / 1001.0
	case FPS_30:
		return 30.0
	default:
		return 0
	}
}

// DropFrame reports whether r uses SMPTE drop-frame numbering.
func (r FrameRate) DropFrame() bool {
	return r == FPS_2997
}

// Valid reports whether r is one of the five defined rates.
func (r FrameRate) Valid() bool {
	switch r {
	case FPS_2398, FPS_24, FPS_25, FPS_2997, FPS_30:
		return true
	default:
		return false
	}
}

// RateFromCode maps an MTC/Art-Net 2-bit rate code (0=24, 1=25, 2=29.97df,
// 3=30) to a FrameRate. FPS_2398 has no dedicated wire code (see spec §9
// open question) and is never produced by this function; callers that know
// they want 23.976 construct it directly.
func RateFromCode(code uint8) (FrameRate, bool) {
	switch code & 0x03 {
	case 0:
		return FPS_24, true
	case 1:
		return FPS_25, true
	case 2:
		return FPS_2997, true
	case 3:
		return FPS_30, true
	default:
		return 0, false
	}
}

// RateToCode is the inverse of RateFromCode. FPS_2398 maps to code 0 (same
// as FPS_24) per the documented open question in spec.md §9 — strict
// receivers will interpret it as 24 fps.
func RateToCode(r FrameRate) uint8 {
	switch r {
	case FPS_2398, FPS_24:
		return 0
	case FPS_25:
		return 1
	case FPS_2997:
		return 2
	case FPS_30:
		return 3
	default:
		return 0
	}
}
