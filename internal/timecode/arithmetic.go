package timecode

import (
	"errors"
	"math"
)

// ErrOffsetOutOfRange is returned by OffsetTimecode when |frames| > 30. The
// spec treats this as a programming error (spec.md §7): the function
// clamps to a safe value and still returns a (re-normalised) result so a
// caller that ignores the error never gets silently wrong data.
var ErrOffsetOutOfRange = errors.New("timecode: offset magnitude exceeds 30 frames")

// dfPatch re-maps the one illegal field combination at FPS_2997: frame 0 or
// 1 of a second=0 timecode whose minute is not a multiple of 10. Those two
// frame numbers are the ones drop-frame numbering skips.
func dfPatch(tc Timecode, fps FrameRate) Timecode {
	if fps == FPS_2997 && tc.Seconds == 0 && tc.Frames < 2 && tc.Minutes%10 != 0 {
		tc.Frames = 2
	}
	return tc
}

// IncrementFrame adds one frame to tc, carrying through seconds, minutes,
// hours and wrapping at 24h, then re-applies the drop-frame patch. This is
// the naive field-carry form spec.md §4.a describes literally: it operates
// directly on the stored (H,M,S,F) fields. At FPS_2997 a carry into
// ss=00 of a non-tenth minute is patched straight to ff=02, so every call
// yields a new legal label and stepping from 00:00:00:00 to 00:10:00:00
// visits exactly 17982 distinct values (spec.md §8.9).
func IncrementFrame(tc Timecode, fps FrameRate) Timecode {
	total := tc.totalFrames(fps) + 1
	return dfPatch(fromTotalFrames(total, fps), fps)
}

// elapsedFramesPerDay29_97 is the number of distinct legal drop-frame
// labels in 24h: 24h * 3600s * 30fps, minus 2 for every non-tenth minute
// (24h * 54 such minutes/hour).
const elapsedFramesPerDay29_97 = 24*3600*30 - 2*24*54

// toElapsedFrames converts a legal Timecode to its position in the
// bijective "elapsed real frame count" space: a plain integer counter over
// legal labels only, with no gaps. For non-DF rates this is identical to
// the naive field-carry total. For FPS_2997 it is the naive total with the
// drop-frame correction subtracted — the same quantity used by the
// standard drop-frame <-> real-time conversion.
func toElapsedFrames(tc Timecode, fps FrameRate) int64 {
	naive := tc.totalFrames(fps)
	if fps == FPS_2997 {
		totalMinutes := int64(tc.Hours)*60 + int64(tc.Minutes)
		naive -= 2 * (totalMinutes - totalMinutes/10)
	}
	return naive
}

// fromElapsedFrames is the inverse of toElapsedFrames: it always produces a
// legal Timecode, wrapping at 24h within the elapsed-frame space.
func fromElapsedFrames(elapsed int64, fps FrameRate) Timecode {
	if fps != FPS_2997 {
		return fromTotalFrames(elapsed, fps)
	}

	elapsed %= elapsedFramesPerDay29_97
	if elapsed < 0 {
		elapsed += elapsedFramesPerDay29_97
	}
	return decodeDropFrameElapsed(elapsed)
}

// decodeDropFrameElapsed implements the standard SMPTE drop-frame
// "elapsed frame count to label" algorithm: every complete 10-minute block
// holds 17982 elapsed frames; every non-first minute of a decade holds
// 1798 (two fewer, for the dropped labels 0 and 1).
func decodeDropFrameElapsed(elapsed int64) Timecode {
	d := elapsed / 17982
	m := elapsed % 17982
	if m < 2 {
		m += 2
	}
	elapsed += 18*d + 2*((m-2)/1798)

	frames := elapsed % 30
	totalSeconds := elapsed / 30
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

// OffsetTimecode shifts tc by n frames (n may be negative), wrapping at
// 24h. n is constrained to [-30, 30] by the caller's UI, but this function
// must not silently misbehave for an out-of-range n: it clamps to ±30 and
// returns ErrOffsetOutOfRange so the invariant violation is observable.
//
// Operates in the elapsed-real-frame space (toElapsedFrames/
// fromElapsedFrames) rather than patching the naive field total, so that
// OffsetTimecode(OffsetTimecode(tc, n), -n) == tc exactly for every legal
// tc and |n| <= 30 (spec.md §8.5) — patching the naive total after the add
// is not invertible across a drop-frame minute boundary.
func OffsetTimecode(tc Timecode, n int, fps FrameRate) (Timecode, error) {
	var err error
	if n > 30 {
		n = 30
		err = ErrOffsetOutOfRange
	} else if n < -30 {
		n = -30
		err = ErrOffsetOutOfRange
	}
	elapsed := toElapsedFrames(tc, fps) + int64(n)
	return dfPatch(fromElapsedFrames(elapsed, fps), fps), err
}

const msPerDay = 86400000

// wrapMs folds ms into [0, msPerDay).
func wrapMs(ms int64) int64 {
	ms %= msPerDay
	if ms < 0 {
		ms += msPerDay
	}
	return ms
}

// WallClockToTimecode converts milliseconds since midnight to a Timecode at
// the given rate, applying SMPTE drop-frame numbering for FPS_2997.
func WallClockToTimecode(msSinceMidnight int64, fps FrameRate) Timecode {
	ms := wrapMs(msSinceMidnight)

	if fps == FPS_2997 {
		elapsed := int64(math.Round(float64(ms) / 1000.0 * (30000.0 / 1001.0)))
		return dfPatch(fromElapsedFrames(elapsed, fps), fps)
	}

	fpsReal := fps.RealFPS()
	totalFrames := int64(math.Floor(float64(ms) / 1000.0 * fpsReal))
	return fromTotalFrames(totalFrames, fps)
}

// TimecodeToMs is the inverse of WallClockToTimecode.
func TimecodeToMs(tc Timecode, fps FrameRate) int64 {
	if fps == FPS_2997 {
		elapsed := toElapsedFrames(tc, fps)
		return int64(math.Round(float64(elapsed) * 1000.0 / (30000.0 / 1001.0)))
	}

	fpsReal := fps.RealFPS()
	fpsInt := int64(fps.IntFPS())
	totalFrames := (int64(tc.Hours)*3600+int64(tc.Minutes)*60+int64(tc.Seconds))*fpsInt + int64(tc.Frames)
	return int64(math.Round(float64(totalFrames) / fpsReal * 1000.0))
}

// AdvanceFrames moves tc forward (or backward, for negative n) by an
// unbounded number of frames, wrapping at 24h. Unlike OffsetTimecode this
// has no ±30 restriction; it is used for interpolation (advancing a sync
// point by elapsed time) rather than user-facing per-output offsets.
func AdvanceFrames(tc Timecode, n int64, fps FrameRate) Timecode {
	elapsed := toElapsedFrames(tc, fps) + n
	return dfPatch(fromElapsedFrames(elapsed, fps), fps)
}

// framesPerDay is the number of distinct legal frame labels in 24h at
// fps: the naive per-rate frame count, or the drop-frame-corrected count
// for FPS_2997.
func framesPerDay(fps FrameRate) int64 {
	if fps == FPS_2997 {
		return elapsedFramesPerDay29_97
	}
	return int64(fps.IntFPS()) * 86400
}

// ShortestFrameDistance returns the signed frame count from a to b on
// the 24h wheel, taking whichever of the two wraparound directions is
// shorter (the result lies in (-framesPerDay/2, framesPerDay/2]). Used
// by the LTC encoder's auto-increment to decide whether a seek is small
// enough to let the generator coast through, or large enough to need an
// immediate resync (spec.md §4.g).
func ShortestFrameDistance(a, b Timecode, fps FrameRate) int64 {
	total := framesPerDay(fps)
	d := (toElapsedFrames(b, fps) - toElapsedFrames(a, fps)) % total
	if d > total/2 {
		d -= total
	} else if d <= -total/2 {
		d += total
	}
	return d
}

// ConvertTimecodeRate re-expresses tc, currently at "from", as the
// equivalent wall-clock instant at "to". Converting to the same rate is the
// identity exactly (no rounding trip through milliseconds): this matters
// because ms-granularity conversion is lossy for rates whose frame
// duration doesn't divide a millisecond evenly (24, 29.97, 30).
func ConvertTimecodeRate(tc Timecode, from, to FrameRate) Timecode {
	if from == to {
		return tc
	}
	return WallClockToTimecode(TimecodeToMs(tc, from), to)
}
