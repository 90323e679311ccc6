// Package artnet implements the Art-Net Timecode protocol: OpCode 0x9700
// packets carrying a Timecode and frame-rate code over UDP port 6454. The
// wire format is fixed by the Art-Net spec's ArtTimeCode packet, not
// negotiated, so parse/build are free functions rather than a codec type.
package artnet

import (
	"encoding/binary"
	"errors"

	"github.com/lanewave/tcbridge/internal/timecode"
)

// Port is the UDP port Art-Net Timecode is sent and received on.
const Port = 6454

const packetLen = 19

var artNetID = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0}

const opCodeTimeCode = 0x9700

// minProtVer is the lowest Art-Net protocol version this decoder accepts
// (spec.md §4.d): versions below 14 predate the TimeCode OpCode.
const minProtVer = 14

// errBadPacket covers every rejection path in Parse: short reads, bad
// magic, wrong OpCode, too-old ProtVer, and out-of-range timecode fields.
// Callers treat all of these identically (drop silently, don't touch
// liveness) so a single sentinel is enough.
var errBadPacket = errors.New("artnet: malformed or unrecognised packet")

// Parse decodes a UDP payload into a Timecode and FrameRate. It returns
// errBadPacket for anything that fails the acceptance checks in spec.md
// §4.d; reserved bits set in byte 18 are tolerated (logged by the caller,
// not rejected here).
func Parse(buf []byte) (tc timecode.Timecode, rate timecode.FrameRate, reservedBitsSet bool, err error) {
	if len(buf) < packetLen {
		return timecode.Timecode{}, 0, false, errBadPacket
	}
	if [8]byte(buf[0:8]) != artNetID {
		return timecode.Timecode{}, 0, false, errBadPacket
	}
	opCode := binary.LittleEndian.Uint16(buf[8:10])
	if opCode != opCodeTimeCode {
		return timecode.Timecode{}, 0, false, errBadPacket
	}
	protVer := binary.BigEndian.Uint16(buf[10:12])
	if protVer < minProtVer {
		return timecode.Timecode{}, 0, false, errBadPacket
	}

	frames, seconds, minutes, hours := buf[14], buf[15], buf[16], buf[17]
	typeByte := buf[18]
	rateCode := typeByte & 0x03
	reservedBitsSet = typeByte&0xFC != 0

	tc = timecode.Timecode{Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames}
	rate, ok := timecode.RateFromCode(rateCode)
	if !ok || hours > 23 || minutes > 59 || seconds > 59 || frames > 29 {
		return timecode.Timecode{}, 0, false, errBadPacket
	}

	return tc, rate, reservedBitsSet, nil
}

// Build encodes tc/rate into a 19-byte ArtTimeCode packet.
func Build(tc timecode.Timecode, rate timecode.FrameRate) []byte {
	buf := make([]byte, packetLen)
	copy(buf[0:8], artNetID[:])
	binary.LittleEndian.PutUint16(buf[8:10], opCodeTimeCode)
	binary.BigEndian.PutUint16(buf[10:12], minProtVer)
	// bytes 12,13 (Filler/StreamID) stay zero.
	buf[14] = tc.Frames
	buf[15] = tc.Seconds
	buf[16] = tc.Minutes
	buf[17] = tc.Hours
	buf[18] = timecode.RateToCode(rate) & 0x03
	return buf
}
