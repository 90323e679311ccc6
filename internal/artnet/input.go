package artnet

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanewave/tcbridge/internal/tcconst"
	"github.com/lanewave/tcbridge/internal/timecode"
)

// readTimeout bounds each blocking read so the receive goroutine can
// observe a stop request (spec.md §5: "Art-Net receive thread" shutdown
// must be bounded at ≤1s; we poll well under that).
const readTimeout = 100 * time.Millisecond

// Input listens for ArtTimeCode UDP packets and exposes the last accepted
// Timecode/FrameRate plus a liveness flag, the same shape as mtc.Input.
type Input struct {
	mu           sync.Mutex
	tc           timecode.Timecode
	rate         timecode.FrameRate
	lastPacketMs int64

	synced atomic.Bool

	conn   net.PacketConn
	stopCh chan struct{}
	doneCh chan struct{}

	onReservedBits func()
}

// NewInput returns an unsynced Input.
func NewInput() *Input {
	return &Input{rate: timecode.FPS_30}
}

// OnReservedBits installs a callback invoked whenever an accepted packet
// had nonzero reserved bits in byte 18 (spec.md §4.d: "log but continue").
// Optional; nil is a no-op.
func (in *Input) OnReservedBits(fn func()) {
	in.onReservedBits = fn
}

// HandlePacket decodes buf and, if it is a valid ArtTimeCode packet,
// publishes the new sync point. Malformed packets are dropped silently
// without touching lastPacketMs, preserving accurate liveness per
// spec.md §7 (ProtocolFraming).
func (in *Input) HandlePacket(buf []byte, nowMs int64) {
	tc, rate, reservedBitsSet, err := Parse(buf)
	if err != nil {
		return
	}
	if reservedBitsSet && in.onReservedBits != nil {
		in.onReservedBits()
	}

	in.mu.Lock()
	in.tc = tc
	in.rate = rate
	in.lastPacketMs = nowMs
	in.mu.Unlock()
	in.synced.Store(true)
}

// CurrentTimecode returns the last accepted Timecode/FrameRate and whether
// the source is currently receiving (a packet arrived within
// tcconst.SourceTimeoutMs of nowMs).
func (in *Input) CurrentTimecode(nowMs int64) (tc timecode.Timecode, rate timecode.FrameRate, receiving bool) {
	if !in.synced.Load() {
		return timecode.Timecode{}, timecode.FPS_30, false
	}
	in.mu.Lock()
	tc, rate, lastPacketMs := in.tc, in.rate, in.lastPacketMs
	in.mu.Unlock()
	return tc, rate, nowMs-lastPacketMs <= tcconst.SourceTimeoutMs
}

// Bind opens the UDP listener: on the given interface IP if non-empty, or
// 0.0.0.0 otherwise. If binding to a specified interface IP fails, it
// falls back to 0.0.0.0 and returns fellBack=true so the caller can raise
// the DeviceBusy flag (spec.md §7).
func Bind(interfaceIP string) (conn net.PacketConn, fellBack bool, err error) {
	if interfaceIP != "" {
		conn, err = net.ListenPacket("udp4", interfaceIP+":"+strconv.Itoa(Port))
		if err == nil {
			return conn, false, nil
		}
	}
	conn, err = net.ListenPacket("udp4", ":"+strconv.Itoa(Port))
	return conn, interfaceIP != "", err
}

// Run reads packets from conn until Stop is called, feeding each into
// HandlePacket with the current wall-clock time. nowFn is injected so
// tests can control time; production callers pass a function wrapping
// time.Now().
func (in *Input) Run(conn net.PacketConn, nowFn func() int64) {
	in.conn = conn
	in.stopCh = make(chan struct{})
	in.doneCh = make(chan struct{})

	buf := make([]byte, 2048)
	go func() {
		defer close(in.doneCh)
		for {
			select {
			case <-in.stopCh:
				return
			default:
			}
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				continue // timeout or transient error: loop and re-check stopCh
			}
			in.HandlePacket(buf[:n], nowFn())
		}
	}()
}

// Stop signals the receive goroutine to exit and waits for it, then
// closes the socket.
func (in *Input) Stop() {
	if in.stopCh == nil {
		return
	}
	close(in.stopCh)
	<-in.doneCh
	in.conn.Close()
}
