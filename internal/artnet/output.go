package artnet

import (
	"net"
	"strconv"
	"sync"

	"github.com/lanewave/tcbridge/internal/timecode"
)

// broadcastAll is used when the output is configured for the "all
// interfaces" selection rather than a specific interface's directed
// broadcast address (spec.md §4.e).
const broadcastAll = "255.255.255.255"

// Output sends an ArtTimeCode packet once per frame at the target rate to
// a broadcast address, pausable like mtc.Output.
type Output struct {
	conn net.PacketConn
	dst  net.Addr

	mu      sync.Mutex
	running bool

	targetTc   timecode.Timecode
	targetRate timecode.FrameRate
}

// NewOutput returns an Output that writes ArtTimeCode packets through
// conn to the broadcast address dst ("" selects 255.255.255.255).
func NewOutput(conn net.PacketConn, dst string) (*Output, error) {
	if dst == "" {
		dst = broadcastAll
	}
	addr, err := net.ResolveUDPAddr("udp4", dst+":"+strconv.Itoa(Port))
	if err != nil {
		return nil, err
	}
	return &Output{conn: conn, dst: addr, targetRate: timecode.FPS_30}, nil
}

// SetTarget updates the Timecode/FrameRate the next tick will send.
func (o *Output) SetTarget(tc timecode.Timecode, rate timecode.FrameRate) {
	o.mu.Lock()
	o.targetTc = tc
	o.targetRate = rate
	o.mu.Unlock()
}

// Tick sends one ArtTimeCode packet if the output is running. Unlike
// mtc.Output there is no sub-frame accumulator to drive: Art-Net carries
// one packet per frame, so the caller's own per-frame timer (sized to
// targetRate) is the only clock involved.
func (o *Output) Tick() error {
	o.mu.Lock()
	running, tc, rate := o.running, o.targetTc, o.targetRate
	o.mu.Unlock()
	if !running {
		return nil
	}
	pkt := Build(tc, rate)
	_, err := o.conn.WriteTo(pkt, o.dst)
	return err
}

// Resume starts the output; Pause suspends it. Both idempotent.
func (o *Output) Resume() {
	o.mu.Lock()
	o.running = true
	o.mu.Unlock()
}

func (o *Output) Pause() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}
