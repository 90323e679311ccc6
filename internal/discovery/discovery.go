// Package discovery announces the daemon's control surface over mDNS so
// a companion GUI can find a running bridge without the user typing in
// an address, mirroring the teacher's dns_sd.go announcement of its
// KISS-over-TCP service.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType is the mDNS service type this daemon advertises.
const ServiceType = "_tcbridge._tcp"

// Announcer wraps a dnssd responder for one advertised instance. Zero
// value is not usable; construct with Start.
type Announcer struct {
	responder dnssd.Responder
	cancel    context.CancelFunc
}

// Start registers name on ServiceType at port and begins responding to
// mDNS queries in a background goroutine. The returned Announcer must be
// stopped with Shutdown.
func Start(logger *log.Logger, name string, port int, txt map[string]string) (*Announcer, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
		Text: txt,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: create service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: create responder: %w", err)
	}

	if _, err := responder.Add(service); err != nil {
		return nil, fmt.Errorf("discovery: add service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{responder: responder, cancel: cancel}

	logger.Info("announcing mDNS service", "type", ServiceType, "name", name, "port", port)
	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("mDNS responder stopped", "err", err)
		}
	}()

	return a, nil
}

// Shutdown stops responding to queries. Idempotent.
func (a *Announcer) Shutdown() {
	if a == nil || a.cancel == nil {
		return
	}
	a.cancel()
}
