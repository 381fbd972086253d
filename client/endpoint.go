package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Endpoint is one configured node and its health as seen by this client.
type Endpoint struct {
	addr string

	resolveOnce sync.Once
	udpAddr     *net.UDPAddr
	resolveErr  error

	healthy     atomic.Bool
	failures    atomic.Int64
	lastFailure atomic.Int64 // unix nanoseconds

	logger zerolog.Logger
}

// NewEndpoint creates a healthy endpoint for addr (host:port).
func NewEndpoint(addr string, logger zerolog.Logger) *Endpoint {
	e := &Endpoint{
		addr:   addr,
		logger: logger.With().Str("server_addr", addr).Logger(),
	}
	e.healthy.Store(true)
	return e
}

// Addr returns the configured address.
func (e *Endpoint) Addr() string {
	return e.addr
}

// UDPAddr resolves the address once.
func (e *Endpoint) UDPAddr() (*net.UDPAddr, error) {
	e.resolveOnce.Do(func() {
		e.udpAddr, e.resolveErr = net.ResolveUDPAddr("udp", e.addr)
		if e.resolveErr != nil {
			e.resolveErr = fmt.Errorf("resolve %s: %w", e.addr, e.resolveErr)
		}
	})
	return e.udpAddr, e.resolveErr
}

// IsHealthy reports whether the last exchange with the endpoint succeeded.
func (e *Endpoint) IsHealthy() bool {
	return e.healthy.Load()
}

// MarkHealthy records a successful exchange.
func (e *Endpoint) MarkHealthy() {
	if !e.healthy.Swap(true) {
		e.logger.Info().Msg("server marked healthy")
	}
}

// MarkUnhealthy records a failed exchange.
func (e *Endpoint) MarkUnhealthy(err error) {
	e.failures.Add(1)
	e.lastFailure.Store(time.Now().UnixNano())
	if e.healthy.Swap(false) {
		e.logger.Warn().Err(err).Msg("server marked unhealthy")
	}
}

// Failures returns the number of failed exchanges so far.
func (e *Endpoint) Failures() int64 {
	return e.failures.Load()
}

// LastFailure returns when the endpoint last failed, or the zero time.
func (e *Endpoint) LastFailure() time.Time {
	ns := e.lastFailure.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
