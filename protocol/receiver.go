package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultReceiveTimeout    = 5 * time.Second
	DefaultOverallTimeout    = 30 * time.Second
	DefaultMaxRetransmits    = 3
	DefaultMaxMissingIndices = 50
)

var (
	ErrPacketLoss     = errors.New("packet loss")
	ErrChannelTimeout = errors.New("no envelope received before timeout")
)

// PacketLossError reports a message that could not be completed.
type PacketLossError struct {
	ChunkID  string
	Missing  int
	Total    int
	Retries  int
	TimedOut bool // overall timeout rather than exhausted retries
}

func (e *PacketLossError) Error() string {
	reason := "retries exhausted"
	if e.TimedOut {
		reason = "overall timeout"
	}
	return fmt.Sprintf("packet loss: missing %d/%d chunks of %s after %d retransmit requests (%s)",
		e.Missing, e.Total, e.ChunkID, e.Retries, reason)
}

func (e *PacketLossError) Unwrap() error {
	return ErrPacketLoss
}

// PacketConn is the part of net.PacketConn the receiver needs.
type PacketConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	SetReadDeadline(t time.Time) error
}

// ReceiverConfig bounds one blocking receive.
type ReceiverConfig struct {
	ReceiveTimeout    time.Duration // silence that triggers a retransmit request
	OverallTimeout    time.Duration // wall-clock budget for the whole message
	MaxRetransmits    int
	MaxMissingIndices int // cap on indices named in one request
}

func (c ReceiverConfig) withDefaults() ReceiverConfig {
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = DefaultOverallTimeout
	}
	if c.MaxRetransmits < 0 {
		c.MaxRetransmits = 0
	}
	if c.MaxMissingIndices <= 0 {
		c.MaxMissingIndices = DefaultMaxMissingIndices
	}
	return c
}

// Receiver reads envelopes from one endpoint until a message is complete.
// Retry and timeout bookkeeping lives here, scoped to a single Receive call.
type Receiver struct {
	conn   PacketConn
	cfg    ReceiverConfig
	logger zerolog.Logger

	pending  map[string]*partial
	current  string   // chunk ID seen most recently
	peer     net.Addr // sender seen most recently
	retries  int
	received int
}

// NewReceiver creates a receiver. Zero config fields take package defaults,
// except MaxRetransmits where zero disables retransmit requests.
func NewReceiver(conn PacketConn, cfg ReceiverConfig, logger zerolog.Logger) *Receiver {
	return &Receiver{
		conn:   conn,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Retries returns how many retransmit requests the last Receive sent.
func (r *Receiver) Retries() int {
	return r.retries
}

// Received returns how many datagrams the last Receive accepted.
func (r *Receiver) Received() int {
	return r.received
}

func (r *Receiver) reset() {
	r.pending = make(map[string]*partial)
	r.current = ""
	r.peer = nil
	r.retries = 0
	r.received = 0
}

// Receive blocks until one message is reassembled, the retry budget runs out
// (PacketLossError), or the overall timeout passes (PacketLossError if any
// fragment arrived, ErrChannelTimeout otherwise).
func (r *Receiver) Receive(ctx context.Context) ([]byte, error) {
	r.reset()

	deadline := time.Now().Add(r.cfg.OverallTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	bufPtr := GetReadBuffer()
	defer PutReadBuffer(bufPtr)
	buf := *bufPtr

	// Wake a blocked read as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = r.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, r.expired()
		}

		wait := time.Now().Add(r.cfg.ReceiveTimeout)
		if wait.After(deadline) {
			wait = deadline
		}
		if err := r.conn.SetReadDeadline(wait); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
		// A cancel landing before the deadline above was set would be overwritten.
		if err := cancelled(ctx); err != nil {
			return nil, err
		}

		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				return nil, fmt.Errorf("read datagram: %w", err)
			}
			if err := cancelled(ctx); err != nil {
				return nil, err
			}
			if !time.Now().Before(deadline) || ctx.Err() != nil {
				return nil, r.expired()
			}
			if err := r.stalled(); err != nil {
				return nil, err
			}
			continue
		}

		env, err := UnmarshalEnvelope(buf[:n])
		if err != nil {
			r.logger.Debug().Err(err).Str("from", addr.String()).Msg("drop undecodable datagram")
			continue
		}

		switch e := env.(type) {
		case *SinglePacket:
			r.received++
			return e.Data, nil
		case *MultiPacket:
			r.received++
			r.peer = addr
			if msg, ok := r.record(e); ok {
				return msg, nil
			}
		case *RetransmitRequest:
			r.logger.Debug().Str("chunk_id", e.ChunkID).Msg("ignore retransmit request on receiving endpoint")
		}
	}
}

// cancelled reports ctx cancellation. An expired ctx deadline is handled as
// the overall timeout instead.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (r *Receiver) record(mp *MultiPacket) ([]byte, bool) {
	if err := checkTotal(mp.TotalChunks); err != nil {
		r.logger.Warn().Err(err).Str("chunk_id", mp.ChunkID).Msg("drop fragment")
		return nil, false
	}
	p, ok := r.pending[mp.ChunkID]
	if !ok {
		p = newPartial(mp.TotalChunks, time.Now())
		r.pending[mp.ChunkID] = p
	} else if p.total != mp.TotalChunks {
		r.logger.Warn().
			Str("chunk_id", mp.ChunkID).
			Uint32("expected", p.total).
			Uint32("got", mp.TotalChunks).
			Msg("chunk total mismatch")
		return nil, false
	}
	r.current = mp.ChunkID

	if err := p.add(mp.ChunkIndex, mp.Data); err != nil {
		delete(r.pending, mp.ChunkID)
		r.logger.Warn().Err(err).Str("chunk_id", mp.ChunkID).Msg("drop oversized message")
		return nil, false
	}
	if !p.complete() {
		return nil, false
	}

	delete(r.pending, mp.ChunkID)
	r.logger.Debug().
		Str("chunk_id", mp.ChunkID).
		Uint32("chunks", p.total).
		Int("retries", r.retries).
		Msg("message reassembled")
	return p.assemble(), true
}

// stalled runs after a quiet ReceiveTimeout. It asks the last sender for the
// missing fragments while the budget lasts; nothing is sent before the first
// fragment arrives.
func (r *Receiver) stalled() error {
	p, ok := r.pending[r.current]
	if !ok || r.peer == nil {
		return nil
	}

	if r.retries >= r.cfg.MaxRetransmits {
		return &PacketLossError{
			ChunkID: r.current,
			Missing: p.missingCount(),
			Total:   int(p.total),
			Retries: r.retries,
		}
	}

	req := &RetransmitRequest{
		ChunkID:        r.current,
		MissingIndices: p.missing(r.cfg.MaxMissingIndices),
	}
	r.retries++

	dgram, err := MarshalEnvelope(req)
	if err != nil {
		return err
	}
	if _, err := r.conn.WriteTo(dgram, r.peer); err != nil {
		r.logger.Warn().Err(err).Str("chunk_id", r.current).Msg("send retransmit request failed")
		return nil
	}

	r.logger.Debug().
		Str("chunk_id", r.current).
		Int("missing", p.missingCount()).
		Int("requested", len(req.MissingIndices)).
		Int("attempt", r.retries).
		Msg("requested retransmission")
	return nil
}

func (r *Receiver) expired() error {
	p, ok := r.pending[r.current]
	if !ok {
		return ErrChannelTimeout
	}
	return &PacketLossError{
		ChunkID:  r.current,
		Missing:  p.missingCount(),
		Total:    int(p.total),
		Retries:  r.retries,
		TimedOut: true,
	}
}
