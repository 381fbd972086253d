package protocol

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultChunkPacing      = 15 * time.Millisecond
	DefaultRetransmitPacing = 2 * time.Millisecond
	DefaultSentCacheTTL     = 60 * time.Second
)

// PacketWriter is the write half of a datagram socket.
type PacketWriter interface {
	WriteTo(p []byte, addr net.Addr) (n int, err error)
}

// SenderConfig controls fragmenting and pacing.
type SenderConfig struct {
	ChunkSize         int
	ChunkPacing       time.Duration // delay between fragments of one message
	RetransmitPacing  time.Duration // delay between resent fragments
	MaxMissingIndices int           // cap on fragments resent per request
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkPacing < 0 {
		c.ChunkPacing = 0
	}
	if c.RetransmitPacing < 0 {
		c.RetransmitPacing = 0
	}
	if c.MaxMissingIndices <= 0 {
		c.MaxMissingIndices = DefaultMaxMissingIndices
	}
	return c
}

// Sender writes messages as paced envelopes. With a cache, fragmented
// messages are kept so retransmit requests can be served.
type Sender struct {
	conn   PacketWriter
	cfg    SenderConfig
	cache  *SentCache
	logger zerolog.Logger
}

// NewSender creates a sender. cache may be nil.
func NewSender(conn PacketWriter, cfg SenderConfig, cache *SentCache, logger zerolog.Logger) *Sender {
	return &Sender{
		conn:   conn,
		cfg:    cfg.withDefaults(),
		cache:  cache,
		logger: logger,
	}
}

// Send fragments data and writes every envelope to addr. It returns the
// number of bytes put on the wire.
func (s *Sender) Send(ctx context.Context, data []byte, addr net.Addr) (int, error) {
	envs := Fragment(data, s.cfg.ChunkSize)
	datagrams, err := EncodeEnvelopes(envs)
	if err != nil {
		return 0, err
	}

	chunkID := ChunkIDOf(envs)
	if chunkID != "" && s.cache != nil {
		s.cache.Put(chunkID, addr.String(), datagrams)
	}

	written := 0
	for i, dgram := range datagrams {
		if i > 0 {
			if err := sleepCtx(ctx, s.cfg.ChunkPacing); err != nil {
				return written, err
			}
		}
		n, err := s.conn.WriteTo(dgram, addr)
		written += n
		if err != nil {
			return written, fmt.Errorf("write fragment %d/%d: %w", i, len(datagrams), err)
		}
	}

	if chunkID != "" {
		s.logger.Debug().
			Str("chunk_id", chunkID).
			Int("chunks", len(datagrams)).
			Int("bytes", written).
			Str("to", addr.String()).
			Msg("sent fragmented message")
	}
	return written, nil
}

// HandleRetransmit resends the requested fragments of a cached message.
// Requests from any address other than the original recipient are ignored,
// as are unknown chunk IDs and out-of-range indices. It returns the number of
// fragments resent.
func (s *Sender) HandleRetransmit(ctx context.Context, req *RetransmitRequest, from net.Addr) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	logger := s.logger.With().Str("chunk_id", req.ChunkID).Str("from", from.String()).Logger()

	datagrams, ok := s.cache.Lookup(req.ChunkID, from.String())
	if !ok {
		logger.Debug().Msg("retransmit request for unknown chunk")
		return 0, nil
	}

	indices := req.MissingIndices
	if len(indices) > s.cfg.MaxMissingIndices {
		indices = indices[:s.cfg.MaxMissingIndices]
	}

	resent := 0
	for _, idx := range indices {
		if int64(idx) >= int64(len(datagrams)) {
			logger.Debug().Uint32("index", idx).Msg("retransmit index out of range")
			continue
		}
		if resent > 0 {
			if err := sleepCtx(ctx, s.cfg.RetransmitPacing); err != nil {
				return resent, err
			}
		}
		if _, err := s.conn.WriteTo(datagrams[idx], from); err != nil {
			return resent, fmt.Errorf("resend fragment %d: %w", idx, err)
		}
		resent++
	}

	logger.Debug().Int("resent", resent).Int("requested", len(req.MissingIndices)).Msg("served retransmit request")
	return resent, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type sentEntry struct {
	peer      string
	datagrams [][]byte
	storedAt  time.Time
}

// SentCache keeps the encoded fragments of recently sent messages by chunk ID.
type SentCache struct {
	mu      sync.Mutex
	entries map[string]*sentEntry
	ttl     time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSentCache creates a cache whose entries expire after ttl. Call Close to
// stop its expiry loop.
func NewSentCache(ttl time.Duration) *SentCache {
	if ttl <= 0 {
		ttl = DefaultSentCacheTTL
	}
	c := &SentCache{
		entries: make(map[string]*sentEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Put stores the datagrams of chunkID sent to peer.
func (c *SentCache) Put(chunkID, peer string, datagrams [][]byte) {
	c.mu.Lock()
	c.entries[chunkID] = &sentEntry{peer: peer, datagrams: datagrams, storedAt: time.Now()}
	c.mu.Unlock()
}

// Lookup returns the datagrams of chunkID if they were sent to peer.
func (c *SentCache) Lookup(chunkID, peer string) ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[chunkID]
	if !ok || e.peer != peer {
		return nil, false
	}
	return e.datagrams, true
}

// Len returns the number of cached messages.
func (c *SentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the expiry loop.
func (c *SentCache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

func (c *SentCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(max(c.ttl/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

func (c *SentCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for id, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, id)
			dropped++
		}
	}
	return dropped
}
