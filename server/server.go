package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Mmx233/PixelVeil/config"
	"github.com/Mmx233/PixelVeil/protocol"
	"github.com/Mmx233/PixelVeil/scramble"
	"github.com/Mmx233/PixelVeil/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Stats counts node activity since start.
type Stats struct {
	Datagrams   uint64
	Messages    uint64
	Failures    uint64
	Retransmits uint64
}

// Server is one image node: a UDP endpoint serving scramble and inbox requests.
type Server struct {
	config      *config.Server
	conn        *net.UDPConn
	assembler   *protocol.Assembler
	sentCache   *protocol.SentCache
	sender      *protocol.Sender
	inbox       *store.Inbox
	transformer *scramble.Transformer
	workers     chan struct{}
	wg          sync.WaitGroup
	logger      zerolog.Logger

	datagrams   atomic.Uint64
	messages    atomic.Uint64
	failures    atomic.Uint64
	retransmits atomic.Uint64
}

// New opens the inbox and binds the UDP socket. Call Serve to start handling
// requests, or Close to release the resources.
func New(ctx context.Context, conf *config.Server) (*Server, error) {
	// Apply defaults to ensure all required fields have values
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := log.With().Str("com", "server").Logger()

	addr, err := conf.Listen.UDPAddr()
	if err != nil {
		return nil, err
	}

	inbox, err := store.Open(conf.Inbox.Path, conf.Inbox.InMemory, logger)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: socketBufferControl(conf.SocketBuffer)}
	pc, err := lc.ListenPacket(ctx, "udp", addr.String())
	if err != nil {
		_ = inbox.Close()
		return nil, fmt.Errorf("listen UDP: %w", err)
	}
	conn := pc.(*net.UDPConn)

	sentCache := protocol.NewSentCache(conf.Transfer.SentCacheTTL)
	s := &Server{
		config:      conf,
		conn:        conn,
		assembler:   protocol.NewAssembler(protocol.DefaultShardCount, conf.Transfer.ReassemblyTimeout),
		sentCache:   sentCache,
		sender:      protocol.NewSender(conn, conf.Transfer.SenderConfig(), sentCache, logger),
		inbox:       inbox,
		transformer: scramble.NewTransformer(conf.Limits.MaxMetadataSize, conf.Limits.MaxPixels),
		workers:     make(chan struct{}, conf.Workers),
		logger:      logger,
	}

	logger.Info().
		Str("addr", conn.LocalAddr().String()).
		Int("workers", conf.Workers).
		Int("chunk_size", conf.Transfer.ChunkSize).
		Msg("UDP listener started")
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	return Stats{
		Datagrams:   s.datagrams.Load(),
		Messages:    s.messages.Load(),
		Failures:    s.failures.Load(),
		Retransmits: s.retransmits.Load(),
	}
}

// Serve reads datagrams until ctx is cancelled, then waits for in-flight
// requests and releases every resource.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.Close()
	})
	defer stop()

	s.readLoop(ctx)
	s.wg.Wait()
	return s.close()
}

// Close releases the resources of a server that was never served.
func (s *Server) Close() error {
	_ = s.conn.Close()
	return s.close()
}

func (s *Server) close() error {
	s.assembler.Close()
	s.sentCache.Close()
	return s.inbox.Close()
}
