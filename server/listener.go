package server

import (
	"context"
	"errors"
	"net"

	"github.com/Mmx233/PixelVeil/protocol"
)

// readLoop reads UDP packets using pooled buffers
func (s *Server) readLoop(ctx context.Context) {
	for {
		bufPtr := protocol.GetReadBuffer()
		buf := *bufPtr

		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			protocol.PutReadBuffer(bufPtr)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("read UDP packet failed")
			continue
		}
		s.datagrams.Add(1)

		// Decoding copies payloads out of buf.
		env, err := protocol.UnmarshalEnvelope(buf[:n])
		protocol.PutReadBuffer(bufPtr)
		if err != nil {
			s.logger.Debug().Err(err).Str("from", addr.String()).Msg("drop undecodable datagram")
			continue
		}

		s.processEnvelope(ctx, env, addr)
	}
}

func (s *Server) processEnvelope(ctx context.Context, env protocol.Envelope, addr *net.UDPAddr) {
	switch e := env.(type) {
	case *protocol.SinglePacket:
		s.dispatch(ctx, e.Data, addr)

	case *protocol.MultiPacket:
		msg, err := s.assembler.Add(addr.String(), e)
		if err != nil {
			s.logger.Debug().Err(err).
				Str("from", addr.String()).
				Str("chunk_id", e.ChunkID).
				Msg("drop fragment")
			return
		}
		if msg != nil {
			s.dispatch(ctx, msg, addr)
		}

	case *protocol.RetransmitRequest:
		s.spawn(ctx, func() {
			n, err := s.sender.HandleRetransmit(ctx, e, addr)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Str("chunk_id", e.ChunkID).Msg("retransmit failed")
			}
			s.retransmits.Add(uint64(n))
		})
	}
}

// dispatch hands a complete request to a worker.
func (s *Server) dispatch(ctx context.Context, payload []byte, addr *net.UDPAddr) {
	s.spawn(ctx, func() {
		s.handle(ctx, payload, addr)
	})
}

// spawn runs fn on a worker slot, waiting for one to free up.
func (s *Server) spawn(ctx context.Context, fn func()) {
	select {
	case s.workers <- struct{}{}:
	case <-ctx.Done():
		return
	}

	s.wg.Add(1)
	go func() {
		defer func() {
			<-s.workers
			s.wg.Done()
		}()
		fn()
	}()
}
