package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Mmx233/PixelVeil/protocol"
	"github.com/Mmx233/PixelVeil/scramble"
	"github.com/Mmx233/PixelVeil/store"
)

var ErrUnauthorized = errors.New("user is not authorized for this image")

// handle decodes one request, runs it and sends the response back to addr.
func (s *Server) handle(ctx context.Context, payload []byte, addr *net.UDPAddr) {
	logger := s.logger.With().Str("from", addr.String()).Logger()
	start := time.Now()

	var resp protocol.Message
	req, err := protocol.DecodeMessage(payload)
	if err != nil {
		logger.Warn().Err(err).Int("bytes", len(payload)).Msg("undecodable request")
		resp = &protocol.ErrorResponse{Error: err.Error()}
	} else {
		resp = s.handleMessage(req)
	}

	s.messages.Add(1)
	if !succeeded(resp) {
		s.failures.Add(1)
	}

	data, err := protocol.EncodeMessage(resp)
	if err != nil {
		logger.Error().Err(err).Str("type", resp.Tag()).Msg("encode response failed")
		return
	}
	written, err := s.sender.Send(ctx, data, addr)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn().Err(err).Str("type", resp.Tag()).Msg("send response failed")
		}
		return
	}

	event := logger.Debug()
	if req != nil {
		event = event.Str("request", req.Tag())
	}
	event.Str("response", resp.Tag()).
		Int("bytes", written).
		Dur("elapsed", time.Since(start)).
		Msg("request served")
}

func succeeded(msg protocol.Message) bool {
	switch m := msg.(type) {
	case *protocol.EncryptionResponse:
		return m.Success
	case *protocol.DecryptionResponse:
		return m.Success
	case *protocol.SendImageResponse:
		return m.Success
	case *protocol.ViewImageResponse:
		return m.Success
	case *protocol.ErrorResponse:
		return false
	default:
		return true
	}
}

// handleMessage maps a request onto its response. Failures are reported in
// the response, never dropped.
func (s *Server) handleMessage(msg protocol.Message) protocol.Message {
	switch m := msg.(type) {
	case *protocol.EncryptionRequest:
		return s.handleEncrypt(m)
	case *protocol.DecryptionRequest:
		return s.handleDecrypt(m)
	case *protocol.SendImage:
		return s.handleSendImage(m)
	case *protocol.QueryReceivedImages:
		return s.handleQuery(m)
	case *protocol.ViewImage:
		return s.handleView(m)
	default:
		return &protocol.ErrorResponse{Error: fmt.Sprintf("unsupported request %s", msg.Tag())}
	}
}

func (s *Server) handleEncrypt(req *protocol.EncryptionRequest) protocol.Message {
	md := scramble.Metadata{Usernames: req.Usernames, Quota: req.Quota}
	enc, err := s.transformer.EncryptPNG(req.ImageData, md)
	if err != nil {
		s.logger.Info().Err(err).Str("request_id", req.RequestID).Msg("encryption failed")
		return &protocol.EncryptionResponse{RequestID: req.RequestID, Error: err.Error()}
	}

	s.logger.Debug().
		Str("request_id", req.RequestID).
		Str("client", req.ClientUsername).
		Int("users", len(req.Usernames)).
		Uint32("quota", req.Quota).
		Msg("image encrypted")
	return &protocol.EncryptionResponse{RequestID: req.RequestID, EncryptedImage: enc, Success: true}
}

func (s *Server) handleDecrypt(req *protocol.DecryptionRequest) protocol.Message {
	plain, md, err := s.transformer.DecryptPNG(req.EncryptedImage)
	if err == nil && req.ClientUsername != "" && !md.Authorized(req.ClientUsername) {
		err = fmt.Errorf("%w: %s", ErrUnauthorized, req.ClientUsername)
	}
	if err != nil {
		s.logger.Info().Err(err).Str("request_id", req.RequestID).Msg("decryption failed")
		return &protocol.DecryptionResponse{RequestID: req.RequestID, Error: err.Error()}
	}

	return &protocol.DecryptionResponse{
		RequestID:      req.RequestID,
		DecryptedImage: plain,
		Usernames:      md.Usernames,
		Quota:          md.Quota,
		Success:        true,
	}
}

func (s *Server) handleSendImage(req *protocol.SendImage) protocol.Message {
	id, err := s.inbox.Put(req.ToUsernames, store.Record{
		ImageID:  req.ImageID,
		From:     req.FromUsername,
		MaxViews: req.MaxViews,
		Image:    req.EncryptedImage,
	})
	if err != nil {
		return &protocol.SendImageResponse{ImageID: req.ImageID, Error: err.Error()}
	}
	return &protocol.SendImageResponse{Success: true, ImageID: id}
}

func (s *Server) handleQuery(req *protocol.QueryReceivedImages) protocol.Message {
	records, err := s.inbox.List(req.Username)
	if err != nil {
		return &protocol.ErrorResponse{Error: err.Error()}
	}

	images := make([]protocol.ReceivedImageInfo, 0, len(records))
	for _, rec := range records {
		images = append(images, protocol.ReceivedImageInfo{
			ImageID:        rec.ImageID,
			FromUsername:   rec.From,
			RemainingViews: rec.RemainingViews,
			Timestamp:      rec.Timestamp,
		})
	}
	return &protocol.QueryReceivedImagesResponse{Images: images}
}

// handleView consumes one view. The image is decrypted before the view is
// charged, so a viewer missing from the embedded user list keeps the budget
// intact and gets nothing back.
func (s *Server) handleView(req *protocol.ViewImage) protocol.Message {
	var plain []byte
	rec, err := s.inbox.View(req.Username, req.ImageID, func(rec store.Record) error {
		p, md, err := s.transformer.DecryptPNG(rec.Image)
		if err != nil {
			return err
		}
		if !md.Authorized(req.Username) {
			return fmt.Errorf("%w: %s", ErrUnauthorized, req.Username)
		}
		plain = p
		return nil
	})

	switch {
	case err == nil:
		remaining := rec.RemainingViews
		return &protocol.ViewImageResponse{Success: true, ImageData: plain, RemainingViews: &remaining}
	case errors.Is(err, store.ErrNoViewsRemaining):
		zero := uint32(0)
		return &protocol.ViewImageResponse{RemainingViews: &zero, Error: err.Error()}
	default:
		return &protocol.ViewImageResponse{Error: err.Error()}
	}
}
