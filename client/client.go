package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Mmx233/PixelVeil/config"
	"github.com/Mmx233/PixelVeil/protocol"
	"github.com/Mmx233/PixelVeil/scramble"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrRequestFailed wraps an error reported by the node in its response.
	ErrRequestFailed = errors.New("request failed")

	ErrUnexpectedResponse = errors.New("unexpected response type")
	ErrNoUsername         = errors.New("username is not configured")
)

// Result describes one completed exchange.
type Result struct {
	Server        string
	Latency       time.Duration
	Attempts      int
	BytesSent     int
	BytesReceived int
	Retransmits   int // retransmit requests sent for the response
}

// Client talks to image nodes over the fragmented datagram protocol.
type Client struct {
	config   *config.Client
	balancer *LoadBalancer
	logger   zerolog.Logger
}

// New creates a client for the configured servers.
func New(conf *config.Client) (*Client, error) {
	// Apply defaults to ensure all required fields have values
	conf.ApplyDefaults()
	if err := conf.ValidateServers(); err != nil {
		return nil, err
	}

	logger := log.With().
		Str("com", "client").
		Str("username", conf.Username).
		Logger()

	endpoints := make([]*Endpoint, len(conf.Servers))
	for i, s := range conf.Servers {
		endpoints[i] = NewEndpoint(s.Address, logger)
	}

	return &Client{
		config:   conf,
		balancer: NewLoadBalancer(endpoints...),
		logger:   logger,
	}, nil
}

// Balancer exposes endpoint health.
func (c *Client) Balancer() *LoadBalancer {
	return c.balancer
}

// RoundTrip sends msg and waits for the response, retrying on another server
// when an attempt fails at the transport level. Errors reported inside a
// response are not retried.
func (c *Client) RoundTrip(ctx context.Context, msg protocol.Message) (protocol.Message, Result, error) {
	var result Result
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return nil, result, err
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.config.RetryDelay); err != nil {
				return nil, result, err
			}
		}

		ep, err := c.balancer.Select()
		if err != nil {
			return nil, result, err
		}
		result.Attempts = attempt
		result.Server = ep.Addr()

		resp, err := c.exchange(ctx, ep, data, &result)
		if err == nil {
			ep.MarkHealthy()
			result.Latency = time.Since(start)
			return resp, result, nil
		}

		lastErr = err
		ep.MarkUnhealthy(err)
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn().
			Err(err).
			Str("server", ep.Addr()).
			Str("request", msg.Tag()).
			Int("attempt", attempt).
			Msg("request attempt failed")
	}

	result.Latency = time.Since(start)
	return nil, result, fmt.Errorf("%s after %d attempts: %w", msg.Tag(), result.Attempts, lastErr)
}

// exchange performs one request/response on a fresh ephemeral socket, so a
// late reply to an abandoned attempt can never be mistaken for this one.
func (c *Client) exchange(ctx context.Context, ep *Endpoint, data []byte, result *Result) (protocol.Message, error) {
	addr, err := ep.UDPAddr()
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("open socket: %w", err)
	}
	defer conn.Close()

	sender := protocol.NewSender(conn, c.config.Transfer.SenderConfig(), nil, c.logger)
	sent, err := sender.Send(ctx, data, addr)
	result.BytesSent += sent
	if err != nil {
		return nil, err
	}

	receiver := protocol.NewReceiver(conn, c.config.Transfer.ReceiverConfig(), c.logger)
	payload, err := receiver.Receive(ctx)
	result.Retransmits += receiver.Retries()
	if err != nil {
		return nil, err
	}
	result.BytesReceived += len(payload)

	return protocol.DecodeMessage(payload)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func failure(resp protocol.Message) error {
	if e, ok := resp.(*protocol.ErrorResponse); ok {
		return fmt.Errorf("%w: %s", ErrRequestFailed, e.Error)
	}
	return fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Tag())
}

// Encrypt asks a node to scramble a PNG for the given users.
func (c *Client) Encrypt(ctx context.Context, image []byte, usernames []string, quota uint32) ([]byte, Result, error) {
	resp, result, err := c.RoundTrip(ctx, &protocol.EncryptionRequest{
		RequestID:      uuid.NewString(),
		ClientUsername: c.config.Username,
		ImageData:      image,
		Usernames:      usernames,
		Quota:          quota,
	})
	if err != nil {
		return nil, result, err
	}

	r, ok := resp.(*protocol.EncryptionResponse)
	if !ok {
		return nil, result, failure(resp)
	}
	if !r.Success {
		return nil, result, fmt.Errorf("%w: %s", ErrRequestFailed, r.Error)
	}
	return r.EncryptedImage, result, nil
}

// Decrypt asks a node to restore a scrambled PNG.
func (c *Client) Decrypt(ctx context.Context, image []byte) ([]byte, scramble.Metadata, Result, error) {
	resp, result, err := c.RoundTrip(ctx, &protocol.DecryptionRequest{
		RequestID:      uuid.NewString(),
		ClientUsername: c.config.Username,
		EncryptedImage: image,
	})
	if err != nil {
		return nil, scramble.Metadata{}, result, err
	}

	r, ok := resp.(*protocol.DecryptionResponse)
	if !ok {
		return nil, scramble.Metadata{}, result, failure(resp)
	}
	if !r.Success {
		return nil, scramble.Metadata{}, result, fmt.Errorf("%w: %s", ErrRequestFailed, r.Error)
	}
	return r.DecryptedImage, scramble.Metadata{Usernames: r.Usernames, Quota: r.Quota}, result, nil
}

// SendImage deposits an encrypted image in the recipients' inboxes and
// returns its ID.
func (c *Client) SendImage(ctx context.Context, to []string, image []byte, maxViews uint32) (string, Result, error) {
	if c.config.Username == "" {
		return "", Result{}, ErrNoUsername
	}
	resp, result, err := c.RoundTrip(ctx, &protocol.SendImage{
		FromUsername:   c.config.Username,
		ToUsernames:    to,
		EncryptedImage: image,
		MaxViews:       maxViews,
	})
	if err != nil {
		return "", result, err
	}

	r, ok := resp.(*protocol.SendImageResponse)
	if !ok {
		return "", result, failure(resp)
	}
	if !r.Success {
		return "", result, fmt.Errorf("%w: %s", ErrRequestFailed, r.Error)
	}
	return r.ImageID, result, nil
}

// Inbox lists the images waiting for the configured user.
func (c *Client) Inbox(ctx context.Context) ([]protocol.ReceivedImageInfo, Result, error) {
	if c.config.Username == "" {
		return nil, Result{}, ErrNoUsername
	}
	resp, result, err := c.RoundTrip(ctx, &protocol.QueryReceivedImages{Username: c.config.Username})
	if err != nil {
		return nil, result, err
	}

	r, ok := resp.(*protocol.QueryReceivedImagesResponse)
	if !ok {
		return nil, result, failure(resp)
	}
	return r.Images, result, nil
}

// ViewImage consumes one view of an inbox image and returns the restored PNG
// with the views left.
func (c *Client) ViewImage(ctx context.Context, imageID string) ([]byte, uint32, Result, error) {
	if c.config.Username == "" {
		return nil, 0, Result{}, ErrNoUsername
	}
	resp, result, err := c.RoundTrip(ctx, &protocol.ViewImage{Username: c.config.Username, ImageID: imageID})
	if err != nil {
		return nil, 0, result, err
	}

	r, ok := resp.(*protocol.ViewImageResponse)
	if !ok {
		return nil, 0, result, failure(resp)
	}
	if !r.Success {
		return nil, 0, result, fmt.Errorf("%w: %s", ErrRequestFailed, r.Error)
	}
	var remaining uint32
	if r.RemainingViews != nil {
		remaining = *r.RemainingViews
	}
	return r.ImageData, remaining, result, nil
}
