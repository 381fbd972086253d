package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Mmx233/PixelVeil/protocol"
)

type Client struct {
	Username      string           `yaml:"username"`
	Servers       []ServerEndpoint `yaml:"servers"`
	Transfer      ClientTransfer   `yaml:"transfer"`
	Limits        Limits           `yaml:"limits"`
	RetryAttempts int              `yaml:"retry_attempts"` // attempts per request across servers
	RetryDelay    time.Duration    `yaml:"retry_delay"`
}

// ServerEndpoint represents a single server endpoint
type ServerEndpoint struct {
	Address string `yaml:"address"` // host:port
}

type ClientTransfer struct {
	ChunkSize         int           `yaml:"chunk_size"`
	ChunkPacing       time.Duration `yaml:"chunk_pacing"`
	ReceiveTimeout    time.Duration `yaml:"receive_timeout"` // silence before a retransmit request
	RequestTimeout    time.Duration `yaml:"request_timeout"` // overall budget for one response
	MaxRetransmits    int           `yaml:"max_retransmits"`
	MaxMissingIndices int           `yaml:"max_missing_indices"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Client) ApplyDefaults() {
	c.Transfer.ApplyDefaults()
	c.Limits.ApplyDefaults()
	if c.RetryAttempts == 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

func (t *ClientTransfer) ApplyDefaults() {
	if t.ChunkSize == 0 {
		t.ChunkSize = protocol.DefaultChunkSize
	}
	if t.ChunkPacing == 0 {
		t.ChunkPacing = protocol.DefaultChunkPacing
	}
	if t.ReceiveTimeout == 0 {
		t.ReceiveTimeout = protocol.DefaultReceiveTimeout
	}
	if t.RequestTimeout == 0 {
		t.RequestTimeout = DefaultRequestTimeout
	}
	if t.MaxRetransmits == 0 {
		t.MaxRetransmits = protocol.DefaultMaxRetransmits
	}
	if t.MaxMissingIndices == 0 {
		t.MaxMissingIndices = protocol.DefaultMaxMissingIndices
	}
}

func (t ClientTransfer) SenderConfig() protocol.SenderConfig {
	return protocol.SenderConfig{
		ChunkSize:         t.ChunkSize,
		ChunkPacing:       t.ChunkPacing,
		MaxMissingIndices: t.MaxMissingIndices,
	}
}

func (t ClientTransfer) ReceiverConfig() protocol.ReceiverConfig {
	return protocol.ReceiverConfig{
		ReceiveTimeout:    t.ReceiveTimeout,
		OverallTimeout:    t.RequestTimeout,
		MaxRetransmits:    t.MaxRetransmits,
		MaxMissingIndices: t.MaxMissingIndices,
	}
}

const (
	MinServers = 1
	MaxServers = 10
)

// ValidateAddress validates that an address is in valid host:port format.
// Returns an error if the address is invalid.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format %q: %w", addr, err)
	}

	if host == "" {
		return fmt.Errorf("host cannot be empty in address %q", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in address %q: %w", addr, err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d in address %q", port, addr)
	}

	return nil
}

// ValidateServers checks server count and address format.
func (c *Client) ValidateServers() error {
	if len(c.Servers) < MinServers {
		return fmt.Errorf("at least %d server address must be provided", MinServers)
	}
	if len(c.Servers) > MaxServers {
		return fmt.Errorf("maximum %d server addresses allowed, got %d", MaxServers, len(c.Servers))
	}
	for i, server := range c.Servers {
		if err := ValidateAddress(server.Address); err != nil {
			return fmt.Errorf("server[%d]: %w", i, err)
		}
	}
	return nil
}

// DeduplicateServers drops repeated addresses in place, keeping first
// occurrences, and reports whether any were dropped.
func (c *Client) DeduplicateServers() bool {
	if len(c.Servers) == 0 {
		return false
	}

	seen := make(map[string]bool, len(c.Servers))
	deduplicated := make([]ServerEndpoint, 0, len(c.Servers))
	for _, server := range c.Servers {
		if !seen[server.Address] {
			seen[server.Address] = true
			deduplicated = append(deduplicated, server)
		}
	}

	hasDuplicates := len(deduplicated) != len(c.Servers)
	c.Servers = deduplicated
	return hasDuplicates
}

// Validate checks the settings that do not involve servers. Local-only
// commands need nothing more.
func (c *Client) Validate() error {
	if strings.ContainsRune(c.Username, '/') {
		return fmt.Errorf("username cannot contain '/': %q", c.Username)
	}
	if err := validateChunkSize(c.Transfer.ChunkSize); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := validateMissingIndices(c.Transfer.MaxMissingIndices); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if c.Transfer.ReceiveTimeout < 0 || c.Transfer.RequestTimeout < 0 {
		return fmt.Errorf("transfer: timeouts cannot be negative")
	}
	if c.Transfer.MaxRetransmits < 0 {
		return fmt.Errorf("transfer: max_retransmits cannot be negative")
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be positive, got %d", c.RetryAttempts)
	}
	return nil
}
