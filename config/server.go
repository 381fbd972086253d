package config

import (
	"fmt"
	"time"

	"github.com/Mmx233/PixelVeil/protocol"
)

type Server struct {
	Listen       Listen         `yaml:"listen"`
	Transfer     ServerTransfer `yaml:"transfer"`
	Limits       Limits         `yaml:"limits"`
	Inbox        Inbox          `yaml:"inbox"`
	Workers      int            `yaml:"workers"`       // concurrent request handlers
	SocketBuffer int            `yaml:"socket_buffer"` // SO_RCVBUF / SO_SNDBUF in bytes
}

type ServerTransfer struct {
	ChunkSize         int           `yaml:"chunk_size"`
	ChunkPacing       time.Duration `yaml:"chunk_pacing"`
	RetransmitPacing  time.Duration `yaml:"retransmit_pacing"`
	ReassemblyTimeout time.Duration `yaml:"reassembly_timeout"`
	SentCacheTTL      time.Duration `yaml:"sent_cache_ttl"`
	MaxMissingIndices int           `yaml:"max_missing_indices"`
}

type Inbox struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// ApplyDefaults fills zero-valued fields.
func (s *Server) ApplyDefaults() {
	if s.Listen.IP == "" {
		s.Listen.IP = DefaultListenIP
	}
	if s.Listen.Port == 0 {
		s.Listen.Port = DefaultListenPort
	}
	s.Transfer.ApplyDefaults()
	s.Limits.ApplyDefaults()
	if s.Inbox.Path == "" && !s.Inbox.InMemory {
		s.Inbox.Path = DefaultInboxPath
	}
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}
	if s.SocketBuffer == 0 {
		s.SocketBuffer = DefaultSocketBuffer
	}
}

func (t *ServerTransfer) ApplyDefaults() {
	if t.ChunkSize == 0 {
		t.ChunkSize = protocol.DefaultChunkSize
	}
	if t.ChunkPacing == 0 {
		t.ChunkPacing = protocol.DefaultChunkPacing
	}
	if t.RetransmitPacing == 0 {
		t.RetransmitPacing = protocol.DefaultRetransmitPacing
	}
	if t.ReassemblyTimeout == 0 {
		t.ReassemblyTimeout = protocol.DefaultReassemblyTimeout
	}
	if t.SentCacheTTL == 0 {
		t.SentCacheTTL = protocol.DefaultSentCacheTTL
	}
	if t.MaxMissingIndices == 0 {
		t.MaxMissingIndices = protocol.DefaultMaxMissingIndices
	}
}

// SenderConfig maps the transfer settings onto the protocol sender.
func (t ServerTransfer) SenderConfig() protocol.SenderConfig {
	return protocol.SenderConfig{
		ChunkSize:         t.ChunkSize,
		ChunkPacing:       t.ChunkPacing,
		RetransmitPacing:  t.RetransmitPacing,
		MaxMissingIndices: t.MaxMissingIndices,
	}
}

// Validate checks a server config after defaults are applied.
func (s *Server) Validate() error {
	if _, err := s.Listen.UDPAddr(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := validateChunkSize(s.Transfer.ChunkSize); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := validateMissingIndices(s.Transfer.MaxMissingIndices); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if s.Transfer.ChunkPacing < 0 || s.Transfer.RetransmitPacing < 0 {
		return fmt.Errorf("transfer: pacing cannot be negative")
	}
	if s.Transfer.ReassemblyTimeout < 0 || s.Transfer.SentCacheTTL < 0 {
		return fmt.Errorf("transfer: timeouts cannot be negative")
	}
	if err := s.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", s.Workers)
	}
	if s.SocketBuffer < 0 {
		return fmt.Errorf("socket_buffer cannot be negative, got %d", s.SocketBuffer)
	}
	return nil
}
