package config

import (
	"fmt"
	"net"
	"strconv"
)

const (
	EnvPrefix = "PIXELVEIL_"
)

type Listen struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

func (l Listen) GetIP() (net.IP, error) {
	ip := net.ParseIP(l.IP)
	if ip == nil {
		return nil, fmt.Errorf("invalid ip address: %s", l.IP)
	}
	return ip, nil
}

// UDPAddr returns the address to bind.
func (l Listen) UDPAddr() (*net.UDPAddr, error) {
	ip, err := l.GetIP()
	if err != nil {
		return nil, err
	}
	if l.Port < 0 || l.Port > 65535 {
		return nil, fmt.Errorf("port must be between 0 and 65535, got %d", l.Port)
	}
	return &net.UDPAddr{IP: ip, Port: l.Port}, nil
}

func (l Listen) String() string {
	return net.JoinHostPort(l.IP, strconv.Itoa(l.Port))
}

// Limits bounds what the scrambler accepts.
type Limits struct {
	MaxMetadataSize int `yaml:"max_metadata_size"` // serialized metadata ceiling in bytes
	MaxPixels       int `yaml:"max_pixels"`        // declared width*height ceiling for decoded images
}

func (l *Limits) ApplyDefaults() {
	if l.MaxMetadataSize == 0 {
		l.MaxMetadataSize = DefaultMaxMetadataSize
	}
	if l.MaxPixels == 0 {
		l.MaxPixels = DefaultMaxPixels
	}
}

func (l Limits) Validate() error {
	if l.MaxMetadataSize < 1 {
		return fmt.Errorf("max_metadata_size must be positive, got %d", l.MaxMetadataSize)
	}
	if l.MaxPixels < 1 {
		return fmt.Errorf("max_pixels must be positive, got %d", l.MaxPixels)
	}
	return nil
}

func validateChunkSize(n int) error {
	if n < 1 || n > MaxChunkSize {
		return fmt.Errorf("chunk_size must be between 1 and %d, got %d", MaxChunkSize, n)
	}
	return nil
}

func validateMissingIndices(n int) error {
	if n < 1 || n > MaxMissingIndicesCeiling {
		return fmt.Errorf("max_missing_indices must be between 1 and %d, got %d", MaxMissingIndicesCeiling, n)
	}
	return nil
}
