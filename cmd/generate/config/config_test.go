package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mmx233/PixelVeil/config"
	"github.com/Mmx233/PixelVeil/examples"
	"github.com/Mmx233/PixelVeil/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeStrict(t *testing.T, content []byte, out any) {
	t.Helper()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	require.NoError(t, decoder.Decode(out), "template contains unknown fields or invalid YAML")
}

// TestNodeConfigTemplateFields verifies that the embedded node template
// decodes strictly, validates, and spells out the documented defaults.
func TestNodeConfigTemplateFields(t *testing.T) {
	content, err := examples.ServerConfig()
	require.NoError(t, err)

	var cfg config.Server
	decodeStrict(t, content, &cfg)

	assert.Equal(t, config.DefaultListenIP, cfg.Listen.IP)
	assert.Equal(t, config.DefaultListenPort, cfg.Listen.Port)
	assert.Equal(t, protocol.DefaultChunkSize, cfg.Transfer.ChunkSize)
	assert.Equal(t, protocol.DefaultChunkPacing, cfg.Transfer.ChunkPacing)
	assert.Equal(t, protocol.DefaultRetransmitPacing, cfg.Transfer.RetransmitPacing)
	assert.Equal(t, protocol.DefaultReassemblyTimeout, cfg.Transfer.ReassemblyTimeout)
	assert.Equal(t, protocol.DefaultSentCacheTTL, cfg.Transfer.SentCacheTTL)
	assert.Equal(t, protocol.DefaultMaxMissingIndices, cfg.Transfer.MaxMissingIndices)
	assert.Equal(t, config.DefaultMaxMetadataSize, cfg.Limits.MaxMetadataSize)
	assert.Equal(t, config.DefaultMaxPixels, cfg.Limits.MaxPixels)
	assert.Equal(t, config.DefaultInboxPath, cfg.Inbox.Path)
	assert.Equal(t, config.DefaultWorkers, cfg.Workers)
	assert.Equal(t, config.DefaultSocketBuffer, cfg.SocketBuffer)

	before := cfg
	cfg.ApplyDefaults()
	assert.Equal(t, before, cfg, "template should already carry every default")
	assert.NoError(t, cfg.Validate())
}

// TestClientConfigTemplateFields verifies the embedded client template.
func TestClientConfigTemplateFields(t *testing.T) {
	content, err := examples.ClientConfig()
	require.NoError(t, err)

	var cfg config.Client
	decodeStrict(t, content, &cfg)

	assert.NotEmpty(t, cfg.Username)
	require.NotEmpty(t, cfg.Servers)
	assert.NoError(t, config.ValidateAddress(cfg.Servers[0].Address))
	assert.Equal(t, protocol.DefaultReceiveTimeout, cfg.Transfer.ReceiveTimeout)
	assert.Equal(t, config.DefaultRequestTimeout, cfg.Transfer.RequestTimeout)
	assert.Equal(t, protocol.DefaultMaxRetransmits, cfg.Transfer.MaxRetransmits)
	assert.Equal(t, config.DefaultRetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, config.DefaultRetryDelay, cfg.RetryDelay)
	assert.Equal(t, config.DefaultMaxPixels, cfg.Limits.MaxPixels)

	before := cfg
	cfg.ApplyDefaults()
	assert.Equal(t, before, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestWriteTemplate(t *testing.T) {
	dir := t.TempDir()
	configFile = filepath.Join(dir, "node.yaml")
	force = false
	t.Cleanup(func() { configFile = "config.yaml"; force = false })

	require.NoError(t, writeTemplate("node", examples.ServerConfig))
	written, err := os.ReadFile(configFile)
	require.NoError(t, err)
	want, _ := examples.ServerConfig()
	assert.Equal(t, want, written)

	err = writeTemplate("client", examples.ClientConfig)
	assert.ErrorContains(t, err, "file already exists")

	force = true
	require.NoError(t, writeTemplate("client", examples.ClientConfig))
	written, err = os.ReadFile(configFile)
	require.NoError(t, err)
	want, _ = examples.ClientConfig()
	assert.Equal(t, want, written)
}
