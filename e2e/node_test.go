package e2e

import (
	"context"
	"math/rand/v2"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mmx233/PixelVeil/client"
	"github.com/Mmx233/PixelVeil/config"
	"github.com/Mmx233/PixelVeil/scramble"
	"github.com/Mmx233/PixelVeil/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	srv  *server.Server
	stop func()
}

func freePort(t *testing.T) int {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := pc.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, pc.Close())
	return port
}

func startNode(t *testing.T, port int, inboxPath string) *node {
	t.Helper()
	conf := &config.Server{
		Listen: config.Listen{IP: "127.0.0.1", Port: port},
		Transfer: config.ServerTransfer{
			ChunkSize:   8192,
			ChunkPacing: time.Millisecond,
		},
		Inbox:   config.Inbox{Path: inboxPath, InMemory: inboxPath == ""},
		Workers: 8,
	}
	srv, err := server.New(context.Background(), conf)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	n := &node{srv: srv}
	n.stop = func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("node did not stop")
		}
	}
	return n
}

func newClient(t *testing.T, username string, addr string) *client.Client {
	t.Helper()
	c, err := client.New(&config.Client{
		Username: username,
		Servers:  []config.ServerEndpoint{{Address: addr}},
		Transfer: config.ClientTransfer{
			ChunkSize:      8192,
			ChunkPacing:    time.Millisecond,
			ReceiveTimeout: 500 * time.Millisecond,
			RequestTimeout: 10 * time.Second,
		},
		RetryDelay: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func randomPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(uint64(w)*31, uint64(h)))
	pix := make([]byte, w*h*scramble.PixelSize)
	for i := range pix {
		pix[i] = byte(rng.Uint32())
	}
	img, err := scramble.NewImage(w, h, pix)
	require.NoError(t, err)
	data, err := img.EncodePNG()
	require.NoError(t, err)
	return data
}

// assertRestored checks that restored matches original everywhere except in
// the low bit of bytes that carried metadata.
func assertRestored(t *testing.T, original, restored []byte) {
	t.Helper()
	want, err := scramble.DecodePNG(original, 0)
	require.NoError(t, err)
	got, err := scramble.DecodePNG(restored, 0)
	require.NoError(t, err)
	require.Equal(t, want.Width, got.Width)
	require.Equal(t, want.Height, got.Height)
	require.Len(t, got.Pix, len(want.Pix))
	for i := range want.Pix {
		if want.Pix[i]&^1 != got.Pix[i]&^1 {
			t.Fatalf("byte %d differs beyond the low bit: %#x vs %#x", i, want.Pix[i], got.Pix[i])
		}
	}
}

func TestEncryptDecryptThroughNode(t *testing.T) {
	n := startNode(t, freePort(t), "")
	defer n.stop()
	addr := n.srv.Addr().String()

	alice := newClient(t, "alice", addr)
	bob := newClient(t, "bob", addr)
	carol := newClient(t, "carol", addr)

	original := randomPNG(t, 120, 90)
	enc, result, err := alice.Encrypt(context.Background(), original, []string{"alice", "bob"}, 3)
	require.NoError(t, err)
	assert.Equal(t, addr, result.Server)
	assert.Greater(t, result.BytesSent, 8192, "request should span several fragments")
	assert.NotEqual(t, original, enc)

	plain, md, _, err := bob.Decrypt(context.Background(), enc)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, md.Usernames)
	assert.Equal(t, uint32(3), md.Quota)
	assertRestored(t, original, plain)

	_, _, _, err = carol.Decrypt(context.Background(), enc)
	assert.ErrorIs(t, err, client.ErrRequestFailed)

	// Local and remote transforms agree.
	local, localMD, err := scramble.NewTransformer(0, 0).DecryptPNG(enc)
	require.NoError(t, err)
	assert.Equal(t, md, localMD)
	assert.Equal(t, plain, local)
}

func TestInboxSurvivesRestart(t *testing.T) {
	port := freePort(t)
	inboxPath := filepath.Join(t.TempDir(), "inbox")

	n := startNode(t, port, inboxPath)
	addr := n.srv.Addr().String()
	alice := newClient(t, "alice", addr)

	original := randomPNG(t, 64, 48)
	enc, _, err := alice.Encrypt(context.Background(), original, []string{"bob"}, 1)
	require.NoError(t, err)
	id, _, err := alice.SendImage(context.Background(), []string{"bob"}, enc, 2)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	n.stop()

	n = startNode(t, port, inboxPath)
	defer n.stop()
	bob := newClient(t, "bob", addr)

	images, _, err := bob.Inbox(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, id, images[0].ImageID)
	assert.Equal(t, "alice", images[0].FromUsername)
	assert.Equal(t, uint32(2), images[0].RemainingViews)

	data, remaining, _, err := bob.ViewImage(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), remaining)
	assertRestored(t, original, data)

	_, remaining, _, err = bob.ViewImage(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	_, _, _, err = bob.ViewImage(context.Background(), id)
	assert.ErrorIs(t, err, client.ErrRequestFailed)

	images, _, err = bob.Inbox(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)

	// Alice is not a recipient.
	images, _, err = alice.Inbox(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)
}
