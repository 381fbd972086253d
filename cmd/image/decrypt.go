package image

import (
	"fmt"

	"github.com/Mmx233/PixelVeil/client"
	"github.com/Mmx233/PixelVeil/scramble"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Restore a scrambled PNG",
	Args:  cobra.NoArgs,
	RunE:  runDecrypt,
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "image-cmd").Str("op", "decrypt").Logger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cipher, err := readInput()
	if err != nil {
		return err
	}

	var (
		plain []byte
		md    scramble.Metadata
	)
	if local {
		t := scramble.NewTransformer(cfg.Limits.MaxMetadataSize, cfg.Limits.MaxPixels)
		plain, md, err = t.DecryptPNG(cipher)
		if err != nil {
			return err
		}
		if cfg.Username != "" && !md.Authorized(cfg.Username) {
			return fmt.Errorf("user %q is not authorized for this image", cfg.Username)
		}
	} else {
		c, err := newClient(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		var result client.Result
		plain, md, result, err = c.Decrypt(ctx, cipher)
		if err != nil {
			return err
		}
		logResult(logger, result)
	}

	if err := writeOutput(plain); err != nil {
		return err
	}
	logger.Info().
		Str("file", outPath).
		Strs("usernames", md.Usernames).
		Uint32("quota", md.Quota).
		Msg("image decrypted")
	return nil
}

func logResult(logger zerolog.Logger, r client.Result) {
	logger.Debug().
		Str("server", r.Server).
		Dur("latency", r.Latency).
		Int("attempts", r.Attempts).
		Int("bytes_sent", r.BytesSent).
		Int("bytes_received", r.BytesReceived).
		Int("retransmits", r.Retransmits).
		Msg("request completed")
}
