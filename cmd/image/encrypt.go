package image

import (
	"errors"

	"github.com/Mmx233/PixelVeil/client"
	"github.com/Mmx233/PixelVeil/scramble"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	usernames []string
	quota     uint32

	encryptCmd = &cobra.Command{
		Use:   "encrypt",
		Short: "Scramble a PNG so only the listed users can restore it",
		Args:  cobra.NoArgs,
		RunE:  runEncrypt,
	}
)

func init() {
	encryptCmd.Flags().StringSliceVarP(&usernames, "users", "u", nil, "authorized usernames, order matters")
	encryptCmd.Flags().Uint32VarP(&quota, "quota", "q", 1, "view quota embedded in the image")
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "image-cmd").Str("op", "encrypt").Logger()
	if len(usernames) == 0 {
		return errors.New("at least one username is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plain, err := readInput()
	if err != nil {
		return err
	}

	var cipher []byte
	if local {
		t := scramble.NewTransformer(cfg.Limits.MaxMetadataSize, cfg.Limits.MaxPixels)
		cipher, err = t.EncryptPNG(plain, scramble.Metadata{Usernames: usernames, Quota: quota})
		if err != nil {
			return err
		}
	} else {
		c, err := newClient(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		var result client.Result
		cipher, result, err = c.Encrypt(ctx, plain, usernames, quota)
		if err != nil {
			return err
		}
		logResult(logger, result)
	}

	if err := writeOutput(cipher); err != nil {
		return err
	}
	logger.Info().
		Str("file", outPath).
		Strs("usernames", usernames).
		Uint32("quota", quota).
		Int("bytes", len(cipher)).
		Msg("image encrypted")
	return nil
}
