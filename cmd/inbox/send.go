package inbox

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	sendTo    []string
	sendIn    string
	sendViews uint32

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Deposit an encrypted image in other users' inboxes",
		Args:  cobra.NoArgs,
		RunE:  runSend,
	}
)

func init() {
	sendCmd.Flags().StringSliceVarP(&sendTo, "to", "t", nil, "recipient usernames")
	sendCmd.Flags().StringVarP(&sendIn, "in", "i", "", "encrypted PNG file")
	sendCmd.Flags().Uint32Var(&sendViews, "views", 1, "views granted to each recipient")
	_ = sendCmd.MarkFlagRequired("in")
}

func runSend(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "inbox-cmd").Str("op", "send").Logger()
	if len(sendTo) == 0 {
		return errors.New("at least one recipient is required")
	}

	image, err := os.ReadFile(sendIn)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	c, ctx, cancel, err := connect()
	if err != nil {
		return err
	}
	defer cancel()

	id, result, err := c.SendImage(ctx, sendTo, image, sendViews)
	if err != nil {
		return err
	}
	logger.Info().
		Str("image_id", id).
		Strs("to", sendTo).
		Uint32("max_views", sendViews).
		Str("server", result.Server).
		Dur("latency", result.Latency).
		Msg("image sent")
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
