package inbox

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	viewOut string

	viewCmd = &cobra.Command{
		Use:   "view <image-id>",
		Short: "Spend one view of an inbox image and save the restored PNG",
		Args:  cobra.ExactArgs(1),
		RunE:  runView,
	}
)

func init() {
	viewCmd.Flags().StringVarP(&viewOut, "out", "o", "", "output PNG file")
	_ = viewCmd.MarkFlagRequired("out")
}

func runView(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "inbox-cmd").Str("op", "view").Logger()

	c, ctx, cancel, err := connect()
	if err != nil {
		return err
	}
	defer cancel()

	data, remaining, _, err := c.ViewImage(ctx, args[0])
	if err != nil {
		return err
	}
	if err := os.WriteFile(viewOut, data, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info().
		Str("image_id", args[0]).
		Str("file", viewOut).
		Uint32("remaining_views", remaining).
		Msg("image viewed")
	return nil
}
