package inbox

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List images waiting in your inbox",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "inbox-cmd").Str("op", "list").Logger()

	c, ctx, cancel, err := connect()
	if err != nil {
		return err
	}
	defer cancel()

	images, result, err := c.Inbox(ctx)
	if err != nil {
		return err
	}
	logger.Debug().Int("count", len(images)).Str("server", result.Server).Msg("inbox listed")

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tVIEWS\tRECEIVED")
	for _, img := range images {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			img.ImageID,
			img.FromUsername,
			img.RemainingViews,
			time.Unix(int64(img.Timestamp), 0).Format(time.RFC3339),
		)
	}
	return w.Flush()
}
