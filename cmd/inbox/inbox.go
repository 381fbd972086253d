package inbox

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Mmx233/PixelVeil/client"
	"github.com/Mmx233/PixelVeil/config"
	"github.com/Mmx233/PixelVeil/tools"
	"github.com/spf13/cobra"
)

var (
	configFile = tools.GetenvDefault(config.EnvPrefix+"CONFIG", "config.yaml")

	Cmd = &cobra.Command{
		Use:   "inbox",
		Short: "Send, list and view images shared between users",
		Args:  cobra.NoArgs,
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", configFile, "path of client config file")
	Cmd.AddCommand(sendCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(viewCmd)
}

// connect loads the client config and returns a client bound to a context
// cancelled on SIGINT or SIGTERM.
func connect() (*client.Client, context.Context, context.CancelFunc, error) {
	cfg, err := config.LoadClientConfig(configFile, true)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Username == "" {
		return nil, nil, nil, client.ErrNoUsername
	}
	c, err := client.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create client: %w", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return c, ctx, cancel, nil
}
