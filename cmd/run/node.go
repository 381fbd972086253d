package run

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mmx233/PixelVeil/config"
	"github.com/Mmx233/PixelVeil/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	listenPort int

	nodeCmd = &cobra.Command{
		Use:     "node",
		Aliases: []string{"server"},
		Short:   "Start an image node",
		Args:    cobra.NoArgs,
		RunE:    runNode,
	}
)

func init() {
	nodeCmd.Flags().IntVarP(&listenPort, "port", "p", 0, "override the configured listen port")
}

func runNode(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "node-cmd").Logger()

	logger.Info().Str("config", configFile).Msg("loading configuration")
	cfg, err := config.LoadServerConfig(configFile)
	if err != nil {
		return err
	}
	if listenPort > 0 {
		cfg.Listen.Port = listenPort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr().String()).Msg("starting pixelveil node")
		errCh <- srv.Serve(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("node error")
			return err
		}
	}

	stats := srv.Stats()
	logger.Info().
		Uint64("datagrams", stats.Datagrams).
		Uint64("messages", stats.Messages).
		Uint64("failures", stats.Failures).
		Uint64("retransmits", stats.Retransmits).
		Msg("node stopped")
	return nil
}
