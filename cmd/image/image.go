package image

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mmx233/PixelVeil/client"
	"github.com/Mmx233/PixelVeil/config"
	"github.com/Mmx233/PixelVeil/tools"
	"github.com/spf13/cobra"
)

var (
	configFile = tools.GetenvDefault(config.EnvPrefix+"CONFIG", "config.yaml")
	inPath     string
	outPath    string
	local      bool

	Cmd = &cobra.Command{
		Use:   "image",
		Short: "Encrypt or decrypt PNG images",
		Args:  cobra.NoArgs,
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", configFile, "path of client config file")
	Cmd.PersistentFlags().StringVarP(&inPath, "in", "i", "", "input PNG file")
	Cmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "output PNG file")
	Cmd.PersistentFlags().BoolVar(&local, "local", false, "transform in process instead of asking a node")
	_ = Cmd.MarkPersistentFlagRequired("in")
	_ = Cmd.MarkPersistentFlagRequired("out")
	Cmd.AddCommand(encryptCmd)
	Cmd.AddCommand(decryptCmd)
}

// loadConfig reads the client config. Local runs tolerate a missing file and
// fall back to defaults.
func loadConfig() (*config.Client, error) {
	cfg, err := config.LoadClientConfig(configFile, !local)
	if err == nil {
		return cfg, nil
	}
	if local && errors.Is(err, os.ErrNotExist) {
		cfg = &config.Client{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return nil, err
}

func newClient(cfg *config.Client) (*client.Client, error) {
	c, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func readInput() ([]byte, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeOutput(data []byte) error {
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
