package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <source>",
	Short: "Run one pyramid-reconstruction pass for a named source, then exit",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconstruct,
}

func init() {
	rootCmd.AddCommand(reconstructCmd)
}

func runReconstruct(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}
	name := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("reconstruct: %w", err)
	}
	sc, ok := cfg.Sources[name]
	if !ok {
		return fmt.Errorf("reconstruct: unknown source %q", name)
	}

	src, err := source.New(name, sc, viper.GetString("data-dir"), logger)
	if err != nil {
		return fmt.Errorf("reconstruct: %w", err)
	}
	defer src.Close()

	logger.Info("running reconstructor pass", "source", name)
	return src.Pyramid.RunPass(context.Background())
}
