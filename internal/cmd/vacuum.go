package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/tilecache/internal/source"
)

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Run VACUUM across every configured source's MBTiles database, then exit",
	RunE:  runVacuum,
}

func init() {
	rootCmd.AddCommand(vacuumCmd)
}

func runVacuum(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}

	dataDir := viper.GetString("data-dir")
	for name, sc := range cfg.Sources {
		src, err := source.New(name, sc, dataDir, logger)
		if err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
		err = src.Store.Vacuum()
		src.Close()
		if err != nil {
			return fmt.Errorf("vacuum: source %q: %w", name, err)
		}
		logger.Info("vacuum complete", "source", name)
	}
	return nil
}
