package cmd

import (
	"fmt"
	"os"
	"strings"

	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/tilecache/internal/config"
)

var cfgFile string
var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "tilecache",
	Short: "A caching reverse proxy for raster map tiles",
	Long: `tilecache proxies raster and terrain tiles from one or more upstream
tile servers, caching every fetched tile in a per-source MBTiles database and
reconstructing missing parent zoom levels from the children it already has.`,
}

func Execute() {
	if logger == nil {
		initLogging() // fallback in case cobra init didn't fire
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, or /configs/config.yaml when TILECACHE_ENV=production)")
	rootCmd.PersistentFlags().String("data-dir", ".", "directory relative mbtiles_file paths are resolved against")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	mustBind := func(key, name string) {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("data-dir", "data-dir")
	mustBind("verbose", "verbose")
	mustBind("log-level", "log-level")
}

func initConfig() {
	if viper.GetBool("verbose") {
		env := strings.ToLower(os.Getenv("TILECACHE_ENV"))
		fmt.Fprintln(os.Stderr, "Config search path:", config.SearchPath(env))
	}
}

func initLogging() {
	levelStr := strings.ToLower(viper.GetString("log-level"))
	level := slog.LevelInfo
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error", "err":
		level = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Unknown log level %q, defaulting to info\n", levelStr)
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// loadConfig reads and validates the tilecache config file, resolving the
// search path from --config / TILECACHE_ENV.
func loadConfig() (*config.Config, error) {
	env := strings.ToLower(os.Getenv("TILECACHE_ENV"))
	return config.Load(cfgFile, config.SearchPath(env))
}
