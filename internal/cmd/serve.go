package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/tilecache/internal/server"
	"github.com/MeKo-Tech/tilecache/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cached tiles and run each source's background scanner and reconstructor",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Listen port (overrides config's port if nonzero)")
	if err := viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	dataDir := viper.GetString("data-dir")
	sources := make(map[string]*source.Source, len(cfg.Sources))
	for name, sc := range cfg.Sources {
		src, err := source.New(name, sc, dataDir, logger)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		defer src.Close()
		sources[name] = src
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for name, src := range sources {
		if src.Scanner != nil {
			go func(name string, src *source.Source) {
				if err := src.Scanner.Run(ctx); err != nil && ctx.Err() == nil {
					src.Log().Error("scanner stopped", "source", name, "err", err)
				}
			}(name, src)
		}
		go func(name string, src *source.Source) {
			if err := src.Pyramid.Run(ctx); err != nil && ctx.Err() == nil {
				src.Log().Error("reconstructor stopped", "source", name, "err", err)
			}
		}(name, src)
	}

	port := cfg.Port
	if p := viper.GetInt("serve.port"); p != 0 {
		port = p
	}
	addr := fmt.Sprintf(":%d", port)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           server.New(sources),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("tilecache listening", "addr", addr, "sources", len(sources))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
