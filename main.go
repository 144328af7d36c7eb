// Package main provides the entry point for the imagepress service:
// an HTTP microservice that compresses uploaded images to a byte
// budget and prepares them for OCR.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"imagepress/pkg/cache"
	"imagepress/pkg/codec"
	"imagepress/pkg/config"
	"imagepress/pkg/server"
	"imagepress/pkg/stats"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "imagepress",
		Short: "Size-targeting image compression and OCR enhancement service",
		Long: `imagepress accepts raw image uploads and returns size-constrained,
OCR-friendly derivatives. Byte budgets, upload limits and search
ladders are tuned per deployment through the config file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "Path to the YAML config file")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func serve(configPath, addr string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// .env for environment-style settings like REDIS_URL
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	if addr != "" {
		cfg.Server.Addr = addr
	} else if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var resultCache *cache.Cache
	if url := os.Getenv("REDIS_URL"); url != "" {
		resultCache, err = cache.NewRedisCache(url, "imagepress")
		if err != nil {
			logger.Warn("result cache unavailable, continuing without it", "error", err)
			resultCache = nil
		} else {
			defer resultCache.Close()
			logger.Info("result cache enabled")
		}
	}

	registry := stats.New()
	srv := server.New(cfg, logger, registry, codec.New(), resultCache)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", cfg.Server.Addr,
			"compress_target_kb", cfg.Compression.TargetKB,
			"ocr_target_kb", cfg.OCR.TargetKB,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
