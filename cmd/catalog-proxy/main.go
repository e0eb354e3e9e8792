// Command catalog-proxy serves a paged upstream catalog over HTTP from a
// bounded in-memory page cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/catalog-cache/pkg/logging"
	"github.com/Sternrassler/catalog-cache/pkg/service"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var rootCommand = &cobra.Command{
	Use:          "catalog-proxy",
	Short:        "HTTP proxy serving a paged catalog API from a bounded page cache",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	InitFlags(rootCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := Global
	if configPath != "" {
		if err := LoadFile(configPath, cfg, cmd.PersistentFlags()); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.Setup(logging.Config{
		Level:  level,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	var (
		redisClient *redis.Client
		ready       readyCheck
	)
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis - quota tracking enabled")

		ready = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	svcCfg := cfg.ServiceConfig()
	svcCfg.Redis = redisClient
	svcCfg.Logger = logger

	svc, err := service.New(svcCfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           newRouter(svc, ready, logging.WithComponent(logger, logging.ComponentHTTP)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("base_url", cfg.BaseURL).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting catalog proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Graceful shutdown incomplete")
	}
	return nil
}
