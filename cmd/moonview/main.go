package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternalApril/moonview/internal/config"
	"github.com/eternalApril/moonview/internal/gateway"
	"github.com/eternalApril/moonview/internal/httpapi"
	"github.com/eternalApril/moonview/internal/keyspace"
	"github.com/eternalApril/moonview/internal/logger"
	"github.com/eternalApril/moonview/internal/metrics"
	"github.com/eternalApril/moonview/internal/registry"
	"github.com/eternalApril/moonview/internal/wsapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// version is set via ldflags
var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "moonview",
		Usage:   "HTTP and WebSocket gateway for inspecting Redis servers",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "directory containing config.yaml",
				Value:   ".",
				EnvVars: []string{"MOONVIEW_CONFIG_DIR"},
			},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, c.String("config"), nil)
		},
	}
}

// run serves until ctx is cancelled. ready, when set, receives the listen address
func run(ctx context.Context, configDir string, ready func(addr string)) error {
	cfg, found, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if !found {
		log.Warn("no config.yaml found, using default settings", zap.String("dir", configDir))
	}

	log.Info("Moonview starting",
		zap.String("version", version),
		zap.Int("servers", len(cfg.Servers)),
	)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	reg := registry.New(cfg.Servers, cfg.Redis, log.Named("registry"), m.RedisHook())
	defer func() {
		if err := reg.Close(); err != nil {
			log.Warn("closing redis clients", zap.Error(err))
		}
	}()

	svc := gateway.NewService(reg,
		keyspace.NewScanner(cfg.Redis.ScanCount),
		keyspace.NewFetcher(keyspace.DefaultLimit),
		log.Named("gateway"),
	)

	ws := wsapi.NewHandler(wsapi.NewRouter(svc), m, log.Named("ws"), cfg.HTTP.CORSOrigins)

	router := httpapi.NewRouter(&httpapi.RouterConfig{
		Service:     svc,
		Metrics:     m,
		Gatherer:    promReg,
		WebSocket:   ws,
		Logger:      log.Named("http"),
		CORSOrigins: cfg.HTTP.CORSOrigins,
		RateLimit:   cfg.HTTP.RateLimit,
	})

	address := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("listening on", zap.String("address", listener.Addr().String()))

	if ready != nil {
		ready(listener.Addr().String())
	}

	srv := httpapi.NewServer(address, router)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")

	timeout := cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown timed out, forcing exit", zap.Duration("timeout", timeout), zap.Error(err))
	} else {
		log.Info("All connections closed gracefully")
	}

	log.Info("Moonview stopped")
	return nil
}
