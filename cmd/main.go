package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/breakerbox/config"
	"github.com/angeloszaimis/breakerbox/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerbox/internal/handler"
	"github.com/angeloszaimis/breakerbox/internal/httpserver"
	"github.com/angeloszaimis/breakerbox/internal/metrics"
	"github.com/angeloszaimis/breakerbox/internal/monitor"
	"github.com/angeloszaimis/breakerbox/internal/registry"
	"github.com/angeloszaimis/breakerbox/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.Logging.Level, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("Failed to register metrics", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, m, log)
	collector.Start(ctx)

	boxes, err := initializeBoxes(ctx, cfg, log, collector.EventChannel())
	if err != nil {
		log.Error("Failed to initialize boxes", slog.Any("err", err))
		os.Exit(1)
	}

	defer func() {
		for _, box := range boxes {
			box.Stop()
		}
	}()

	breakerHandler := handler.NewBreakerHandler(log, boxes)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(breakerHandler))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Admin API listening", slog.String("address", srv.Addr()))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting admin API", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// initializeBoxes starts one registry per declared box, bulk-registers its
// breakers, and watches it. The default box always exists, declared or not.
func initializeBoxes(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	events chan<- registry.Event,
) ([]*registry.Registry, error) {
	monitorInterval, err := time.ParseDuration(cfg.Monitor.Interval)
	if err != nil {
		return nil, err
	}

	var boxes []*registry.Registry

	startBox := func(name string, declared []config.BreakerConfig) {
		box := registry.Start(name,
			registry.WithLogger(log),
			registry.WithEvents(events))

		count := box.RegisterAll(resolveDeclarations(declared, log))
		log.Info("Box initialized",
			slog.String("box", box.Box()),
			slog.Int("breakers", count))

		go monitor.Watch(ctx, box, monitorInterval, log)
		boxes = append(boxes, box)
	}

	declaredDefault := false

	for _, bc := range cfg.Boxes {
		if bc.Name == registry.DefaultBox {
			declaredDefault = true
		}
		startBox(bc.Name, bc.Breakers)
	}

	if !declaredDefault {
		startBox(registry.DefaultBox, nil)
	}

	return boxes, nil
}

// resolveDeclarations turns config entries into registry declarations. An
// entry whose windows don't parse is not resolvable to a (name, config) pair
// and is skipped with a warning; it must not block the rest of the fleet.
func resolveDeclarations(breakers []config.BreakerConfig, log *slog.Logger) []registry.Declaration {
	var decls []registry.Declaration

	for _, b := range breakers {
		failureWindow, err := time.ParseDuration(b.FailureWindow)
		if err != nil {
			log.Warn("skipping breaker declaration",
				slog.String("breaker", b.Name),
				slog.String("failure_window", b.FailureWindow),
				slog.Any("err", err))
			continue
		}

		resetWindow, err := time.ParseDuration(b.ResetWindow)
		if err != nil {
			log.Warn("skipping breaker declaration",
				slog.String("breaker", b.Name),
				slog.String("reset_window", b.ResetWindow),
				slog.Any("err", err))
			continue
		}

		decls = append(decls, registry.Declaration{
			Name: b.Name,
			Config: circuitbreaker.Config{
				MaxFailures:   b.MaxFailures,
				FailureWindow: failureWindow,
				ResetWindow:   resetWindow,
			},
		})
	}

	return decls
}
