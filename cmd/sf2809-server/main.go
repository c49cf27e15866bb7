package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/a3tai/sf2809-filler/internal/config"
	"github.com/a3tai/sf2809-filler/internal/logging"
	"github.com/a3tai/sf2809-filler/internal/mapping"
	"github.com/a3tai/sf2809-filler/internal/mcp"
	"github.com/a3tai/sf2809-filler/internal/pdf"
	"github.com/a3tai/sf2809-filler/internal/pdf/fill"
	"github.com/a3tai/sf2809-filler/internal/queue"
	"github.com/a3tai/sf2809-filler/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const serviceName = "sf2809"

// newService loads the mapping table, resolves the fill backend and checks the
// template. Any error here means the process must not serve.
func newService(cfg *config.Config, logger log.Logger) (*pdf.Service, error) {
	table, err := mapping.Load(cfg.Mappings)
	if err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}

	backend, err := fill.New(cfg.Backend, cfg.PDFTK)
	if err != nil {
		return nil, fmt.Errorf("fill backend: %w", err)
	}

	svc, err := pdf.NewService(pdf.ServiceConfig{
		Template:    cfg.Template,
		WorkDir:     cfg.WorkDir,
		FillTimeout: cfg.FillTimeout,
		MaxFileSize: cfg.MaxOutputSize,
	}, table, backend, logger)
	if err != nil {
		return nil, fmt.Errorf("fill service: %w", err)
	}

	level.Info(logger).Log("msg", "initialization", "template", cfg.Template, "fields", table.Len(),
		"backend", backend.Name())
	return svc, nil
}

// run serves in the configured mode until ctx is canceled
func run(ctx context.Context, cfg *config.Config, svc *pdf.Service, logger log.Logger) error {
	switch cfg.Mode {
	case config.ModeStdio:
		server, err := mcp.NewServer(cfg, svc, logger)
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return server.Run(ctx)

	case config.ModeQueue:
		return runQueue(ctx, cfg, svc, logger)

	default:
		server, err := web.NewServer(svc, web.Options{
			AllowOrigin: cfg.AllowOrigin,
			MaxBodySize: cfg.MaxBodySize,
			Version:     cfg.Version,
		}, logger)
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return server.Run(ctx, cfg.Address())
	}
}

func runQueue(ctx context.Context, cfg *config.Config, svc *pdf.Service, logger log.Logger) error {
	mqKafka, err := queue.NewMessageQueue(cfg.Brokers)
	if err != nil {
		return fmt.Errorf("kafka init %v: %w", cfg.Brokers, err)
	}

	handler := queue.NewFillHandler(
		svc,
		queue.NewFillTransport(),
		mqKafka.NewPublish(cfg.ResponseTopic),
		logger,
	)
	if err := mqKafka.Consume(cfg.RequestTopic, handler); err != nil {
		mqKafka.Shutdown()
		return fmt.Errorf("consume %s: %w", cfg.RequestTopic, err)
	}

	level.Info(logger).Log("msg", "kafka listener turn on", "topic", cfg.RequestTopic)
	mqKafka.ListenAndServe()

	<-ctx.Done()
	level.Info(logger).Log("msg", "kafka listener shutdown")
	mqKafka.Shutdown()
	return nil
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if version != "dev" {
		cfg.Version = version
	}

	// stdout carries the MCP protocol in stdio mode
	logger := logging.New(os.Stderr, serviceName, cfg.LogLevel)
	level.Debug(logger).Log("msg", "configuration", "config", cfg.String())

	svc, err := newService(cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "initialization", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, svc, logger); err != nil {
		level.Error(logger).Log("msg", "serve", "mode", cfg.Mode, "err", err)
		stop()
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "stop service")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("SF2809 Filler\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
