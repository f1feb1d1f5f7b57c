package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/circuit-index/pkg/circuit"
	"github.com/ritzau/circuit-index/pkg/config"
	"github.com/ritzau/circuit-index/pkg/export"
	"github.com/ritzau/circuit-index/pkg/logging"
	"github.com/ritzau/circuit-index/pkg/output"
	"github.com/ritzau/circuit-index/pkg/pipeline"
	"github.com/ritzau/circuit-index/pkg/watcher"
	"github.com/ritzau/circuit-index/pkg/web"
)

func main() {
	f := pflag.NewFlagSet("circuit-index", pflag.ExitOnError)
	f.String("config", "", "Network config file (default circuit-index.toml if present)")
	f.StringP("output", "o", "circuit-index.json.zst", "Export path; empty disables the export")
	f.String("compression", "zstd", "Export compression: zstd, lz4 or none")
	f.String("inspect", "", "Read and re-validate an existing export instead of building")
	f.Bool("verify", true, "Cross-check every index against a reference graph")
	f.Bool("serve", false, "Serve the circuit over HTTP after building")
	f.Int("port", 8080, "Port for the query server (only used with --serve)")
	f.Bool("watch", false, "Rebuild when the config file changes (implies --serve)")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase verbosity (repeatable)")
	f.Bool("json-logs", false, "Log as JSON")
	f.Parse(os.Args[1:])

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	base, err := logging.ParseLevel(cfg.Verbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logging.Configure(logging.Options{
		Level: logging.VerbosityLevel(base, cfg.VerboseCnt),
		JSON:  cfg.JSONLogs,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Inspect != "" {
		if err := inspect(cfg.Inspect); err != nil {
			logging.Fatal("inspection failed", "path", cfg.Inspect, "error", err)
		}
		return
	}

	if cfg.Watch || cfg.Serve {
		if err := serve(ctx, cfg, f); err != nil {
			logging.Fatal("server failed", "error", err)
		}
		return
	}

	c, err := pipeline.NewRunner(nil).Run(ctx, runOptions(cfg, "build"))
	if err != nil {
		logging.Fatal("build failed", "error", err)
	}
	output.PrintCircuitReport(os.Stdout, c, cfg.Output)
}

func inspect(path string) error {
	doc, err := export.ReadFile(path)
	if err != nil {
		return err
	}
	c, err := doc.Circuit()
	if err != nil {
		return err
	}
	output.PrintCircuitReport(os.Stdout, c, path)
	return nil
}

func runOptions(cfg *config.Config, reason string) pipeline.Options {
	// Validated by config.Load
	comp, _ := export.ParseCompression(cfg.Compression)
	return pipeline.Options{
		Network:     cfg.Network,
		Output:      cfg.Output,
		Compression: comp,
		Verify:      cfg.Verify,
		Reason:      reason,
	}
}

func serve(ctx context.Context, cfg *config.Config, f *pflag.FlagSet) error {
	server := web.NewServer()
	runner := pipeline.NewRunner(server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
	}()

	// A failed initial build leaves the server up so status stays visible
	if c, err := runner.Run(ctx, runOptions(cfg, "initial build")); err != nil {
		logging.Error("initial build failed", "error", err)
	} else {
		report(c, cfg)
	}

	if cfg.Watch {
		if err := watch(ctx, cfg, f, runner); err != nil {
			return err
		}
	}

	return <-errCh
}

func watch(ctx context.Context, cfg *config.Config, f *pflag.FlagSet, runner *pipeline.Runner) error {
	path := cfg.ConfigFile
	if path == "" {
		path = config.DefaultFile
	}

	fw, err := watcher.NewFileWatcher(path)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	go func() {
		for event := range debouncer.Output() {
			analysis := watcher.AnalyzeChanges(event)
			if analysis.KeepServing {
				logging.Warn("config file removed, keeping current circuit", "files", analysis.ChangedFiles)
				continue
			}
			if !analysis.Reload {
				continue
			}

			// Flags and env still apply on reload
			next, err := config.Load(f)
			if err != nil {
				logging.Error("config reload failed, keeping current circuit", "error", err)
				continue
			}

			c, err := runner.Run(ctx, runOptions(next, "config changed"))
			if err != nil {
				logging.Error("rebuild failed, keeping current circuit", "error", err)
				continue
			}
			report(c, next)
		}
	}()
	return nil
}

func report(c *circuit.Circuit, cfg *config.Config) {
	output.PrintCircuitReport(os.Stdout, c, cfg.Output)
	logging.Info("circuit ready", "url", fmt.Sprintf("http://localhost:%d/api/circuit", cfg.Port))
}
