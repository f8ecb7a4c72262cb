// Command rolling-median-server maintains the rolling median degree of a
// payment stream and serves it over HTTP, WebSocket and Prometheus metrics.
//
// Transactions arrive via POST /api/v1/transactions and, optionally, from an
// input file replayed at startup.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/txgraph/rollingmedian/internal/alerts"
	"github.com/txgraph/rollingmedian/internal/api"
	"github.com/txgraph/rollingmedian/internal/auth"
	"github.com/txgraph/rollingmedian/internal/config"
	"github.com/txgraph/rollingmedian/internal/metrics"
	"github.com/txgraph/rollingmedian/internal/output"
	"github.com/txgraph/rollingmedian/internal/shipper"
	"github.com/txgraph/rollingmedian/internal/stream"
	"github.com/txgraph/rollingmedian/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	inputPath := flag.String("input", "", "replay this file at startup (overrides input.path)")
	envFile := flag.String("env-file", ".env", "dotenv file with secrets referenced by *_env keys")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("rolling-median-server starting", "config", *configPath)

	if err := config.LoadEnv(*envFile); err != nil {
		slog.Error("failed to load env file", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Level())
	if *inputPath != "" {
		cfg.Input.Path = *inputPath
	}

	slog.Info("config loaded",
		"window", cfg.Window,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"redis", cfg.Redis.Enabled(),
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	proc := stream.New(cfg.Window, cfg.Input.MaxLineBytes)

	// Sinks run in registration order under the processor lock.
	sinks := &drainer{shipDone: make(chan struct{})}
	if cfg.Output.Path != "" {
		sinks.out, err = output.Create(cfg.Output.Path, cfg.Output.Precision)
		if err != nil {
			slog.Error("failed to create output file", "path", cfg.Output.Path, "err", err)
			os.Exit(1)
		}
		proc.AddSink(sinks.out)
	}

	alertEngine := alerts.New(cfg.Alerts)
	sinks.alerts = alertEngine
	proc.AddSink(alertEngine)

	hub := ws.New(proc, cfg.Server.BroadcastInterval)
	go hub.Run(ctx)
	proc.AddSink(hub)

	if cfg.Redis.Enabled() {
		sh := shipper.New(cfg.Redis)
		proc.AddSink(sh)
		go func() {
			sh.Run(ctx)
			close(sinks.shipDone)
		}()
	} else {
		close(sinks.shipDone)
	}

	go func() {
		err := config.Watch(ctx, *configPath, cfg, func(c config.Change) {
			if c.LevelChanged {
				level.Set(c.Config.Level())
			}
			if c.AlertsChanged {
				alertEngine.SetRules(c.Config.Alerts)
			}
			if c.WindowIgnored {
				slog.Warn("window change ignored until restart",
					"current", cfg.Window, "configured", c.Config.Window)
			}
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	if cfg.Input.Path != "" {
		if err := replay(ctx, proc, cfg.Input.Path); err != nil {
			slog.Error("input replay failed", "path", cfg.Input.Path, "err", err)
			cancel()
			sinks.drain()
			os.Exit(1)
		}
	}

	requireKey := auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(api.New(proc, alertEngine, cfg.Input.MaxLineBytes)))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", metrics.Handler(proc))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("rolling-median-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck

	sinks.drain()
}

// drainer holds the sinks that still have work after the processor stops.
type drainer struct {
	out      *output.Writer // nil without output.path
	alerts   *alerts.Engine
	shipDone chan struct{} // closed once the shipper has stopped
}

// drain waits for the shipper and in-flight webhooks, then flushes and closes
// the output file. ctx must already be cancelled.
func (d *drainer) drain() {
	<-d.shipDone
	d.alerts.Wait()
	if d.out != nil {
		if err := d.out.Close(); err != nil {
			slog.Error("failed to close output file", "err", err)
		}
	}
}

// replay feeds every record in path through proc. An interrupted replay is
// not an error: the server shuts down normally with what was emitted.
func replay(ctx context.Context, proc *stream.Processor, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	start := time.Now()
	st, err := proc.Run(ctx, f)
	if errors.Is(err, context.Canceled) {
		slog.Info("input replay interrupted", "path", path, "lines", st.Lines)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("input replayed",
		"path", path,
		"lines", st.Lines,
		"malformed", st.Malformed,
		"elapsed", time.Since(start),
	)
	return nil
}
