// Command rolling-median reads a file of JSON payment records and writes the
// rolling median degree of the payment graph after every accepted record.
//
// Usage:
//
//	rolling-median [flags] <input> <output>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/txgraph/rollingmedian/internal/config"
	"github.com/txgraph/rollingmedian/internal/output"
	"github.com/txgraph/rollingmedian/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "optional path to config file")
	window := flag.Duration("window", 0, "trailing window length (default from config, 60s)")
	precision := flag.Int("precision", -1, "decimals per median (default from config, 2)")
	logLevel := flag.String("log-level", "", "debug | info | warn | error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <input> <output>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *window > 0 {
		cfg.Window = *window
	}
	if *precision >= 0 {
		cfg.Output.Precision = *precision
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, flag.Arg(0), flag.Arg(1)); err != nil {
		slog.Error("rolling-median failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

// run replays inPath through a fresh tracker and writes medians to outPath.
func run(ctx context.Context, cfg *config.Config, inPath, outPath string) (err error) {
	in, err := os.Open(inPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("input file does not exist: %s", inPath)
		}
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := output.Create(outPath, cfg.Output.Precision)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	start := time.Now()
	proc := stream.New(cfg.Window, cfg.Input.MaxLineBytes, out)
	st, err := proc.Run(ctx, in)
	if err != nil {
		return err
	}

	stats := proc.Stats()
	slog.Info("rolling-median done",
		"input", inPath,
		"output", outPath,
		"lines", st.Lines,
		"malformed", st.Malformed,
		"accepted", stats.Accepted,
		"stale", stats.Stale,
		"window", cfg.Window,
		"elapsed", time.Since(start),
	)
	return nil
}
