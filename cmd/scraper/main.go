// Command scraper runs one snapshot over the configured markets and exits
// with the run's aggregate status: 0 when any market completed, 1 when any
// failed, 2 when everything was skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"cnpulse/internal/app"
	"cnpulse/internal/config"
	"cnpulse/internal/infrastructure"
	"cnpulse/internal/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	marketsFlag := flag.String("markets", "", "comma-separated markets to run (default from config)")
	limit := flag.Int("limit", 0, "cap entities per market (0 = full universe)")
	codesFlag := flag.String("codes", "", "comma-separated entity codes, bypasses discovery")
	date := flag.String("date", "", "snapshot date YYYY-MM-DD (default today)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	logger, logCloser, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ov := app.RunOverrides{
		Markets:      splitList(*marketsFlag),
		Limit:        *limit,
		Codes:        splitList(*codesFlag),
		SnapshotDate: *date,
	}
	m := metrics.NewPipeline(prometheus.NewRegistry())

	summary, err := app.ExecuteRun(ctx, cfg, m, logger, ov)
	if err != nil {
		logger.Error("run aborted", slog.String("error", err.Error()))
		return 1
	}
	return summary.ExitCode()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
