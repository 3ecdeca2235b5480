package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/evanofslack/ddns-sync/internal/address"
	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/evanofslack/ddns-sync/internal/logger"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/notify"
	"github.com/evanofslack/ddns-sync/internal/provider"
	"github.com/evanofslack/ddns-sync/internal/provider/cloudflare"
	"github.com/evanofslack/ddns-sync/internal/provider/route53"
	"github.com/evanofslack/ddns-sync/internal/reconcile"
)

const (
	defaultConfigPath = "config.yaml"
	pushTimeout       = 10 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return reconcile.ExitSetup
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env)

	runID := uuid.New().String()
	log := slog.Default().With("runId", runID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	metrics := metrics.New(true)

	dnsProvider, err := newProvider(ctx, cfg, metrics)
	if err != nil {
		log.Error("Failed to initialize DNS provider", "error", err)
		return reconcile.ExitSetup
	}

	notifier, err := newNotifier(ctx, cfg, metrics)
	if err != nil {
		log.Error("Failed to initialize notifier", "error", err)
		return reconcile.ExitSetup
	}

	source := address.New(cfg.IPLookupURL, metrics)
	engine := reconcile.NewEngine(dnsProvider, source, notifier, cfg, metrics, log, runID)

	log.Info("Starting reconciliation",
		"domain", cfg.DomainName,
		"subdomains", cfg.Subdomains,
		"provider", cfg.DNS.Provider,
		"dry_run", cfg.Reconcile.DryRun)

	start := time.Now()
	results, err := engine.Reconcile(ctx)
	metrics.SetSyncDuration(time.Since(start))
	metrics.IncSyncRun(err == nil)
	pushMetrics(metrics, cfg.Metrics.PushgatewayURL, log)

	code := reconcile.ExitCode(err)
	if err != nil {
		log.Error("Reconciliation failed", "error", err, "exit_code", code)
		return code
	}

	log.Info("Reconciliation completed",
		"up_to_date", len(results.UpToDate),
		"updated", len(results.Updated),
		"created", len(results.Created),
		"notify_failures", len(results.NotifyFailures))
	return code
}

func newProvider(ctx context.Context, cfg *config.Config, metrics *metrics.Metrics) (provider.Provider, error) {
	switch cfg.DNS.Provider {
	case config.ProviderRoute53:
		return route53.New(ctx, cfg.DNS.Region, metrics)
	case config.ProviderCloudflare:
		return cloudflare.New(cfg.DNS.Token, metrics)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.DNS.Provider)
	}
}

func newNotifier(ctx context.Context, cfg *config.Config, metrics *metrics.Metrics) (notify.Notifier, error) {
	if !cfg.Notify.Enabled {
		return notify.Noop{}, nil
	}
	return notify.NewSES(ctx, cfg.DNS.Region, cfg.Notify.Sender, cfg.Notify.Recipient, cfg.Notify.Subject, metrics)
}

// pushMetrics runs on a fresh context so a run that timed out still reports.
func pushMetrics(m *metrics.Metrics, url string, log *slog.Logger) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := m.Push(ctx, url); err != nil {
		log.Warn("Failed to push metrics", "error", err)
	}
}
