package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/evanofslack/ddns-sync/internal/address"
	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/notify"
	"github.com/evanofslack/ddns-sync/internal/provider"
)

type Engine interface {
	Reconcile(ctx context.Context) (Results, error)
}

type engine struct {
	dnsProvider    provider.Provider
	source         address.Source
	notifier       notify.Notifier
	metrics        *metrics.Metrics
	logger         *slog.Logger
	runID          string
	domain         string
	subdomains     []string
	dryRun         bool
	createMissing  bool
	notifyRequired bool
}

func NewEngine(dp provider.Provider, src address.Source, n notify.Notifier, cfg *config.Config, metrics *metrics.Metrics, logger *slog.Logger, runID string) *engine {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		n = notify.Noop{}
	}
	subdomains := make([]string, len(cfg.Subdomains))
	copy(subdomains, cfg.Subdomains)
	return &engine{
		dnsProvider:    dp,
		source:         src,
		notifier:       n,
		metrics:        metrics,
		logger:         logger,
		runID:          runID,
		domain:         cfg.DomainName,
		subdomains:     subdomains,
		dryRun:         cfg.Reconcile.DryRun,
		createMissing:  cfg.Reconcile.MissingRecordPolicy == config.MissingRecordCreate,
		notifyRequired: cfg.Notify.Required,
	}
}

// Reconcile resolves the zone and the public address once, then brings each
// subdomain's A record in line with the address, in list order. The first
// zone, address, read or write failure ends the run.
func (e *engine) Reconcile(ctx context.Context) (Results, error) {
	results := Results{DryRun: e.dryRun}

	zoneID, err := e.dnsProvider.ResolveZone(ctx, e.domain)
	if err != nil {
		return results, e.fail(StageZoneLookup, "", err)
	}
	results.ZoneID = zoneID
	e.logger.Debug("Resolved zone", "domain", e.domain, "zone_id", zoneID)

	addr, err := e.source.Lookup(ctx)
	if err != nil {
		return results, e.fail(StageAddressLookup, "", err)
	}
	results.Address = addr
	e.logger.Info("Got public address", "address", addr)

	for _, sub := range e.subdomains {
		if err := e.reconcileSubdomain(ctx, zoneID, addr, sub, &results); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (e *engine) reconcileSubdomain(ctx context.Context, zoneID, addr, sub string, results *Results) error {
	fqdn := provider.FQDN(sub, e.domain)

	current, err := e.dnsProvider.GetRecord(ctx, zoneID, sub, e.domain)
	absent := false
	if err != nil {
		if !errors.Is(err, provider.ErrRecordNotFound) || !e.createMissing {
			return e.fail(StageRecordRead, sub, err)
		}
		absent = true
		e.logger.Warn("No existing record, will create it", "name", fqdn)
	}

	// Exact string comparison, the echo service's text is the source of truth.
	if !absent && current.Value == addr {
		e.logger.Info("Record up to date", "name", fqdn, "address", addr)
		results.UpToDate = append(results.UpToDate, sub)
		e.metrics.IncDNSOperation("skip", e.domain, provider.TypeA)
		return nil
	}

	op := "update"
	if absent {
		op = "create"
	}
	update := Update{
		Subdomain: sub,
		FQDN:      fqdn,
		OldValue:  current.Value,
		NewValue:  addr,
	}

	if e.dryRun {
		e.logger.Info("Dry run mode - would upsert record", "name", fqdn, "from", current.Value, "to", addr, "operation", op)
		appendUpdate(results, update, absent)
		return nil
	}

	e.logger.Info("Changing record", "name", fqdn, "from", current.Value, "to", addr, "operation", op)
	change, err := e.dnsProvider.UpsertRecord(ctx, zoneID, provider.Record{
		Name:   sub,
		Domain: e.domain,
		Type:   provider.TypeA,
		Value:  addr,
		TTL:    provider.RecordTTL,
	})
	if err != nil {
		return e.fail(StageRecordWrite, sub, err)
	}
	update.Change = change
	appendUpdate(results, update, absent)
	e.metrics.IncDNSOperation(op, e.domain, provider.TypeA)
	e.logger.Info("Record changed", "name", fqdn, "change_id", change.ID, "status", change.Status)

	return e.notify(ctx, update, results)
}

// notify reports a successful write. A failed notification does not undo or
// fail the DNS change unless notifications are required.
func (e *engine) notify(ctx context.Context, update Update, results *Results) error {
	id, err := e.notifier.Notify(ctx, notify.Event{
		RunID:        e.runID,
		Subdomain:    update.Subdomain,
		Domain:       e.domain,
		FQDN:         update.FQDN,
		OldValue:     update.OldValue,
		NewValue:     update.NewValue,
		ChangeID:     update.Change.ID,
		ChangeStatus: update.Change.Status,
	})
	if err != nil {
		if e.notifyRequired {
			return e.fail(StageNotify, update.Subdomain, err)
		}
		e.logger.Error("Failed to send notification", "name", update.FQDN, "error", err)
		results.NotifyFailures = append(results.NotifyFailures, OperationResult{
			Subdomain: update.Subdomain,
			Op:        "notify",
			Error:     err.Error(),
		})
		return nil
	}
	if id != "" {
		e.logger.Info("Sent notification", "name", update.FQDN, "message_id", id)
	}
	return nil
}

func (e *engine) fail(stage Stage, sub string, err error) error {
	attrs := []any{"stage", string(stage), "domain", e.domain, "error", err}
	if sub != "" {
		attrs = append(attrs, "subdomain", sub)
	}
	e.logger.Error("Reconciliation failed", attrs...)
	return &Error{Stage: stage, Domain: e.domain, Subdomain: sub, Err: err}
}

func appendUpdate(results *Results, update Update, created bool) {
	if created {
		results.Created = append(results.Created, update)
		return
	}
	results.Updated = append(results.Updated, update)
}
