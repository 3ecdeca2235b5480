package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudflare/cloudflare-go"

	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/provider"
)

// api is the subset of *cloudflare.API used here.
type api interface {
	ZoneIDByName(zoneName string) (string, error)
	ListDNSRecords(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error)
	CreateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.CreateDNSRecordParams) (cloudflare.DNSRecord, error)
	UpdateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.UpdateDNSRecordParams) (cloudflare.DNSRecord, error)
}

type CloudflareProvider struct {
	client  api
	metrics *metrics.Metrics
	zones   map[string]string // zone ID to name, for metric labels
}

func New(token string, metrics *metrics.Metrics) (*CloudflareProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}

	client, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}
	return newWithClient(client, metrics), nil
}

func newWithClient(client api, metrics *metrics.Metrics) *CloudflareProvider {
	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
		zones:   make(map[string]string),
	}
}

func (p *CloudflareProvider) ResolveZone(ctx context.Context, domain string) (string, error) {
	slog.Debug("Resolving zone", "domain", domain)

	id, err := p.client.ZoneIDByName(domain)
	if err != nil {
		p.metrics.IncDNSRequest("zone", domain, false)
		return "", fmt.Errorf("failed to get zone ID for %s: %w", domain, err)
	}
	p.metrics.IncDNSRequest("zone", domain, true)
	p.zones[id] = domain
	return id, nil
}

func (p *CloudflareProvider) GetRecord(ctx context.Context, zoneID, name, domain string) (provider.Record, error) {
	fqdn := provider.FQDN(name, domain)
	slog.Debug("Getting DNS record", "zone_id", zoneID, "name", fqdn)
	start := time.Now()

	existing, err := p.find(ctx, zoneID, fqdn)
	if err != nil {
		return provider.Record{}, err
	}
	if existing == nil {
		return provider.Record{}, fmt.Errorf("%s: %w", fqdn, provider.ErrRecordNotFound)
	}

	record := provider.Record{
		Name:   name,
		Domain: domain,
		Type:   provider.TypeA,
		Value:  existing.Content,
		TTL:    time.Duration(existing.TTL) * time.Second,
	}
	slog.Debug("Retrieved DNS record", "name", fqdn, "value", record.Value, "duration", time.Since(start))
	return record, nil
}

// UpsertRecord updates the existing A record for the name or creates one.
// Cloudflare applies changes synchronously so the change is always INSYNC.
func (p *CloudflareProvider) UpsertRecord(ctx context.Context, zoneID string, record provider.Record) (provider.Change, error) {
	fqdn := record.FQDN()
	slog.Info("Upserting DNS record", "zone_id", zoneID, "name", fqdn, "type", provider.TypeA, "data", record.Value)
	start := time.Now()

	if err := provider.ValidateAddress(record.Value); err != nil {
		return provider.Change{}, err
	}

	existing, err := p.find(ctx, zoneID, fqdn)
	if err != nil {
		return provider.Change{}, err
	}

	ttl := int(provider.RecordTTL.Seconds())
	rc := cloudflare.ZoneIdentifier(zoneID)
	var result cloudflare.DNSRecord
	if existing == nil {
		result, err = p.client.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
			Type:    provider.TypeA,
			Name:    fqdn,
			Content: record.Value,
			TTL:     ttl,
		})
	} else {
		result, err = p.client.UpdateDNSRecord(ctx, rc, cloudflare.UpdateDNSRecordParams{
			ID:      existing.ID,
			Type:    provider.TypeA,
			Name:    fqdn,
			Content: record.Value,
			TTL:     ttl,
		})
	}
	if err != nil {
		p.metrics.IncDNSRequest("upsert", p.zoneLabel(zoneID), false)
		return provider.Change{}, fmt.Errorf("failed to upsert DNS record: %w", err)
	}
	p.metrics.IncDNSRequest("upsert", p.zoneLabel(zoneID), true)

	id := result.ID
	if id == "" && existing != nil {
		id = existing.ID
	}
	slog.Debug("Upserted DNS record", "name", fqdn, "id", id, "duration", time.Since(start))
	return provider.Change{ID: id, Status: provider.StatusInSync}, nil
}

func (p *CloudflareProvider) find(ctx context.Context, zoneID, fqdn string) (*cloudflare.DNSRecord, error) {
	records, _, err := p.client.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type: provider.TypeA,
		Name: fqdn,
	})
	if err != nil {
		p.metrics.IncDNSRequest("read", p.zoneLabel(zoneID), false)
		return nil, fmt.Errorf("failed to list DNS records: %w", err)
	}
	p.metrics.IncDNSRequest("read", p.zoneLabel(zoneID), true)

	for i := range records {
		if records[i].Type == provider.TypeA && provider.SameName(records[i].Name, fqdn) {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (p *CloudflareProvider) zoneLabel(zoneID string) string {
	if name, ok := p.zones[zoneID]; ok {
		return name
	}
	return zoneID
}
