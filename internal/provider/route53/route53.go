package route53

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/evanofslack/ddns-sync/internal/awsutil"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/provider"
)

const (
	hostedZonePrefix = "/hostedzone/"
	changePrefix     = "/change/"
	changeComment    = "ddns-sync"
)

// api is the subset of the Route53 client used here.
type api interface {
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

type Route53Provider struct {
	client  api
	metrics *metrics.Metrics
	// zone id to zone name, filled by ResolveZone for metric labels
	zones map[string]string
}

func New(ctx context.Context, region string, metrics *metrics.Metrics) (*Route53Provider, error) {
	cfg, err := awsutil.LoadConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("failed to create Route53 client: %w", err)
	}
	return newWithClient(route53.NewFromConfig(cfg), metrics), nil
}

func newWithClient(client api, metrics *metrics.Metrics) *Route53Provider {
	return &Route53Provider{
		client:  client,
		metrics: metrics,
		zones:   make(map[string]string),
	}
}

func (p *Route53Provider) ResolveZone(ctx context.Context, domain string) (string, error) {
	slog.Debug("Resolving hosted zone", "domain", domain)
	start := time.Now()

	out, err := p.client.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(domain),
		MaxItems: aws.Int32(1),
	})
	if err != nil {
		p.metrics.IncDNSRequest("zone", domain, false)
		return "", fmt.Errorf("failed to list hosted zones: %w", awsutil.Describe(err))
	}
	p.metrics.IncDNSRequest("zone", domain, true)

	// Zones are returned in name order starting at domain, so the first one
	// is only a match when its name is exactly the domain.
	if len(out.HostedZones) == 0 || !provider.SameName(aws.ToString(out.HostedZones[0].Name), domain) {
		return "", fmt.Errorf("hosted zone for %s: %w", domain, provider.ErrZoneNotFound)
	}

	zoneID := strings.TrimPrefix(aws.ToString(out.HostedZones[0].Id), hostedZonePrefix)
	p.zones[zoneID] = domain
	slog.Debug("Resolved hosted zone", "domain", domain, "zone_id", zoneID, "duration", time.Since(start))
	return zoneID, nil
}

func (p *Route53Provider) GetRecord(ctx context.Context, zoneID, name, domain string) (provider.Record, error) {
	fqdn := provider.FQDN(name, domain)
	slog.Debug("Getting DNS record", "zone_id", zoneID, "name", fqdn)
	start := time.Now()

	out, err := p.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(fqdn),
		StartRecordType: types.RRTypeA,
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		p.metrics.IncDNSRequest("read", p.zoneLabel(zoneID), false)
		return provider.Record{}, fmt.Errorf("failed to list record sets: %w", awsutil.Describe(err))
	}
	p.metrics.IncDNSRequest("read", p.zoneLabel(zoneID), true)

	// The listing starts at fqdn but continues with the next name in order
	// when fqdn itself has no A record.
	if len(out.ResourceRecordSets) == 0 {
		return provider.Record{}, fmt.Errorf("%s: %w", fqdn, provider.ErrRecordNotFound)
	}
	set := out.ResourceRecordSets[0]
	if set.Type != types.RRTypeA || !provider.SameName(aws.ToString(set.Name), fqdn) {
		return provider.Record{}, fmt.Errorf("%s: %w", fqdn, provider.ErrRecordNotFound)
	}
	if len(set.ResourceRecords) == 0 {
		return provider.Record{}, fmt.Errorf("record %s has no values, alias records are not supported", fqdn)
	}

	record := provider.Record{
		Name:   name,
		Domain: domain,
		Type:   provider.TypeA,
		Value:  aws.ToString(set.ResourceRecords[0].Value),
		TTL:    time.Duration(aws.ToInt64(set.TTL)) * time.Second,
	}
	slog.Debug("Retrieved DNS record", "name", fqdn, "value", record.Value, "duration", time.Since(start))
	return record, nil
}

func (p *Route53Provider) UpsertRecord(ctx context.Context, zoneID string, record provider.Record) (provider.Change, error) {
	fqdn := record.FQDN()
	slog.Info("Upserting DNS record", "zone_id", zoneID, "name", fqdn, "type", provider.TypeA, "data", record.Value)
	start := time.Now()

	if err := provider.ValidateAddress(record.Value); err != nil {
		return provider.Change{}, err
	}

	out, err := p.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String(changeComment),
			Changes: []types.Change{
				{
					Action: types.ChangeActionUpsert,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name: aws.String(fqdn),
						Type: types.RRTypeA,
						TTL:  aws.Int64(int64(provider.RecordTTL.Seconds())),
						ResourceRecords: []types.ResourceRecord{
							{Value: aws.String(record.Value)},
						},
					},
				},
			},
		},
	})
	if err != nil {
		p.metrics.IncDNSRequest("upsert", p.zoneLabel(zoneID), false)
		return provider.Change{}, fmt.Errorf("failed to change record sets: %w", awsutil.Describe(err))
	}
	p.metrics.IncDNSRequest("upsert", p.zoneLabel(zoneID), true)

	change := provider.Change{}
	if out.ChangeInfo != nil {
		change.ID = strings.TrimPrefix(aws.ToString(out.ChangeInfo.Id), changePrefix)
		change.Status = string(out.ChangeInfo.Status)
	}
	slog.Debug("Upserted DNS record", "name", fqdn, "change_id", change.ID, "status", change.Status, "duration", time.Since(start))
	return change, nil
}

func (p *Route53Provider) zoneLabel(zoneID string) string {
	if name, ok := p.zones[zoneID]; ok {
		return name
	}
	return zoneID
}
