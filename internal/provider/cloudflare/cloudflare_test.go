package cloudflare

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudflare/cloudflare-go"

	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/provider"
)

type mockAPI struct {
	zoneID    string
	zoneErr   error
	records   []cloudflare.DNSRecord
	listErr   error
	createErr error
	updateErr error

	listParams   cloudflare.ListDNSRecordsParams
	createParams *cloudflare.CreateDNSRecordParams
	updateParams *cloudflare.UpdateDNSRecordParams
}

func (m *mockAPI) ZoneIDByName(zoneName string) (string, error) {
	return m.zoneID, m.zoneErr
}

func (m *mockAPI) ListDNSRecords(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error) {
	m.listParams = params
	if m.listErr != nil {
		return nil, nil, m.listErr
	}
	return m.records, &cloudflare.ResultInfo{Page: 1, TotalPages: 1}, nil
}

func (m *mockAPI) CreateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.CreateDNSRecordParams) (cloudflare.DNSRecord, error) {
	m.createParams = &params
	if m.createErr != nil {
		return cloudflare.DNSRecord{}, m.createErr
	}
	return cloudflare.DNSRecord{ID: "new-id", Name: params.Name, Type: params.Type, Content: params.Content}, nil
}

func (m *mockAPI) UpdateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.UpdateDNSRecordParams) (cloudflare.DNSRecord, error) {
	m.updateParams = &params
	if m.updateErr != nil {
		return cloudflare.DNSRecord{}, m.updateErr
	}
	return cloudflare.DNSRecord{ID: params.ID, Name: params.Name, Type: params.Type, Content: params.Content}, nil
}

func TestResolveZone(t *testing.T) {
	p := newWithClient(&mockAPI{zoneID: "abc"}, metrics.New(false))
	id, err := p.ResolveZone(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "abc" {
		t.Errorf("Zone id = %q, want %q", id, "abc")
	}

	p = newWithClient(&mockAPI{zoneErr: errors.New("zone could not be found")}, metrics.New(false))
	if _, err := p.ResolveZone(context.Background(), "example.com"); err == nil {
		t.Error("Expected error but got none")
	}
}

func TestGetRecord(t *testing.T) {
	tests := []struct {
		name        string
		records     []cloudflare.DNSRecord
		listErr     error
		want        string
		wantErr     bool
		wantMissing bool
	}{
		{
			name:    "existing record",
			records: []cloudflare.DNSRecord{{ID: "r1", Name: "photos.example.com", Type: "A", Content: "1.2.3.4", TTL: 60}},
			want:    "1.2.3.4",
		},
		{
			name:        "no record",
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:    "api error",
			listErr: errors.New("unauthorized"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{records: tt.records, listErr: tt.listErr}
			p := newWithClient(api, metrics.New(false))

			got, err := p.GetRecord(context.Background(), "abc", "photos", "example.com")
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if errors.Is(err, provider.ErrRecordNotFound) != tt.wantMissing {
					t.Errorf("ErrRecordNotFound match mismatch, want %v (err=%v)", tt.wantMissing, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.Value != tt.want {
				t.Errorf("Value = %q, want %q", got.Value, tt.want)
			}
			if api.listParams.Name != "photos.example.com" || api.listParams.Type != "A" {
				t.Errorf("Unexpected list params: %+v", api.listParams)
			}
		})
	}
}

func TestUpsertRecord(t *testing.T) {
	record := provider.Record{Name: "photos", Domain: "example.com", Type: provider.TypeA, Value: "1.2.3.4", TTL: provider.RecordTTL}

	t.Run("updates existing record", func(t *testing.T) {
		api := &mockAPI{records: []cloudflare.DNSRecord{{ID: "r1", Name: "photos.example.com", Type: "A", Content: "9.9.9.9"}}}
		p := newWithClient(api, metrics.New(false))

		change, err := p.UpsertRecord(context.Background(), "abc", record)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if api.createParams != nil {
			t.Error("Expected no create call")
		}
		if api.updateParams == nil || api.updateParams.ID != "r1" || api.updateParams.Content != "1.2.3.4" || api.updateParams.TTL != 60 {
			t.Errorf("Unexpected update params: %+v", api.updateParams)
		}
		if change.ID != "r1" || change.Status != provider.StatusInSync {
			t.Errorf("Change = %+v", change)
		}
	})

	t.Run("creates missing record", func(t *testing.T) {
		api := &mockAPI{}
		p := newWithClient(api, metrics.New(false))

		change, err := p.UpsertRecord(context.Background(), "abc", record)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if api.updateParams != nil {
			t.Error("Expected no update call")
		}
		if api.createParams == nil || api.createParams.Name != "photos.example.com" || api.createParams.Type != "A" || api.createParams.TTL != 60 {
			t.Errorf("Unexpected create params: %+v", api.createParams)
		}
		if change.ID != "new-id" {
			t.Errorf("Change = %+v", change)
		}
	})

	t.Run("write error", func(t *testing.T) {
		api := &mockAPI{createErr: errors.New("rate limited")}
		p := newWithClient(api, metrics.New(false))
		if _, err := p.UpsertRecord(context.Background(), "abc", record); err == nil {
			t.Error("Expected error but got none")
		}
	})
}
