package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/libdns/libdns"
)

const (
	TypeA = "A"

	// RecordTTL is applied to every record the job writes.
	RecordTTL = 60 * time.Second
)

// Change statuses reported by providers. Others are passed through as-is.
const (
	StatusPending = "PENDING"
	StatusInSync  = "INSYNC"
)

var (
	// ErrZoneNotFound is returned when no zone matches the requested domain.
	ErrZoneNotFound = errors.New("zone not found")
	// ErrRecordNotFound is returned when the name has no address record.
	ErrRecordNotFound = errors.New("record not found")
)

type Provider interface {
	// ResolveZone returns the provider zone identifier for domain.
	ResolveZone(ctx context.Context, domain string) (string, error)
	// GetRecord returns the address record for name under domain, or
	// ErrRecordNotFound.
	GetRecord(ctx context.Context, zoneID, name, domain string) (Record, error)
	// UpsertRecord sets record to its Value, creating it when absent.
	UpsertRecord(ctx context.Context, zoneID string, record Record) (Change, error)
}

type Record struct {
	Name   string // subdomain label, e.g. "photos"
	Domain string // parent domain, e.g. "example.com"
	Type   string
	Value  string
	TTL    time.Duration
}

// FQDN returns the record's absolute name without a trailing dot.
func (r Record) FQDN() string {
	return FQDN(r.Name, r.Domain)
}

func FQDN(name, domain string) string {
	return strings.TrimSuffix(libdns.AbsoluteName(name, domain), ".")
}

// SameName reports whether two DNS names are equal, ignoring case and a
// trailing dot.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

type Change struct {
	ID     string
	Status string
}

// ValidateAddress checks that value can be written as an A record.
func ValidateAddress(value string) error {
	rr := libdns.RR{Name: "@", Type: TypeA, Data: value, TTL: RecordTTL}
	parsed, err := rr.Parse()
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", value, err)
	}
	var addr libdns.Address
	switch a := parsed.(type) {
	case libdns.Address:
		addr = a
	case *libdns.Address:
		addr = *a
	default:
		return fmt.Errorf("invalid address %q: unexpected record %T", value, parsed)
	}
	if !addr.IP.Is4() {
		return fmt.Errorf("invalid address %q: not an IPv4 address", value)
	}
	return nil
}
