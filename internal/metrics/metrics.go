package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "ddns_sync"
	jobName   = "ddns_sync"
)

type Metrics struct {
	registry       *prometheus.Registry
	syncRuns       *prometheus.CounterVec // total runs
	syncDuration   prometheus.Histogram   // time to run
	dnsOperations  *prometheus.CounterVec // record decisions
	dnsRequests    *prometheus.CounterVec // dns provider requests
	addressLookups *prometheus.CounterVec // public address lookups
	notifications  *prometheus.CounterVec // notification sends
}

// Public interface for metrics operations
func (m *Metrics) IncSyncRun(success bool) {
	status := boolToResult(success)
	m.syncRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) SetSyncDuration(duration time.Duration) {
	m.syncDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncDNSOperation(operation, zone, recordType string) {
	if !isValidOperation(operation) || !isValidRecordType(recordType) || zone == "" {
		return
	}
	m.dnsOperations.WithLabelValues(operation, zone, recordType).Inc()
}

func (m *Metrics) IncDNSRequest(operation, zone string, success bool) {
	if !isValidOperation(operation) || zone == "" {
		return
	}
	status := boolToResult(success)
	m.dnsRequests.WithLabelValues(operation, zone, status).Inc()
}

func (m *Metrics) IncAddressLookup(success bool) {
	status := boolToResult(success)
	m.addressLookups.WithLabelValues(status).Inc()
}

func (m *Metrics) IncNotification(success bool) {
	status := boolToResult(success)
	m.notifications.WithLabelValues(status).Inc()
}

// Push sends the registry to a Prometheus Pushgateway. The job exits after a
// single run, so there is nothing to scrape.
func (m *Metrics) Push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, jobName).Gatherer(m.registry).PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "zone", "read", "upsert", "create", "update", "skip":
		return true
	}
	return false
}

func isValidRecordType(rt string) bool {
	return rt == "A"
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of reconciliation runs",
		}, []string{"status"}),

		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		dnsOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_operations_total",
			Help:      "Total DNS record decisions made by app",
		}, []string{"operation", "zone", "type"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "zone", "status"}),

		addressLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_lookups_total",
			Help:      "Total public address lookups",
		}, []string{"status"}),

		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total change notifications sent",
		}, []string{"status"}),
	}

	if register {
		registry.MustRegister(
			m.syncRuns,
			m.syncDuration,
			m.dnsOperations,
			m.dnsRequests,
			m.addressLookups,
			m.notifications,
		)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
