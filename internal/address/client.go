package address

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/evanofslack/ddns-sync/internal/metrics"
)

// maxBody bounds the response read from the echo service.
const maxBody = 1024

type Source interface {
	// Lookup returns the host's public address exactly as the service
	// reported it.
	Lookup(ctx context.Context) (string, error)
}

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

type client struct {
	url     string
	http    Httper
	metrics *metrics.Metrics
}

func New(url string, metrics *metrics.Metrics) Source {
	return &client{
		url:     url,
		http:    &http.Client{},
		metrics: metrics,
	}
}

func (c *client) Lookup(ctx context.Context) (string, error) {
	start := time.Now()
	addr, err := c.get(ctx)
	c.metrics.IncAddressLookup(err == nil)
	if err != nil {
		return "", err
	}
	slog.Debug("Looked up public address", "url", c.url, "address", addr, "duration", time.Since(start))
	return addr, nil
}

func (c *client) get(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", err
	}
	// Some echo services return HTML to browsers.
	req.Header.Set("User-Agent", "curl/8 ddns-sync")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("address lookup request, status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read address lookup response, err=%w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("address lookup returned an empty body")
	}
	return string(body), nil
}
