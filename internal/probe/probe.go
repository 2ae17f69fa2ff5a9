// Package probe is the thin boundary to the local hardware-discovery
// service: one request/response call returning the connection addresses
// currently available. No retry or backoff lives here.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Endpoint is one discovered connection address, e.g. a serial port or a
// host:port pair.
type Endpoint struct {
	Address string `json:"address"`
	Kind    string `json:"kind,omitempty"`
}

// Scanner probes for connectable hardware.
type Scanner interface {
	Scan(ctx context.Context) ([]Endpoint, error)
}

// HTTPScanner calls the local discovery service.
type HTTPScanner struct {
	baseURL string
	client  *http.Client
}

var _ Scanner = (*HTTPScanner)(nil)

// NewHTTPScanner points at the discovery service, e.g.
// "http://127.0.0.1:8001".
func NewHTTPScanner(baseURL string) *HTTPScanner {
	return &HTTPScanner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HTTPScanner) Scan(ctx context.Context) ([]Endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/test/gello/ports", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe discovery service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe discovery service: status %d", resp.StatusCode)
	}

	var body struct {
		Ports []Endpoint `json:"ports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode discovery response: %w", err)
	}
	return body.Ports, nil
}

// Static is a fixed-answer scanner for tests and offline setups.
type Static struct {
	Endpoints []Endpoint
	Err       error
}

var _ Scanner = Static{}

func (s Static) Scan(ctx context.Context) ([]Endpoint, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]Endpoint(nil), s.Endpoints...), nil
}
