// Package analysis wraps the external incident-analysis service. It is
// best-effort text enrichment: any failure here must never block ticket
// creation.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spec-kit/incident-coordinator/internal/config"
	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// Enrichment is the analysis service's structured reading of an incident.
type Enrichment struct {
	Title           string          `json:"title"`
	Severity        domain.Severity `json:"severity"`
	AffectedSystems []string        `json:"affected_systems"`
	AttackVectors   []string        `json:"attack_vectors"`
	Summary         string          `json:"summary"`
}

// Client calls the analysis endpoint over JSON/HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds the client; a nil-endpoint client is valid and always
// reports the service as unavailable.
func NewClient(cfg config.AnalysisConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Available reports whether an endpoint is configured.
func (c *Client) Available() bool {
	return c != nil && c.endpoint != ""
}

// AnalyzeIncident submits the incident text and returns the enrichment.
func (c *Client) AnalyzeIncident(ctx context.Context, text string) (*Enrichment, error) {
	if !c.Available() {
		return nil, fmt.Errorf("analysis service not configured")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	var enrichment Enrichment
	if err := json.NewDecoder(resp.Body).Decode(&enrichment); err != nil {
		return nil, err
	}
	return &enrichment, nil
}
