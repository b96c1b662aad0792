package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-coordinator/internal/config"
	"github.com/spec-kit/incident-coordinator/internal/domain"
)

func TestAnalyzeIncident(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/analyze", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "repeated failed ssh logins", body["text"])

		json.NewEncoder(w).Encode(Enrichment{ //nolint:errcheck
			Title:         "SSH brute force attempt",
			Severity:      domain.SeverityMedium,
			AttackVectors: []string{"ssh"},
		})
	}))
	defer srv.Close()

	client := NewClient(config.AnalysisConfig{Endpoint: srv.URL})
	require.True(t, client.Available())

	enrichment, err := client.AnalyzeIncident(context.Background(), "repeated failed ssh logins")
	require.NoError(t, err)
	assert.Equal(t, "SSH brute force attempt", enrichment.Title)
	assert.Equal(t, domain.SeverityMedium, enrichment.Severity)
}

func TestAnalyzeIncidentServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(config.AnalysisConfig{Endpoint: srv.URL})
	_, err := client.AnalyzeIncident(context.Background(), "anything")
	assert.Error(t, err)
}

func TestUnconfiguredClientUnavailable(t *testing.T) {
	client := NewClient(config.AnalysisConfig{})
	assert.False(t, client.Available())

	_, err := client.AnalyzeIncident(context.Background(), "anything")
	assert.Error(t, err)
}
