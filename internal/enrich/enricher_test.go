package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetlens/internal/detect"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelFatal)
}

func sampleIssues() []*detect.Issue {
	return []*detect.Issue{
		{
			Signature:       "pattern:disk-failure",
			Category:        "Storage",
			RootCause:       "pattern root cause",
			Solution:        "pattern solution",
			OccurrenceCount: 3,
		},
		{
			Signature:       "source:Net#42",
			Category:        "Uncategorized",
			RootCause:       "fallback root cause",
			Solution:        "fallback solution",
			OccurrenceCount: 5,
		},
	}
}

// ollamaStub mimics the two endpoints the provider talks to.
func ollamaStub(t *testing.T, generate http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": "llama3.2"}, {"name": "mistral"}},
		})
	})
	mux.HandleFunc("/api/generate", generate)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEnricher_EnrichIssues_Success(t *testing.T) {
	srv := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req["model"])
		assert.Equal(t, false, req["stream"])
		assert.Contains(t, req["prompt"], "Sample log messages")

		json.NewEncoder(w).Encode(map[string]any{
			"response": "ROOT CAUSE: The disk is dying.\nSOLUTION: Replace it.",
		})
	})

	provider := NewOllamaProvider(srv.URL, testLogger())
	enricher := NewEnricher(provider, "llama3.2", time.Second, testLogger())

	issues := sampleIssues()
	failures := enricher.EnrichIssues(context.Background(), issues)

	assert.Equal(t, 0, failures)
	for _, issue := range issues {
		assert.True(t, issue.Enriched)
		assert.Equal(t, "The disk is dying.", issue.RootCause)
		assert.Equal(t, "Replace it.", issue.Solution)
	}
}

func TestEnricher_ProviderDown_KeepsPatternText(t *testing.T) {
	provider := NewOllamaProvider("http://127.0.0.1:1", testLogger())
	enricher := NewEnricher(provider, "llama3.2", 200*time.Millisecond, testLogger())

	issues := sampleIssues()
	failures := enricher.EnrichIssues(context.Background(), issues)

	assert.Equal(t, len(issues), failures)
	assert.False(t, issues[0].Enriched)
	assert.Equal(t, "pattern root cause", issues[0].RootCause)
	assert.Equal(t, "pattern solution", issues[0].Solution)
}

func TestEnricher_MalformedCompletion_CountsAsFailure(t *testing.T) {
	srv := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"response": "here is some chatty text without the sections",
		})
	})

	provider := NewOllamaProvider(srv.URL, testLogger())
	enricher := NewEnricher(provider, "llama3.2", time.Second, testLogger())

	issues := sampleIssues()
	failures := enricher.EnrichIssues(context.Background(), issues)

	assert.Equal(t, len(issues), failures)
	for _, issue := range issues {
		assert.False(t, issue.Enriched)
	}
}

func TestEnricher_CancelledContext_CountsRemainder(t *testing.T) {
	srv := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"response": "ROOT CAUSE: x\nSOLUTION: y",
		})
	})

	provider := NewOllamaProvider(srv.URL, testLogger())
	enricher := NewEnricher(provider, "llama3.2", time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	issues := sampleIssues()
	failures := enricher.EnrichIssues(ctx, issues)
	assert.Equal(t, len(issues), failures)
}

func TestEnricher_ListModels(t *testing.T) {
	srv := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {})
	provider := NewOllamaProvider(srv.URL, testLogger())
	enricher := NewEnricher(provider, "llama3.2", time.Second, testLogger())

	models := enricher.ListModels(context.Background())
	assert.Equal(t, []string{"llama3.2", "mistral"}, models)
}

func TestEnricher_ListModels_FailSoft(t *testing.T) {
	provider := NewOllamaProvider("http://127.0.0.1:1", testLogger())
	enricher := NewEnricher(provider, "llama3.2", 200*time.Millisecond, testLogger())

	models := enricher.ListModels(context.Background())
	assert.NotNil(t, models)
	assert.Empty(t, models)
}

func TestParseSections(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantRC  string
		wantSol string
		wantErr bool
	}{
		{
			name:    "plain sections",
			raw:     "ROOT CAUSE: disk failing\nSOLUTION: replace disk",
			wantRC:  "disk failing",
			wantSol: "replace disk",
		},
		{
			name:    "case insensitive with preamble",
			raw:     "Sure! Here you go.\nRoot Cause: overheating\nSolution: clean the fans",
			wantRC:  "overheating",
			wantSol: "clean the fans",
		},
		{
			name:    "solution before root cause",
			raw:     "SOLUTION: a\nROOT CAUSE: b",
			wantErr: true,
		},
		{
			name:    "missing solution",
			raw:     "ROOT CAUSE: something",
			wantErr: true,
		},
		{
			name:    "empty section",
			raw:     "ROOT CAUSE:\nSOLUTION: x",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rc, sol, err := parseSections(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantRC, rc)
			assert.Equal(t, tc.wantSol, sol)
		})
	}
}
