package archive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credit-audit/internal/common/config"
	"credit-audit/internal/common/database"
	"credit-audit/internal/common/errors"
	"credit-audit/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func testArchive(t *testing.T, handler http.HandlerFunc) (*Archive, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	es, err := database.NewElasticsearch(config.ArchiveConfig{
		Addresses: []string{server.URL},
		Index:     "credit-audit-results",
	})
	require.NoError(t, err)

	return New(es, "credit-audit-results", logger.NewTestLogger(t)), server
}

func testDocument() Document {
	return Document{
		RunID:      "run-123",
		StartedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Results: map[string]interface{}{
			"fairness": map[string]interface{}{"gender": map[string]interface{}{}},
		},
	}
}

// ==========================
// Archive Tests
// ==========================

func TestStore_IndexesUnderRunID(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	archive, _ := testArchive(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result": "created"}`))
	})

	err := archive.Store(context.Background(), testDocument())
	require.NoError(t, err)

	assert.Equal(t, "/credit-audit-results/_doc/run-123", gotPath)
	assert.Equal(t, "run-123", gotBody["run_id"])
	_, hasResults := gotBody["results"]
	assert.True(t, hasResults)
}

func TestStore_ServerError(t *testing.T) {
	archive, _ := testArchive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		http.Error(w, `{"error": "index_closed_exception"}`, http.StatusForbidden)
	})

	err := archive.Store(context.Background(), testDocument())
	require.Error(t, err)
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Contains(t, stdErr.Details, "403")
}

func TestStore_ConnectionRefused(t *testing.T) {
	archive, server := testArchive(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	err := archive.Store(context.Background(), testDocument())
	assert.Error(t, err)
}
