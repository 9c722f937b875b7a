package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-audit/internal/collector"
	"credit-audit/internal/common/config"
	"credit-audit/internal/common/database"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func testClientConfig(baseURL string) config.OracleConfig {
	return config.OracleConfig{
		BaseURL:     baseURL,
		Username:    "auditor",
		Password:    "secret",
		Timeout:     2,
		Model:       "gpt-3.5-turbo-0125",
		Temperature: 1,
		TopP:        1,
		MaxTokens:   512,
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	return NewClient(testClientConfig(baseURL), models.DefaultSchema(), logger.NewTestLogger(t), opts...)
}

func testApplicant() models.Profile {
	return models.Profile{
		"income":            50000.0,
		"employment_status": "employed",
		"gender":            "female",
		"age":               34.0,
	}
}

func miniredisCache(t *testing.T, ttl time.Duration) *Cache {
	srv := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: srv.Addr()})}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, ttl, logger.NewTestLogger(t))
}

// ==========================
// Score Tests
// ==========================

func TestClient_Score_DirectFormat(t *testing.T) {
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/score", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "auditor", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"credit_score":   78,
			"classification": "Good",
			"explanation":    "Stable income and no defaults.",
		})
	}))
	defer server.Close()

	result := newTestClient(t, server.URL).Score(context.Background(), "fairness", testApplicant())

	require.True(t, result.Ok())
	require.NotNil(t, result.Success.Score)
	assert.Equal(t, 78.0, *result.Success.Score)
	assert.Equal(t, "Good", result.Success.Classification)

	// protected attributes are grouped away from the applicant fields
	assert.Equal(t, 50000.0, gotPayload["income"])
	assert.NotContains(t, gotPayload, "gender")
	protected := gotPayload["protected_attributes"].(map[string]interface{})
	assert.Equal(t, "female", protected["gender"])
	assert.Equal(t, 34.0, protected["age"])

	params := gotPayload["scoring_parameters"].(map[string]interface{})
	assert.Equal(t, "gpt-3.5-turbo-0125", params["model"])
	assert.Equal(t, 512.0, params["max_tokens"])
}

func TestClient_Score_LegacyFormat(t *testing.T) {
	inner, _ := json.Marshal(map[string]interface{}{
		"credit_score":   42,
		"classification": "poor",
		"explanation":    "High utilization.",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"metadata": map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]interface{}{"content": string(inner)}},
				},
			},
		})
	}))
	defer server.Close()

	result := newTestClient(t, server.URL).Score(context.Background(), "fairness", testApplicant())

	require.True(t, result.Ok())
	require.NotNil(t, result.Success.Score)
	assert.Equal(t, 42.0, *result.Success.Score)
	assert.Equal(t, "poor", result.Success.Classification)
}

func TestClient_Score_EmptyBodyStaysSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	result := newTestClient(t, server.URL).Score(context.Background(), "fairness", testApplicant())

	require.True(t, result.Ok())
	assert.Nil(t, result.Success.Score)
	assert.Empty(t, result.Success.Classification)
}

func TestClient_Score_FailureKinds(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		result := newTestClient(t, server.URL).Score(context.Background(), "robustness", testApplicant())

		require.True(t, result.Failed())
		assert.Equal(t, models.FailureHTTP, result.Failure.Kind)
		assert.Equal(t, http.StatusTooManyRequests, result.Failure.StatusCode)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // nothing listening anymore

		result := newTestClient(t, server.URL).Score(context.Background(), "robustness", testApplicant())

		require.True(t, result.Failed())
		assert.Equal(t, models.FailureConnection, result.Failure.Kind)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		cfg := testClientConfig(server.URL)
		cfg.Timeout = 0 // fall back to default, override below via context
		client := NewClient(cfg, models.DefaultSchema(), logger.NewTestLogger(t))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		result := client.Score(ctx, "robustness", testApplicant())

		require.True(t, result.Failed())
		assert.Equal(t, models.FailureTimeout, result.Failure.Kind)
	})
}

// ==========================
// Cache Tests
// ==========================

func TestClient_Score_CacheReuse(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"credit_score":   80,
			"classification": "good",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithCache(miniredisCache(t, time.Minute)))
	profile := testApplicant()

	first := client.Score(context.Background(), "consistency", profile)
	second := client.Score(context.Background(), "consistency", profile)

	assert.Equal(t, 1, calls)
	require.True(t, second.Ok())
	assert.Equal(t, *first.Success.Score, *second.Success.Score)

	// a different module label is a different cache entry
	client.Score(context.Background(), "fairness", profile)
	assert.Equal(t, 2, calls)
}

func TestClient_Score_FailuresNotCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithCache(miniredisCache(t, time.Minute)))

	client.Score(context.Background(), "fairness", testApplicant())
	client.Score(context.Background(), "fairness", testApplicant())

	assert.Equal(t, 2, calls)
}

func TestClient_Score_CacheOutageDegradesToLiveCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"credit_score":   80,
			"classification": "good",
		})
	}))
	defer server.Close()

	srv := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: srv.Addr()})}
	t.Cleanup(func() { _ = rdb.Close() })
	client := newTestClient(t, server.URL,
		WithCache(NewCache(rdb, time.Minute, logger.NewTestLogger(t))))

	// redis goes away mid-run; every call falls through to the API
	srv.Close()

	first := client.Score(context.Background(), "fairness", testApplicant())
	second := client.Score(context.Background(), "fairness", testApplicant())

	require.True(t, first.Ok())
	require.True(t, second.Ok())
	assert.Equal(t, 2, calls)
}

// ==========================
// Collector Wiring Tests
// ==========================

func TestClient_Score_AppendsToSink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"credit_score":   65,
			"classification": "average",
		})
	}))
	defer server.Close()

	sink := collector.NewMemorySink()
	client := newTestClient(t, server.URL, WithSink(sink))

	client.Score(context.Background(), "transparency", testApplicant())

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "transparency", records[0].Module)
	assert.Equal(t, 65.0, records[0].Output["credit_score"])
}

// ==========================
// Response Parsing Tests
// ==========================

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantScore *float64
		wantClass string
		wantText  string
	}{
		{
			name:      "direct",
			raw:       `{"credit_score": 90, "classification": "good", "explanation": "x"}`,
			wantScore: fptr(90),
			wantClass: "good",
			wantText:  "x",
		},
		{
			name:      "classification only",
			raw:       `{"classification": "denied"}`,
			wantClass: "denied",
		},
		{
			name:     "legacy non-json content",
			raw:      `{"metadata": {"choices": [{"message": {"content": "The applicant looks good."}}]}}`,
			wantText: "The applicant looks good.",
		},
		{
			name: "garbage",
			raw:  `not json at all`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseResponse([]byte(tt.raw))
			if tt.wantScore != nil {
				require.NotNil(t, got.Score)
				assert.Equal(t, *tt.wantScore, *got.Score)
			} else {
				assert.Nil(t, got.Score)
			}
			assert.Equal(t, tt.wantClass, got.Classification)
			assert.Equal(t, tt.wantText, got.Explanation)
		})
	}
}

func TestValidateResponse(t *testing.T) {
	assert.Empty(t, validateResponse([]byte(`{"credit_score": 50, "classification": "average"}`)))
	assert.NotEmpty(t, validateResponse([]byte(`{"credit_score": 250}`)))
}

func fptr(v float64) *float64 { return &v }
