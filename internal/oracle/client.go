// internal/oracle/client.go

// Package oracle is the single gateway to the black-box scoring API. Every
// engine's calls go through Client.Score, which owns the payload shape,
// transport-failure categorization, response parsing, caching, collection,
// and call metrics. Downstream code only ever sees the OracleResult union.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"credit-audit/internal/collector"
	"credit-audit/internal/common/config"
	httpclient "credit-audit/internal/common/http"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/common/metrics"
	"credit-audit/internal/common/observability"
	"credit-audit/internal/models"
)

const scorePath = "/score"

// scoringParameters is forwarded verbatim on every call so repeated runs
// hit the model with identical settings.
type scoringParameters struct {
	Model            string  `json:"model"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	MaxTokens        int     `json:"max_tokens"`
	PresencePenalty  float64 `json:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	Seed             int     `json:"seed"`
}

// Client calls the scoring API. All fields except config are optional:
// a zero cache, sink, or observability handle disables that concern.
type Client struct {
	cfg    config.OracleConfig
	http   *httpclient.Client
	schema *models.Schema
	log    logger.Logger

	cache  *Cache
	sink   collector.Sink
	obs    *observability.Observability
	tracer trace.Tracer
}

// Option configures optional client concerns.
type Option func(*Client)

// WithCache attaches a response cache.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithSink attaches a collector that receives every (profile, result) pair.
func WithSink(sink collector.Sink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithObservability attaches the otel meter handle.
func WithObservability(obs *observability.Observability) Option {
	return func(c *Client) { c.obs = obs }
}

func NewClient(cfg config.OracleConfig, schema *models.Schema, log logger.Logger, opts ...Option) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   httpclient.NewClient(timeout),
		schema: schema,
		log:    log,
		tracer: otel.Tracer("credit-audit/oracle"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Score submits one applicant profile and returns the categorized result.
// It never returns an error: transport failures come back as the Failure
// arm of the union and are counted, not raised. The module label names the
// calling analysis for metrics, caching, and collection.
func (c *Client) Score(ctx context.Context, module string, profile models.Profile) *models.OracleResult {
	ctx, span := c.tracer.Start(ctx, "oracle.score",
		trace.WithAttributes(attribute.String("audit.module", module)))
	defer span.End()

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, module, profile); ok {
			metrics.OracleCacheHits.WithLabelValues(module).Inc()
			span.SetAttributes(attribute.Bool("audit.cache_hit", true))
			return cached
		}
	}

	start := time.Now()
	result := c.call(ctx, profile)
	elapsed := time.Since(start)

	c.record(ctx, module, result, elapsed)

	if c.cache != nil && result.Ok() {
		c.cache.Put(ctx, module, profile, result)
	}
	if c.sink != nil {
		if err := c.sink.Append(module, profile, result); err != nil {
			c.log.Warn("Response collection failed", map[string]interface{}{
				"module": module,
				"error":  err.Error(),
			})
		}
	}
	return result
}

func (c *Client) call(ctx context.Context, profile models.Profile) *models.OracleResult {
	body, err := json.Marshal(c.payload(profile))
	if err != nil {
		return models.FailureResult(models.FailureRequest, fmt.Sprintf("encode payload: %v", err), 0)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + scorePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.FailureResult(models.FailureRequest, fmt.Sprintf("build request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return categorizeTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.FailureResult(models.FailureConnection, fmt.Sprintf("read response: %v", err), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(raw))
		if len(detail) > 200 {
			detail = detail[:200]
		}
		return models.FailureResult(models.FailureHTTP,
			fmt.Sprintf("status %d: %s", resp.StatusCode, detail), resp.StatusCode)
	}

	success := parseResponse(raw)
	success.StatusCode = resp.StatusCode

	if report := validateResponse(raw); report != "" {
		c.log.Warn("Scoring response violates expected schema", map[string]interface{}{
			"violations": report,
		})
	}
	return models.SuccessResult(success)
}

// payload builds the flat request body: applicant fields at the top level,
// protected attributes grouped under their own key, scoring parameters last.
func (c *Client) payload(profile models.Profile) map[string]interface{} {
	protectedNames := make(map[string]bool)
	for _, spec := range c.schema.ProtectedFields() {
		protectedNames[spec.Name] = true
	}

	body := make(map[string]interface{}, len(profile)+2)
	protected := make(map[string]interface{})
	for k, v := range profile {
		if protectedNames[k] {
			protected[k] = v
		} else {
			body[k] = v
		}
	}
	body["protected_attributes"] = protected
	body["scoring_parameters"] = scoringParameters{
		Model:            c.cfg.Model,
		Temperature:      c.cfg.Temperature,
		TopP:             c.cfg.TopP,
		MaxTokens:        c.cfg.MaxTokens,
		PresencePenalty:  c.cfg.PresencePenalty,
		FrequencyPenalty: c.cfg.FrequencyPenalty,
		Seed:             c.cfg.Seed,
	}
	return body
}

func (c *Client) record(ctx context.Context, module string, result *models.OracleResult, elapsed time.Duration) {
	metrics.OracleCallsTotal.WithLabelValues(module).Inc()
	metrics.OracleCallDuration.WithLabelValues(module).Observe(elapsed.Seconds())

	status := "success"
	if result.Failed() {
		status = string(result.Failure.Kind)
		metrics.OracleCallsFailed.WithLabelValues(module, status).Inc()
		c.log.Debug("Oracle call failed", map[string]interface{}{
			"module":     module,
			"error_kind": status,
			"detail":     result.Failure.Detail,
		})
	}
	if c.obs != nil {
		c.obs.RecordOracleCall(ctx, module, status)
		c.obs.RecordCallDuration(ctx, elapsed, status)
	}
}

// categorizeTransportError maps a client error onto the failure taxonomy.
// The mapping is decided here once; analyses only switch on the kind.
func categorizeTransportError(err error) *models.OracleResult {
	var urlErr *url.Error
	detail := err.Error()
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return models.FailureResult(models.FailureTimeout, detail, 0)
		}
		return models.FailureResult(models.FailureConnection, detail, 0)
	}
	if strings.Contains(detail, "context deadline exceeded") {
		return models.FailureResult(models.FailureTimeout, detail, 0)
	}
	return models.FailureResult(models.FailureUnknown, detail, 0)
}
