// cmd/auditor/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"credit-audit/internal/analysis"
	"credit-audit/internal/analysis/accuracy"
	"credit-audit/internal/analysis/consistency"
	"credit-audit/internal/analysis/fairness"
	"credit-audit/internal/analysis/robustness"
	"credit-audit/internal/analysis/transparency"
	"credit-audit/internal/archive"
	"credit-audit/internal/collector"
	"credit-audit/internal/common/aws"
	"credit-audit/internal/common/config"
	"credit-audit/internal/common/database"
	apperrors "credit-audit/internal/common/errors"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/common/observability"
	"credit-audit/internal/dataset"
	"credit-audit/internal/models"
	"credit-audit/internal/notify"
	"credit-audit/internal/oracle"
	"credit-audit/internal/progress"
)

// Progress spans per audit phase, on the overall 0..1 scale.
var phaseSpans = []struct {
	name  string
	start float64
	span  float64
}{
	{"baseline", 0.00, 0.15},
	{"fairness", 0.15, 0.20},
	{"robustness", 0.35, 0.20},
	{"consistency", 0.55, 0.15},
	{"transparency", 0.70, 0.25},
	{"accuracy", 0.95, 0.05},
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting credit oracle audit...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("auditor")
	defer obs.Shutdown()

	runID := uuid.New().String()
	zapLog.Info("audit run created", zap.String("runID", runID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Health & Metrics Server ---
	if cfg.Metrics.Enabled {
		go func() {
			http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "healthy",
					"run_id": runID,
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			http.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				zapLog.Error("Health/Metrics server failed", zap.Error(err))
			}
		}()
	}

	// --- Dataset Source ---
	var pg *database.PostgresClient
	if cfg.Dataset.Source == "postgres" {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
	}

	var querier dataset.PostgresQuerier
	if pg != nil {
		querier = pg.GetDB()
	}
	source, err := dataset.NewSource(cfg.Dataset, querier)
	if err != nil {
		zapLog.Fatal("dataset source setup failed", zap.Error(err))
	}

	profiles, err := source.Load(ctx)
	if err != nil {
		zapLog.Fatal("dataset load failed", zap.Error(err))
	}
	zapLog.Info("dataset loaded", zap.Int("profiles", len(profiles)))

	schema := models.DefaultSchema()

	// --- Oracle Client ---
	opts := []oracle.Option{oracle.WithObservability(obs)}

	if cfg.Oracle.CacheEnabled {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, oracle cache disabled", zap.Error(err))
		} else {
			defer redis.Close()
			zapLog.Info("Redis connected successfully")
			ttl := time.Duration(cfg.Oracle.CacheTTL) * time.Second
			opts = append(opts, oracle.WithCache(oracle.NewCache(redis, ttl, log)))
		}
	}

	sink, err := collector.NewFileSink(cfg.Analysis.ResponseDir, runID, log)
	if err != nil {
		zapLog.Fatal("response collector setup failed", zap.Error(err))
	}
	defer sink.Close()
	opts = append(opts, oracle.WithSink(sink))
	zapLog.Info("collecting oracle responses", zap.String("path", sink.Path()))

	client := oracle.NewClient(cfg.Oracle, schema, log, opts...)

	// --- Run Audit ---
	reporter := progress.ReporterFunc(func(status progress.Status) {
		log.Info("audit progress", map[string]interface{}{
			"progress": status.Percent(),
			"message":  status.Message,
		})
	})

	startedAt := time.Now()
	results := runAudit(ctx, cfg, client, schema, profiles, reporter, log)

	// --- Persist Results ---
	doc := archive.Document{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Results:    results,
	}

	outPath := filepath.Join(cfg.Analysis.ResponseDir, fmt.Sprintf("audit_results_%s.json", runID))
	if err := writeResults(outPath, doc); err != nil {
		zapLog.Error("failed to write results file", zap.Error(err), zap.String("path", outPath))
	} else {
		zapLog.Info("results written", zap.String("path", outPath))
	}

	if cfg.Archive.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Archive)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Error("elasticsearch unavailable, run not archived", zap.Error(err))
		} else {
			zapLog.Info("Elasticsearch connected successfully")
			if err := archive.New(esClient, cfg.Archive.Index, log).Store(ctx, doc); err != nil {
				zapLog.Error("archive store failed", zap.Error(err))
			}
		}
	}

	// --- Notifications ---
	if cfg.Notifications.Enabled {
		summary := notify.RunSummary{
			RunID:    runID,
			Duration: time.Since(startedAt),
			Modules:  moduleNames(results),
			Failed:   failedModules(results),
		}

		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.Region)
		if err != nil {
			zapLog.Warn("SNS client setup failed", zap.Error(err))
		}
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.Region)
		if err != nil {
			zapLog.Warn("SES client setup failed", zap.Error(err))
		}
		notify.New(cfg.Notifications, snsClient, sesClient, log).NotifyRunComplete(ctx, summary)
	}

	zapLog.Info("audit run finished",
		zap.String("runID", runID),
		zap.Duration("duration", time.Since(startedAt)),
		zap.Strings("failed", failedModules(results)),
	)
}

// runAudit executes every enabled analysis in sequence and gathers the
// per-module result maps. A module failure lands as an "error" entry in its
// own map and never stops the remaining modules.
func runAudit(
	ctx context.Context,
	cfg *config.Config,
	client *oracle.Client,
	schema *models.Schema,
	profiles []models.Profile,
	reporter progress.Reporter,
	log logger.Logger,
) map[string]interface{} {
	results := make(map[string]interface{})
	trackers := make(map[string]*progress.Tracker, len(phaseSpans))
	for _, p := range phaseSpans {
		trackers[p.name] = progress.NewTracker(reporter, p.start, p.span)
	}

	// Baseline responses feed fairness and accuracy; the other modules make
	// their own oracle calls against sampled or perturbed inputs.
	responses := analysis.CollectResponses(ctx, client, "baseline", profiles, trackers["baseline"])

	// A panicking engine must not take the whole run down: the other
	// modules still produce results, and the failed module reports an
	// error map like any other failure.
	run := func(module string, fn func() map[string]interface{}) {
		start := time.Now()
		result := func() (result map[string]interface{}) {
			defer func() {
				if r := recover(); r != nil {
					result = apperrors.ErrorResult(apperrors.NewAnalysisError(module, fmt.Errorf("%v", r)))
				}
			}()
			return fn()
		}()
		results[module] = result

		status := "success"
		if _, failed := result["error"]; failed {
			status = "error"
		}
		log.Info("analysis complete", map[string]interface{}{
			"analysis": module,
			"status":   status,
			"duration": time.Since(start).String(),
		})
	}

	run("fairness", func() map[string]interface{} {
		return fairness.New(client, cfg.Analysis.Fairness, log, trackers["fairness"]).Run(ctx, profiles, responses)
	})
	run("robustness", func() map[string]interface{} {
		return robustness.New(client, cfg.Analysis.Robustness, schema, log, trackers["robustness"]).Run(ctx, profiles)
	})
	run("consistency", func() map[string]interface{} {
		return consistency.New(client, cfg.Analysis.Consistency, log, trackers["consistency"]).Run(ctx, profiles)
	})
	run("transparency", func() map[string]interface{} {
		return transparency.New(client, cfg.Analysis.Transparency, schema, log, trackers["transparency"]).Run(ctx, profiles)
	})
	if cfg.Analysis.Accuracy.Enabled {
		run("accuracy", func() map[string]interface{} {
			return accuracy.New(log, trackers["accuracy"]).Run(responses)
		})
	}

	return results
}

func writeResults(path string, doc archive.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func moduleNames(results map[string]interface{}) []string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	return names
}

func failedModules(results map[string]interface{}) []string {
	var failed []string
	for name, result := range results {
		if m, ok := result.(map[string]interface{}); ok {
			if _, bad := m["error"]; bad {
				failed = append(failed, name)
			}
		}
	}
	return failed
}
