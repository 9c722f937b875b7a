package notify

import (
	"context"
	"testing"
	"time"

	"credit-audit/internal/common/config"
	"credit-audit/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Summary Formatting Tests
// ==========================

func TestFormatSummary(t *testing.T) {
	summary := RunSummary{
		RunID:    "run-123",
		Duration: 90*time.Second + 300*time.Millisecond,
		Modules:  []string{"fairness", "robustness"},
	}

	msg := formatSummary(summary)
	assert.Contains(t, msg, "run-123")
	assert.Contains(t, msg, "1m30s")
	assert.Contains(t, msg, "fairness")
	assert.NotContains(t, msg, "Failed modules")
}

func TestFormatSummary_WithFailures(t *testing.T) {
	summary := RunSummary{
		RunID:   "run-456",
		Modules: []string{"fairness", "accuracy"},
		Failed:  []string{"accuracy"},
	}

	msg := formatSummary(summary)
	assert.Contains(t, msg, "Failed modules")
	assert.Contains(t, msg, "accuracy")
}

// ==========================
// Notifier Tests
// ==========================

func TestNotifyRunComplete_NilClientsAreSkipped(t *testing.T) {
	notifier := New(config.NotificationConfig{
		Enabled:  true,
		TopicARN: "arn:aws:sns:eu-west-1:123456789012:audits",
		EmailTo:  "team@example.com",
	}, nil, nil, logger.NewTestLogger(t))

	// must not panic with both channels unset
	notifier.NotifyRunComplete(context.Background(), RunSummary{RunID: "run-789"})
}
