// internal/notify/notify.go

// Package notify publishes run-completion summaries over SNS and email.
package notify

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"credit-audit/internal/common/aws"
	"credit-audit/internal/common/config"
	"credit-audit/internal/common/logger"
)

// RunSummary is the notification payload for one finished run.
type RunSummary struct {
	RunID    string
	Duration time.Duration
	Modules  []string
	Failed   []string
}

// Notifier fans a run summary out to the configured channels. Either client
// may be nil; the corresponding channel is skipped.
type Notifier struct {
	cfg config.NotificationConfig
	sns *aws.SNSClient
	ses *aws.SESClient
	log logger.Logger
}

func New(cfg config.NotificationConfig, snsClient *aws.SNSClient, sesClient *aws.SESClient, log logger.Logger) *Notifier {
	return &Notifier{cfg: cfg, sns: snsClient, ses: sesClient, log: log}
}

// NotifyRunComplete sends the summary. Notification failures are logged and
// swallowed: a finished audit never fails because of its announcement.
func (n *Notifier) NotifyRunComplete(ctx context.Context, summary RunSummary) {
	message := formatSummary(summary)

	if n.sns != nil && n.cfg.TopicARN != "" {
		_, err := n.sns.Publish(ctx, &sns.PublishInput{
			TopicArn: awssdk.String(n.cfg.TopicARN),
			Subject:  awssdk.String(fmt.Sprintf("Audit run %s complete", summary.RunID)),
			Message:  awssdk.String(message),
		})
		if err != nil {
			n.log.Warn("SNS notification failed", map[string]interface{}{
				"run_id": summary.RunID,
				"error":  err.Error(),
			})
		}
	}

	if n.ses != nil && n.cfg.EmailTo != "" {
		_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
			Source: awssdk.String(n.cfg.EmailFrom),
			Destination: &sestypes.Destination{
				ToAddresses: []string{n.cfg.EmailTo},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{
					Data: awssdk.String(fmt.Sprintf("Audit run %s complete", summary.RunID)),
				},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: awssdk.String(message)},
				},
			},
		})
		if err != nil {
			n.log.Warn("Email notification failed", map[string]interface{}{
				"run_id": summary.RunID,
				"error":  err.Error(),
			})
		}
	}
}

func formatSummary(summary RunSummary) string {
	msg := fmt.Sprintf("Audit run %s finished in %s.\nModules: %v\n",
		summary.RunID, summary.Duration.Round(time.Second), summary.Modules)
	if len(summary.Failed) > 0 {
		msg += fmt.Sprintf("Failed modules: %v\n", summary.Failed)
	}
	return msg
}
