package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/akmatori/incidentsync/internal/etl"
	"github.com/akmatori/incidentsync/internal/utils"
)

const (
	// maxListedFailures caps the failure lines in one message
	maxListedFailures = 20
	maxErrorLen       = 200
)

// Notifier posts org sync failures to a Slack incoming webhook
type Notifier struct {
	webhookURL string
	logger     *slog.Logger
}

// NewNotifier creates a notifier; an empty webhook URL disables it
func NewNotifier(webhookURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{webhookURL: webhookURL, logger: logger}
}

// Enabled returns true if a webhook URL is configured
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// NotifySyncFailures posts one message listing the failed providers and services of a pass
func (n *Notifier) NotifySyncFailures(ctx context.Context, summary *etl.SyncSummary) error {
	if !n.Enabled() || !summary.HasFailures() {
		return nil
	}

	if err := slack.PostWebhookContext(ctx, n.webhookURL, BuildFailureMessage(summary)); err != nil {
		return fmt.Errorf("failed to post slack webhook: %w", err)
	}
	n.logger.Debug("Posted sync failure notification", slog.String("org_id", summary.OrgID))
	return nil
}

// BuildFailureMessage renders the failed units of a summary
func BuildFailureMessage(summary *etl.SyncSummary) *slack.WebhookMessage {
	counts := summary.Counts()

	var lines []string
	if summary.Err != nil {
		lines = append(lines, fmt.Sprintf("• %s", utils.TruncateText(summary.Err.Error(), maxErrorLen)))
	}
	for _, p := range summary.Providers {
		if p.Err != nil {
			lines = append(lines, fmt.Sprintf("• *%s*: %s", p.Provider, utils.TruncateText(p.Err.Error(), maxErrorLen)))
			continue
		}
		for _, svc := range p.FailedServices() {
			lines = append(lines, fmt.Sprintf("• *%s* / `%s`: %s", p.Provider, svc.ServiceKey, utils.TruncateText(svc.Err.Error(), maxErrorLen)))
		}
	}
	if len(lines) > maxListedFailures {
		extra := len(lines) - maxListedFailures
		lines = append(lines[:maxListedFailures], fmt.Sprintf("…and %d more", extra))
	}

	return &slack.WebhookMessage{
		Text: fmt.Sprintf("Incident sync for org %s finished with failures", summary.OrgID),
		Attachments: []slack.Attachment{{
			Color: "danger",
			Text:  strings.Join(lines, "\n"),
			Fields: []slack.AttachmentField{
				{Title: "Failed providers", Value: fmt.Sprint(counts.ProvidersFailed), Short: true},
				{Title: "Failed services", Value: fmt.Sprint(counts.ServicesFailed), Short: true},
				{Title: "Synced services", Value: fmt.Sprint(counts.ServicesSucceeded), Short: true},
				{Title: "Incidents", Value: fmt.Sprint(counts.IncidentsSynced), Short: true},
			},
			Footer: fmt.Sprintf("started %s", summary.StartedAt.Format("2006-01-02 15:04:05 MST")),
		}},
	}
}
