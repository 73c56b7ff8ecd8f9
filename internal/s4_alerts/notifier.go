package s4_alerts

import (
	"context"
	"fmt"
	"io"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/pkg/httputil"
	"github.com/wonny/dqpipe/backend/pkg/logger"
)

// WebhookNotifier posts fired alerts as JSON to a webhook.
// Throttling and retry live on the httputil client.
type WebhookNotifier struct {
	client *httputil.Client
	url    string
	logger *logger.Logger
}

// NewWebhookNotifier creates a notifier
func NewWebhookNotifier(client *httputil.Client, url string, log *logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		client: client,
		url:    url,
		logger: log,
	}
}

// webhookPayload is the posted body
type webhookPayload struct {
	IngestDate  string                `json:"ingest_date"`
	MaxSeverity contracts.Severity    `json:"max_severity"`
	Flags       []contracts.AlertFlag `json:"flags"`
}

// Notify posts the alert when at least one flag fired
func (n *WebhookNotifier) Notify(ctx context.Context, alert *contracts.Alert) error {
	if alert == nil || !alert.HasFlags() {
		return nil
	}

	resp, err := n.client.PostJSON(ctx, n.url, webhookPayload{
		IngestDate:  alert.IngestDate,
		MaxSeverity: alert.MaxSeverity(),
		Flags:       alert.Flags,
	})
	if err != nil {
		return fmt.Errorf("post alert webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	n.logger.WithFields(map[string]interface{}{
		"ingest_date": alert.IngestDate,
		"flags":       len(alert.Flags),
		"severity":    alert.MaxSeverity(),
	}).Info("Alert notification sent")

	return nil
}

// NopNotifier drops every alert (no webhook configured)
type NopNotifier struct{}

// Notify does nothing
func (NopNotifier) Notify(context.Context, *contracts.Alert) error { return nil }
