package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertImportFailureRate AlertType = "import_failure_rate"
	AlertLinkWarningRate   AlertType = "link_warning_rate"
	AlertStaleRuns         AlertType = "stale_runs"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Rate alerts need at least MinFinishedRuns finished runs.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	finished := snap.Finished()

	if finished >= a.cfg.MinFinishedRuns && finished > 0 {
		if snap.FailRate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertImportFailureRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"Import failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
					snap.FailRate*100, a.cfg.FailureRateThreshold*100,
					snap.RunsFailed, finished, snap.LookbackHours,
				),
				Details: map[string]any{
					"failure_rate": snap.FailRate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       snap.RunsFailed,
					"finished":     finished,
				},
				Timestamp: now,
			})
		}

		if snap.WarningRate > a.cfg.WarningRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertLinkWarningRate,
				Severity: "medium",
				Message: fmt.Sprintf(
					"%.1f%% of imports finished with link failures or drift (threshold %.1f%%, last %dh)",
					snap.WarningRate*100, a.cfg.WarningRateThreshold*100, snap.LookbackHours,
				),
				Details: map[string]any{
					"warning_rate": snap.WarningRate,
					"threshold":    a.cfg.WarningRateThreshold,
					"warnings":     snap.RunsWarnings,
					"finished":     finished,
				},
				Timestamp: now,
			})
		}
	}

	if snap.RunsStale > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStaleRuns,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d import run(s) still running after %d minutes",
				snap.RunsStale, a.cfg.StaleRunMinutes,
			),
			Details: map[string]any{
				"stale":   snap.RunsStale,
				"running": snap.RunsRunning,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
