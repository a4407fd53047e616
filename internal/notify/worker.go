package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/riverqueue/river"
)

// DeliverNotificationWorker POSTs queued notifications to the external
// transport webhook. Delivery is best-effort: failures are logged and left
// to River's bounded retry, and never propagate back into the workflow
// that enqueued them.
type DeliverNotificationWorker struct {
	river.WorkerDefaults[DeliverNotificationArgs]
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

func NewDeliverNotificationWorker(webhookURL string, log *slog.Logger) *DeliverNotificationWorker {
	if log == nil {
		log = slog.Default()
	}
	return &DeliverNotificationWorker{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (w *DeliverNotificationWorker) Work(ctx context.Context, job *river.Job[DeliverNotificationArgs]) error {
	args := job.Args

	if w.webhookURL == "" {
		w.log.Warn("notification transport not configured, dropping",
			"recipient_id", args.RecipientID, "type", args.Type)
		return nil
	}

	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Warn("notification delivery failed",
			"recipient_id", args.RecipientID, "type", args.Type, "error", err)
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.log.Warn("notification transport returned non-2xx",
			"recipient_id", args.RecipientID, "type", args.Type, "status", resp.StatusCode)
		return fmt.Errorf("notification transport returned status %d", resp.StatusCode)
	}
	return nil
}
