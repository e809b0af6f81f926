package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"DiveHouse/internal/model"
)

// Notifier delivers engine events to an off-process observer.
type Notifier interface {
	Notify(ctx context.Context, evt *model.Event)
}

// WebhookNotifier POSTs events as JSON to a configured URL.
type WebhookNotifier struct {
	URL        string
	MaxRetries int
	Client     *http.Client
}

// NewWebhookNotifier creates a notifier for the given endpoint.
func NewWebhookNotifier(url string, maxRetries int) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		MaxRetries: maxRetries,
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Notify delivers an event with retries. Delivery is best-effort: the
// transition that produced the event has already been committed, so a
// failure here is logged and dropped, never propagated.
func (w *WebhookNotifier) Notify(ctx context.Context, evt *model.Event) {
	if err := w.sendWithRetry(ctx, evt); err != nil {
		log.Printf("[ERROR] webhook delivery failed for %s: %v", evt.Type, err)
	}
}

func (w *WebhookNotifier) send(evt *model.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	resp, err := w.Client.Post(w.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// sendWithRetry delivers the event with exponential backoff.
func (w *WebhookNotifier) sendWithRetry(ctx context.Context, evt *model.Event) error {
	var lastErr error
	for i := 0; i <= w.MaxRetries; i++ {
		if err := w.send(evt); err != nil {
			lastErr = err
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Printf("[WARN] webhook send failed (attempt %d/%d): %v, retrying in %v", i+1, w.MaxRetries+1, err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", w.MaxRetries+1, lastErr)
}

// NoopNotifier drops every event. Used when no webhook URL is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, *model.Event) {}
