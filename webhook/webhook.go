package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventScraped = "contributions.scraped"
	EventFailed  = "contributions.failed"

	SignatureHeader = "X-Pledgescope-Signature"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// NewEvent stamps an event with a fresh run id and the current time.
func NewEvent(typ string, data any) *Event {
	return &Event{
		Type:      typ,
		RunID:     uuid.New().String(),
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

// ScrapeSummary is the data of a contributions.scraped event.
type ScrapeSummary struct {
	Source       string `json:"source"`
	Total        int    `json:"total"`
	Contributors int    `json:"contributors"`
	Layout       string `json:"layout,omitempty"`
	ElapsedMs    int64  `json:"elapsed_ms"`
}

// Failure is the data of a contributions.failed event.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier posts events to a single endpoint.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
	wg     sync.WaitGroup
}

// New returns a Notifier for url. Bodies are signed when secret is non-empty.
func New(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Deliver sends an event synchronously.
// Header: X-Pledgescope-Signature: sha256=<hex>
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pledgescope-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify sends an event in the background, retrying after 1s, 5s and 30s.
func (n *Notifier) Notify(event *Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"event", event.Type,
					"run_id", event.RunID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
			"run_id", event.RunID,
		)
	}()
}

// Wait blocks until pending deliveries finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
