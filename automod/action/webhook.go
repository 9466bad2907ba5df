package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// webhookBody is the JSON document posted for every dispatch.
type webhookBody struct {
	Kind string `json:"kind"`
	*Dispatch
}

// WebhookSink posts every dispatch as JSON to an external executor, which is responsible for the moderation call and audit logging.
//
// Receivers should de-duplicate on the "key" field. Requests are rate limited; Execute blocks until the limiter allows a request or ctx is done.
type WebhookSink struct {
	URL     string
	Client  *http.Client
	Limiter *rate.Limiter
	// sent as a bearer token when set
	Token string
}

var _ Sink = (*WebhookSink)(nil)

// NewWebhookSink allows rps requests per second on average, with bursts of up to burst requests.
func NewWebhookSink(url string, client *http.Client, rps float64, burst int) *WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookSink{
		URL:     url,
		Client:  client,
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (s *WebhookSink) Execute(ctx context.Context, d *Dispatch) error {
	body, err := json.Marshal(webhookBody{Kind: d.Action.Kind(), Dispatch: d})
	if err != nil {
		return err
	}
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", d.Key)
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// 409 is how executors report a duplicate key
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("action webhook POST failed: status=%d", resp.StatusCode)
	}
	return nil
}
