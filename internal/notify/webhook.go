package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cgarryZA/garryOS/internal/metrics"
)

// WebhookRequest carries one reminder delivery attempt.
type WebhookRequest struct {
	URL       string
	Secret    string
	Timeout   time.Duration
	Payload   WebhookPayload
	AttemptID string
}

// WebhookPayload is the reminder body posted for a fired trigger.
type WebhookPayload struct {
	TriggerID      string `json:"trigger_id"`
	CalendarItemID string `json:"calendar_item_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	UserID         string `json:"user_id"`
	FiredAt        string `json:"fired_at"`
}

type WebhookResult struct {
	StatusCode int
	Error      error
	Duration   time.Duration
}

func (r WebhookResult) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRetryable reports whether another attempt could help. Transport errors,
// 429 and 5xx are retryable; any other 4xx means the receiver rejected the
// reminder itself and retrying would just repeat the rejection.
func (r WebhookResult) IsRetryable() bool {
	if r.Error != nil {
		return true
	}
	if r.StatusCode == 429 {
		return true
	}
	return r.StatusCode >= 500
}

// StatusClass buckets the result for attempt metrics.
func (r WebhookResult) StatusClass() string {
	return metrics.ClassifyStatus(r.StatusCode, r.Error)
}

type HTTPWebhookSender struct {
	client *http.Client
}

func NewHTTPWebhookSender() *HTTPWebhookSender {
	return &HTTPWebhookSender{
		client: &http.Client{},
	}
}

// Send posts the reminder payload with HMAC signature.
// Headers: X-GarryOS-Event-ID (attempt), X-GarryOS-Trigger-ID, X-GarryOS-Signature
func (s *HTTPWebhookSender) Send(ctx context.Context, req WebhookRequest) WebhookResult {
	start := time.Now()

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return WebhookResult{Error: fmt.Errorf("marshal: %w", err), Duration: time.Since(start)}
	}

	signature := computeSignature(req.Secret, body)

	timeout := req.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return WebhookResult{Error: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-GarryOS-Event-ID", req.AttemptID)
	httpReq.Header.Set("X-GarryOS-Trigger-ID", req.Payload.TriggerID)
	httpReq.Header.Set("X-GarryOS-Signature", signature)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return WebhookResult{Error: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	return WebhookResult{StatusCode: resp.StatusCode, Duration: time.Since(start)}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature lets receivers verify incoming reminder webhooks.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
