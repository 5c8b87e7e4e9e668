package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cgarryZA/garryOS/internal/metrics"
)

func TestHTTPWebhookSender_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPWebhookSender()
	result := sender.Send(context.Background(), WebhookRequest{
		URL:       server.URL,
		Secret:    "test-secret",
		Timeout:   5 * time.Second,
		AttemptID: "attempt-1",
		Payload: WebhookPayload{
			TriggerID:      "trig-1",
			CalendarItemID: "item-1",
			Title:          "Water the plants",
			FiredAt:        "2026-08-29T10:00:00Z",
		},
	})

	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if result.StatusCode != 200 {
		t.Errorf("expected status 200, got %d", result.StatusCode)
	}
	if result.Duration <= 0 {
		t.Error("duration should be positive")
	}
}

func TestHTTPWebhookSender_RequestHeadersAndSignature(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPWebhookSender()
	sender.Send(context.Background(), WebhookRequest{
		URL:       server.URL,
		Secret:    "my-secret",
		Timeout:   5 * time.Second,
		AttemptID: "attempt-123",
		Payload: WebhookPayload{
			TriggerID:      "trig-456",
			CalendarItemID: "item-789",
			Title:          "Submit essay",
			FiredAt:        "2026-08-29T10:00:00Z",
		},
	})

	if ct := gotHeaders.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if id := gotHeaders.Get("X-GarryOS-Event-ID"); id != "attempt-123" {
		t.Errorf("X-GarryOS-Event-ID = %q, want attempt-123", id)
	}
	if id := gotHeaders.Get("X-GarryOS-Trigger-ID"); id != "trig-456" {
		t.Errorf("X-GarryOS-Trigger-ID = %q, want trig-456", id)
	}

	sig := gotHeaders.Get("X-GarryOS-Signature")
	if sig == "" {
		t.Fatal("X-GarryOS-Signature should not be empty")
	}
	if !VerifySignature("my-secret", gotBody, sig) {
		t.Error("signature does not verify against body")
	}
	if VerifySignature("wrong-secret", gotBody, sig) {
		t.Error("signature verified with wrong secret")
	}

	var payload WebhookPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if payload.TriggerID != "trig-456" || payload.Title != "Submit essay" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestWebhookResult_Classification(t *testing.T) {
	tests := []struct {
		name        string
		result      WebhookResult
		success     bool
		retryable   bool
		statusClass string
	}{
		{"200 ok", WebhookResult{StatusCode: 200}, true, false, metrics.StatusClass2xx},
		{"204 ok", WebhookResult{StatusCode: 204}, true, false, metrics.StatusClass2xx},
		{"400 rejected", WebhookResult{StatusCode: 400}, false, false, metrics.StatusClass4xx},
		{"404 rejected", WebhookResult{StatusCode: 404}, false, false, metrics.StatusClass4xx},
		{"429 throttled", WebhookResult{StatusCode: 429}, false, true, metrics.StatusClass4xx},
		{"500 server error", WebhookResult{StatusCode: 500}, false, true, metrics.StatusClass5xx},
		{"503 server error", WebhookResult{StatusCode: 503}, false, true, metrics.StatusClass5xx},
		{"transport error", WebhookResult{Error: errors.New("dial tcp: connection refused")},
			false, true, metrics.StatusClassConnectionError},
		{"timeout", WebhookResult{Error: errors.New("context deadline exceeded")},
			false, true, metrics.StatusClassTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsSuccess(); got != tt.success {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.success)
			}
			if got := tt.result.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := tt.result.StatusClass(); got != tt.statusClass {
				t.Errorf("StatusClass() = %q, want %q", got, tt.statusClass)
			}
		})
	}
}

func TestHTTPWebhookSender_ConnectionError(t *testing.T) {
	sender := NewHTTPWebhookSender()
	result := sender.Send(context.Background(), WebhookRequest{
		URL:     "http://127.0.0.1:1", // nothing listens here
		Timeout: time.Second,
		Payload: WebhookPayload{TriggerID: "trig-1"},
	})
	if result.Error == nil {
		t.Fatal("expected connection error")
	}
}
