// reminder-receiver is a development endpoint for garryos reminder webhooks.
// It prints each delivery, verifies the HMAC signature when SECRET is set,
// and exposes counters for test scripts.
//
// Usage:
//
//	ADDR=:9000 SECRET=dev-secret go run .
//
// then point WEBHOOK_URL at http://localhost:9000/hook.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type reminder struct {
	TriggerID      string `json:"trigger_id"`
	CalendarItemID string `json:"calendar_item_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	UserID         string `json:"user_id"`
	FiredAt        string `json:"fired_at"`
}

type delivery struct {
	Timestamp string   `json:"timestamp"`
	TriggerID string   `json:"trigger_id"`
	EventID   string   `json:"event_id"`
	Verified  *bool    `json:"verified,omitempty"`
	Reminder  reminder `json:"reminder"`
}

type stats struct {
	Count          int64      `json:"count"`
	BadSignatures  int64      `json:"bad_signatures"`
	LastDeliveries []delivery `json:"last_deliveries"`
	Since          string     `json:"since"`
}

var (
	mu             sync.Mutex
	count          int64
	badSignatures  int64
	lastDeliveries []delivery
	since          time.Time
	maxStored      = 50
	secret         string
)

func main() {
	since = time.Now().UTC()
	secret = os.Getenv("SECRET")

	addr := ":8080"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	if secret == "" {
		log.Println("reminder-receiver: SECRET not set; signatures will not be verified")
	}

	http.HandleFunc("/hook", hookHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		badSignatures = 0
		lastDeliveries = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("reminder-receiver listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func hookHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	var verified *bool
	if secret != "" {
		ok := verifySignature(secret, body, r.Header.Get("X-GarryOS-Signature"))
		verified = &ok
		if !ok {
			mu.Lock()
			badSignatures++
			mu.Unlock()
			log.Printf("hook REJECTED: bad signature (trigger=%s)", r.Header.Get("X-GarryOS-Trigger-ID"))
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, `{"error":"bad signature"}`)
			return
		}
	}

	var rem reminder
	if err := json.Unmarshal(body, &rem); err != nil {
		log.Printf("hook received unparseable body: %s", string(body))
	}

	d := delivery{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		TriggerID: r.Header.Get("X-GarryOS-Trigger-ID"),
		EventID:   r.Header.Get("X-GarryOS-Event-ID"),
		Verified:  verified,
		Reminder:  rem,
	}

	mu.Lock()
	count++
	lastDeliveries = append(lastDeliveries, d)
	if len(lastDeliveries) > maxStored {
		lastDeliveries = lastDeliveries[len(lastDeliveries)-maxStored:]
	}
	current := count
	mu.Unlock()

	log.Printf("hook received #%d: %q (item=%s, fired_at=%s)", current, rem.Title, rem.CalendarItemID, rem.FiredAt)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"received":%d}`, current)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:          count,
		BadSignatures:  badSignatures,
		LastDeliveries: lastDeliveries,
		Since:          since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		log.Printf("stats encode error: %v", err)
	}
}

// verifySignature mirrors the sender: hex HMAC-SHA256 over the raw body.
func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
