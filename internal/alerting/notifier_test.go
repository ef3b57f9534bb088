package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-exchange-client/internal/model"
)

func testNotification(key string) Notification {
	return NewNotification(
		model.Alert{ID: 1, Name: "cheap btc", TargetRate: decimal.NewFromInt(50), RateComparison: model.CompareGreater},
		model.Offer{UUID: "o-" + key, Type: model.OfferTypeSell, Coin: "BTC", Amount: "20", Receive: "55"},
		time.Now(),
	)
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Fatalf("path should end with sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": 11}})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification("1")); err != nil {
		t.Fatalf("Telegram Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	text, _ := received["text"].(string)
	if !strings.Contains(text, "cheap btc") || !strings.Contains(text, "Rate: 55") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification("1")); err == nil {
		t.Fatal("ok=false should fail")
	}
}

func TestTelegramNotifierCoalescesByKey(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
		edited  float64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		defer mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			methods = append(methods, "send")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": 77}})
		case strings.HasSuffix(r.URL.Path, "/editMessageText"):
			methods = append(methods, "edit")
			edited, _ = body["message_id"].(float64)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	ctx := context.Background()
	note := testNotification("a")
	if err := notifier.Notify(ctx, note); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	if err := notifier.Notify(ctx, note); err != nil {
		t.Fatalf("second notify: %v", err)
	}

	other := note
	other.Key = "2"
	if err := notifier.Notify(ctx, other); err != nil {
		t.Fatalf("other key notify: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(methods, ",") != "send,edit,send" {
		t.Fatalf("unexpected call sequence %v", methods)
	}
	if edited != 77 {
		t.Fatalf("edit should target message 77, got %v", edited)
	}
}

func TestTelegramNotifierFallsBackWhenEditFails(t *testing.T) {
	var sends int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/editMessageText") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		sends++
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": sends}})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	note := testNotification("a")
	for i := 0; i < 2; i++ {
		if err := notifier.Notify(context.Background(), note); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}
	if sends != 2 {
		t.Fatalf("expected a fresh send after failed edit, got %d sends", sends)
	}
}

func TestNewNotificationUsesAlertKey(t *testing.T) {
	note := NewNotification(model.Alert{ID: 42}, model.Offer{}, time.Time{})
	if note.Key != "42" || note.ChannelID != ChannelID || note.Importance != ChannelImportance {
		t.Fatalf("unexpected notification %+v", note)
	}
	if err := NewLogNotifier(testLogger()).Notify(context.Background(), note); err != nil {
		t.Fatalf("log notifier should not fail: %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
