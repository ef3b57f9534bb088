package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-exchange-client/internal/model"
)

// Channel metadata shared by every alert notification.
const (
	ChannelID         = "p2p_offer_alerts"
	ChannelImportance = "high"
)

// Notification describes one alert match. Notifications with the same Key
// replace each other instead of stacking.
type Notification struct {
	Key        string
	ChannelID  string
	Importance string
	AlertName  string
	Comparison model.RateComparison
	TargetRate decimal.Decimal
	Offer      model.Offer
	MatchedAt  time.Time
}

// NewNotification builds the notification for alert matching offer.
func NewNotification(alert model.Alert, offer model.Offer, at time.Time) Notification {
	return Notification{
		Key:        fmt.Sprintf("%d", alert.ID),
		ChannelID:  ChannelID,
		Importance: ChannelImportance,
		AlertName:  alert.Name,
		Comparison: alert.RateComparison,
		TargetRate: alert.TargetRate,
		Offer:      offer,
		MatchedAt:  at,
	}
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes notifications through the Telegram Bot API. A
// repeated key edits the previously sent message.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger

	mu       sync.Mutex
	messages map[string]int64
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
		messages: make(map[string]int64),
	}
}

// Notify sends a new message, or edits the one already sent for note.Key.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	text := renderMessage(note)

	n.mu.Lock()
	messageID, seen := n.messages[note.Key]
	n.mu.Unlock()

	if seen {
		err := n.call(ctx, "editMessageText", map[string]any{
			"chat_id":    n.chatID,
			"message_id": messageID,
			"text":       text,
		}, nil)
		if err == nil {
			n.logger.Info().Str("key", note.Key).Int64("message_id", messageID).Msg("alert message updated (Telegram)")
			return nil
		}
		// the old message may have been deleted; fall back to a fresh one
		n.logger.Warn().Err(err).Str("key", note.Key).Msg("edit telegram message")
	}

	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	if err := n.call(ctx, "sendMessage", map[string]any{
		"chat_id": n.chatID,
		"text":    text,
	}, &sent); err != nil {
		return err
	}

	if note.Key != "" && sent.MessageID != 0 {
		n.mu.Lock()
		n.messages[note.Key] = sent.MessageID
		n.mu.Unlock()
	}

	n.logger.Info().Str("key", note.Key).
		Str("offer", note.Offer.UUID).
		Str("channel", note.ChannelID).
		Msg("alert sent (Telegram)")
	return nil
}

func (n *TelegramNotifier) call(ctx context.Context, method string, payload map[string]any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram %s returned status %d", method, resp.StatusCode)
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s returned ok=false: %s", method, envelope.Description)
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode telegram result: %w", err)
		}
	}
	return nil
}

// LogNotifier writes notifications to the log. It is the fallback channel
// when nothing else is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the match.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Info().
		Str("key", note.Key).
		Str("channel", note.ChannelID).
		Str("importance", note.Importance).
		Str("alert", note.AlertName).
		Str("offer", note.Offer.UUID).
		Str("coin", note.Offer.Coin).
		Str("type", string(note.Offer.Type)).
		Str("amount", note.Offer.Amount).
		Str("rate", note.Offer.Receive).
		Msg("offer alert matched")
	return nil
}

func renderMessage(note Notification) string {
	o := note.Offer
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[P2P Alert] %s\n", note.AlertName))
	builder.WriteString(fmt.Sprintf("%s %s %s\n", strings.ToUpper(string(o.Type)), o.Amount, o.Coin))
	builder.WriteString(fmt.Sprintf("Rate: %s (%s %s)\n", o.Receive, note.Comparison, note.TargetRate.String()))
	if o.Owner != nil && o.Owner.Username != "" {
		builder.WriteString(fmt.Sprintf("Trader: %s\n", o.Owner.Username))
	}
	if o.OnlyKYC.IsSet() {
		builder.WriteString("KYC only\n")
	}
	if o.OnlyVIP.IsSet() {
		builder.WriteString("VIP only\n")
	}
	builder.WriteString(fmt.Sprintf("Offer: %s\n", o.UUID))
	if !note.MatchedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("At: %s UTC", note.MatchedAt.UTC().Format(time.RFC3339)))
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
