// Package notify implements outbox.Sink delivery channels. TelegramSink is
// grounded on the teacher's bot.TelegramBot: same tgbotapi client, same
// Markdown-formatted message style with emoji headers and a divider line,
// same fire-and-log-don't-panic send helper — but driven by the
// transactional outbox's canonical event types (spec §4.7, §6) instead of
// a bespoke set of Notify* methods called ad hoc from trading code.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tradingcore/engine/types"
)

// TelegramSink delivers outbox events as Markdown-formatted Telegram
// messages to one configured chat.
type TelegramSink struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegramSink connects to the Telegram Bot API with token and targets
// chatID for every notification.
func NewTelegramSink(token string, chatID int64, log zerolog.Logger) (*TelegramSink, error) {
	if token == "" {
		return nil, fmt.Errorf("notify: telegram bot token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create telegram bot: %w", err)
	}
	return &TelegramSink{
		api:    api,
		chatID: chatID,
		log:    log.With().Str("component", "notify.TelegramSink").Logger(),
	}, nil
}

// Publish implements outbox.Sink. Unknown event types fall back to a
// generic rendering rather than erroring, so a new event type introduced
// elsewhere never breaks the publisher's retry/dead-letter accounting.
func (s *TelegramSink) Publish(ctx context.Context, event types.OutboxEvent) error {
	msg := s.format(event)
	out := tgbotapi.NewMessage(s.chatID, msg)
	out.ParseMode = "Markdown"
	if _, err := s.api.Send(out); err != nil {
		return fmt.Errorf("notify: send telegram message: %w", err)
	}
	return nil
}

func (s *TelegramSink) format(event types.OutboxEvent) string {
	switch event.EventType {
	case types.EventOrderSent:
		return formatOrderLifecycle("✅ ORDER SENT", event)
	case types.EventOrderRejected:
		return formatOrderLifecycle("\U0001F6D1 ORDER REJECTED", event)
	case types.EventOrderError:
		return formatOrderLifecycle("⚠️ ORDER ERROR", event)
	case types.EventOrderCancelled:
		return formatOrderLifecycle("\U0001F6AB ORDER CANCELLED", event)
	case types.EventOrderModified:
		return formatOrderLifecycle("✏️ ORDER MODIFIED", event)
	case types.EventFillReceived:
		return s.formatFill(event)
	case types.EventPositionUpdated:
		return s.formatPosition(event)
	case types.EventPnlUpdated:
		return s.formatPnl(event)
	case types.EventSignalGenerated:
		return s.formatSignal(event)
	case types.EventTokenRefreshed:
		return fmt.Sprintf("\U0001F511 *TOKEN REFRESHED*\n\naccount: `%s`", event.Payload["accountId"])
	case types.EventKillSwitchToggled:
		return s.formatKillSwitch(event)
	default:
		return s.formatGeneric(event)
	}
}

func formatOrderLifecycle(header string, event types.OutboxEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n━━━━━━━━━━━━\n", header)
	writeField(&b, "symbol", event.Payload)
	writeField(&b, "side", event.Payload)
	writeField(&b, "qty", event.Payload)
	writeField(&b, "price", event.Payload)
	writeField(&b, "orderId", event.Payload)
	writeField(&b, "rejectReason", event.Payload)
	return b.String()
}

func (s *TelegramSink) formatFill(event types.OutboxEvent) string {
	var b strings.Builder
	b.WriteString("\U0001F4E5 *FILL RECEIVED*\n━━━━━━━━━━━━\n")
	writeField(&b, "symbol", event.Payload)
	writeField(&b, "side", event.Payload)
	writeField(&b, "fillQty", event.Payload)
	writeField(&b, "fillPrice", event.Payload)
	return b.String()
}

func (s *TelegramSink) formatPosition(event types.OutboxEvent) string {
	var b strings.Builder
	b.WriteString("\U0001F4BC *POSITION UPDATED*\n━━━━━━━━━━━━\n")
	writeField(&b, "symbol", event.Payload)
	writeField(&b, "qty", event.Payload)
	writeField(&b, "avgPrice", event.Payload)
	return b.String()
}

func (s *TelegramSink) formatPnl(event types.OutboxEvent) string {
	pnl := event.Payload["realizedPnl"]
	sign := "+"
	if strings.HasPrefix(pnl, "-") {
		sign = ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\U0001F4C8 *PNL UPDATED*\n━━━━━━━━━━━━\n")
	writeField(&b, "symbol", event.Payload)
	fmt.Fprintf(&b, "realized: *%s%s*\n", sign, pnl)
	return b.String()
}

func (s *TelegramSink) formatSignal(event types.OutboxEvent) string {
	var b strings.Builder
	b.WriteString("\U0001F3AF *SIGNAL GENERATED*\n━━━━━━━━━━━━\n")
	writeField(&b, "strategyId", event.Payload)
	writeField(&b, "symbol", event.Payload)
	writeField(&b, "signalType", event.Payload)
	writeField(&b, "reason", event.Payload)
	return b.String()
}

func (s *TelegramSink) formatKillSwitch(event types.OutboxEvent) string {
	var b strings.Builder
	b.WriteString("\U0001F6A8 *KILL SWITCH TOGGLED*\n━━━━━━━━━━━━\n")
	writeField(&b, "accountId", event.Payload)
	writeField(&b, "state", event.Payload)
	writeField(&b, "reason", event.Payload)
	return b.String()
}

func (s *TelegramSink) formatGeneric(event types.OutboxEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\U0001F4CC *%s*\n━━━━━━━━━━━━\n", event.EventType)
	for k, v := range event.Payload {
		fmt.Fprintf(&b, "%s: `%s`\n", k, v)
	}
	return b.String()
}

func writeField(b *strings.Builder, key string, payload map[string]string) {
	if v, ok := payload[key]; ok && v != "" {
		fmt.Fprintf(b, "%s: *%s*\n", key, v)
	}
}
