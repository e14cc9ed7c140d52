package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradingcore/engine/types"
)

// format is exercised directly (rather than through Publish, which needs a
// live Telegram API client) since it holds all the event-type branching
// this package is responsible for getting right.
func TestFormatRendersKnownEventTypes(t *testing.T) {
	sink := &TelegramSink{}

	cases := []struct {
		name     string
		event    types.OutboxEvent
		contains string
	}{
		{
			name: "order sent",
			event: types.OutboxEvent{
				EventType: types.EventOrderSent,
				Payload:   map[string]string{"symbol": "005930", "side": "BUY"},
			},
			contains: "ORDER SENT",
		},
		{
			name: "fill received",
			event: types.OutboxEvent{
				EventType: types.EventFillReceived,
				Payload:   map[string]string{"symbol": "005930", "fillQty": "10"},
			},
			contains: "FILL RECEIVED",
		},
		{
			name: "kill switch toggled",
			event: types.OutboxEvent{
				EventType: types.EventKillSwitchToggled,
				Payload:   map[string]string{"accountId": "acct-1", "state": "ON", "reason": "manual halt"},
			},
			contains: "KILL SWITCH TOGGLED",
		},
		{
			name: "unknown event type falls back to generic rendering",
			event: types.OutboxEvent{
				EventType: "SOMETHING_NEW",
				Payload:   map[string]string{"foo": "bar"},
			},
			contains: "SOMETHING_NEW",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sink.format(tc.event)
			assert.True(t, strings.Contains(got, tc.contains), "got: %s", got)
		})
	}
}

func TestFormatPnlSignsNegativeValuesWithoutDoublingMinus(t *testing.T) {
	sink := &TelegramSink{}
	got := sink.format(types.OutboxEvent{
		EventType: types.EventPnlUpdated,
		Payload:   map[string]string{"symbol": "005930", "realizedPnl": "-500"},
	})
	assert.True(t, strings.Contains(got, "realized: *-500*"), "got: %s", got)
}

func TestWriteFieldSkipsEmptyValues(t *testing.T) {
	var b strings.Builder
	writeField(&b, "rejectReason", map[string]string{"rejectReason": ""})
	assert.Equal(t, "", b.String())
}
