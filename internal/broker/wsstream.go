// WSStream is the concrete BrokerStream implementation: a gorilla/websocket
// connection to the brokerage's real-time fill/tick feed, grounded on the
// teacher pack's WSFeed (0xtitan6-polymarket-mm/internal/exchange/ws.go) —
// one connection, a subscribed-symbol set re-sent on every (re)connect, and
// a read loop that decodes each frame into the narrow StreamMessage shape
// BrokerStream promises. Reconnect/backoff and heartbeat are the caller's
// job (StreamRunner in reconnect.go); WSStream only owns the raw socket.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/types"
)

const wsWriteTimeout = 10 * time.Second

// WSStream implements BrokerStream over one gorilla/websocket connection.
type WSStream struct {
	url string

	mu          sync.Mutex
	conn        *websocket.Conn
	subscribed  map[string]bool
	accessToken string
}

// NewWSStream creates a stream client for the brokerage's websocket feed
// URL. accessToken is sent as part of the subscribe frame (the feed this
// is grounded on authenticates per-subscription rather than per-connection).
func NewWSStream(url string, accessToken string) *WSStream {
	return &WSStream{url: url, subscribed: make(map[string]bool), accessToken: accessToken}
}

type wireEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireFill struct {
	BrokerOrderNo string `json:"brokerOrderNo"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	FillPrice     string `json:"fillPrice"`
	FillQty       int64  `json:"fillQty"`
	FillTimestamp int64  `json:"fillTimestampMs"`
}

type wireTick struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestampMs"`
}

type subscribeFrame struct {
	Type        string   `json:"type"`
	Symbols     []string `json:"symbols"`
	AccessToken string   `json:"accessToken,omitempty"`
}

// Connect dials the feed and starts a read loop that decodes frames into
// StreamMessage, delivered on the returned channel. ctx governs only the
// dial; the channel closes when the connection drops, not when ctx is
// cancelled. The caller (StreamRunner) is responsible for reconnecting.
func (s *WSStream) Connect(ctx context.Context) (<-chan StreamMessage, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("broker: dial websocket: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	symbols := subscribedSymbols(s.subscribed)
	s.mu.Unlock()

	if len(symbols) > 0 {
		if err := s.sendSubscribe(symbols); err != nil {
			conn.Close()
			return nil, err
		}
	}

	out := make(chan StreamMessage, 256)
	go s.readLoop(conn, out)
	return out, nil
}

func (s *WSStream) readLoop(conn *websocket.Conn, out chan<- StreamMessage) {
	defer close(out)
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, ok := decodeFrame(raw)
		if !ok {
			continue
		}
		out <- msg
	}
}

func decodeFrame(raw []byte) (StreamMessage, bool) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return StreamMessage{}, false
	}
	switch env.Type {
	case "fill":
		var f wireFill
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return StreamMessage{}, false
		}
		price, err := decimal.NewFromString(f.FillPrice)
		if err != nil {
			return StreamMessage{}, false
		}
		return StreamMessage{Fill: &FillMessage{
			BrokerOrderNo: f.BrokerOrderNo,
			Symbol:        f.Symbol,
			Side:          types.Side(f.Side),
			FillPrice:     price,
			FillQty:       f.FillQty,
			FillTimestamp: time.UnixMilli(f.FillTimestamp),
		}}, true
	case "tick":
		var t wireTick
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return StreamMessage{}, false
		}
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return StreamMessage{}, false
		}
		return StreamMessage{Tick: &TickMessage{
			Symbol:    t.Symbol,
			Price:     price,
			Timestamp: time.UnixMilli(t.Timestamp),
		}}, true
	default:
		return StreamMessage{}, false
	}
}

// Subscribe implements BrokerStream: adds symbols to the tracked set and, if
// a connection is live, sends the subscribe frame immediately.
func (s *WSStream) Subscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	for _, sym := range symbols {
		s.subscribed[sym] = true
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return s.sendSubscribe(symbols)
}

func (s *WSStream) sendSubscribe(symbols []string) error {
	s.mu.Lock()
	conn := s.conn
	token := s.accessToken
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("broker: subscribe with no live connection")
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(subscribeFrame{Type: "subscribe", Symbols: symbols, AccessToken: token})
}

// Ping implements BrokerStream: sends a websocket ping frame with a
// wsWriteTimeout write deadline. ctx is not consulted and no pong is
// awaited; only a failed write is reported.
func (s *WSStream) Ping(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("broker: ping with no live connection")
	}
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func subscribedSymbols(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for sym := range m {
		out = append(out, sym)
	}
	return out
}
