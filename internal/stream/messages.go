package stream

import "encoding/json"

// Frame types carried over the wire. Client to server: subscribe,
// unsubscribe. Server to client: connected, heartbeat, quote, orderbook,
// trade.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeConnected   = "connected"
	TypeHeartbeat   = "heartbeat"
	TypeQuote       = "quote"
	TypeOrderBook   = "orderbook"
	TypeTrade       = "trade"
)

// Frame is the JSON envelope for every message in either direction. Only the
// fields relevant to a given type are populated.
type Frame struct {
	Type    string          `json:"type"`
	TS      int64           `json:"ts,omitempty"`
	Symbols []string        `json:"symbols,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// encodeFrame marshals a typed payload into a Frame envelope.
func encodeFrame(frameType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: frameType, Payload: raw})
}

// encodeHeartbeat marshals a heartbeat frame with the given epoch-ms stamp.
func encodeHeartbeat(ts int64) ([]byte, error) {
	return json.Marshal(Frame{Type: TypeHeartbeat, TS: ts})
}

// encodeConnected marshals the connection acknowledgment frame.
func encodeConnected() ([]byte, error) {
	return json.Marshal(Frame{Type: TypeConnected})
}
