package domain

import "time"

// SignalKind distinguishes entry and exit instructions.
type SignalKind string

const (
	SignalBuy  SignalKind = "buy"
	SignalSell SignalKind = "sell"
)

// Signal is the interpreted trading instruction extracted from one chat
// message. Signals are ephemeral and never persisted.
type Signal struct {
	Kind    SignalKind
	AssetID string // token mint address
}

// RawMessage is one message as delivered by the chat feed, before
// interpretation. LinkURL carries the URL of the message's embedded link
// preview when present; sell signals encode the asset in it.
type RawMessage struct {
	Text       string
	LinkURL    string
	ReceivedAt time.Time
}
