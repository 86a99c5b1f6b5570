package domain

import "time"

// BundleSubmission describes one attempt to land a fee+swap bundle through
// the relay. It is ephemeral per attempt; the relay client never reports a
// partially-confirmed bundle, so Confirmed is the whole story.
type BundleSubmission struct {
	FeeTxSignature  string
	SwapTxSignature string
	BundleID        string
	SubmittedAt     time.Time
	Confirmed       bool
}
