// Package signal interprets raw chat messages as trading instructions. The
// parser is pure: no network access, no state.
package signal

import (
	"strings"

	"github.com/mkravets/signalbot/internal/domain"
)

// Marker strings of the upstream signal channel's message format. A buy call
// carries the token mint between the contract-address label and the
// market-cap label on the following line; a sell call carries the fixed
// phrase below and encodes the mint in the trailing segment of the message's
// embedded link.
const (
	buyMintStart = "📜CA: "
	buyMintEnd   = "\n🏛️Market Cap:"
	sellMarker   = "x from call,"
)

// Parse interprets one raw message. It returns the extracted signal and true,
// or the zero Signal and false when the message carries no trading
// instruction. Malformed variants of the known formats are treated as no
// signal, never as an error.
func Parse(msg domain.RawMessage) (domain.Signal, bool) {
	if mint, ok := between(msg.Text, buyMintStart, buyMintEnd); ok {
		return domain.Signal{Kind: domain.SignalBuy, AssetID: mint}, true
	}

	if strings.Contains(msg.Text, sellMarker) {
		if mint := trailingSegment(msg.LinkURL, "_"); mint != "" {
			return domain.Signal{Kind: domain.SignalSell, AssetID: mint}, true
		}
	}

	return domain.Signal{}, false
}

// between returns the substring of s between the first occurrence of start
// and the first occurrence of end after it.
func between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	i += len(start)
	j := strings.Index(s[i:], end)
	if j < 0 {
		return "", false
	}
	return s[i : i+j], true
}

// trailingSegment returns the part of s after the last occurrence of sep, or
// "" when sep is absent or nothing follows it.
func trailingSegment(s, sep string) string {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return ""
	}
	return s[i+len(sep):]
}
