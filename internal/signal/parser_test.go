package signal

import (
	"testing"

	"github.com/mkravets/signalbot/internal/domain"
)

func TestParseBuySignal(t *testing.T) {
	msg := domain.RawMessage{
		Text: "🚀 New call!\n📜CA: 9sbrLLnk4vxJajnZWXP9h5qk1NDFw7dz2eHjgemcpump\n🏛️Market Cap: $120k\nLP burned",
	}

	sig, ok := Parse(msg)
	if !ok {
		t.Fatal("expected a signal")
	}
	if sig.Kind != domain.SignalBuy {
		t.Fatalf("kind = %q, want buy", sig.Kind)
	}
	if sig.AssetID != "9sbrLLnk4vxJajnZWXP9h5qk1NDFw7dz2eHjgemcpump" {
		t.Fatalf("asset = %q", sig.AssetID)
	}
}

func TestParseSellSignal(t *testing.T) {
	msg := domain.RawMessage{
		Text:    "💰 3.2x from call, take profits!",
		LinkURL: "https://t.me/somebot?start=ref_9sbrLLnk4vxJajnZWXP9h5qk1NDFw7dz2eHjgemcpump",
	}

	sig, ok := Parse(msg)
	if !ok {
		t.Fatal("expected a signal")
	}
	if sig.Kind != domain.SignalSell {
		t.Fatalf("kind = %q, want sell", sig.Kind)
	}
	if sig.AssetID != "9sbrLLnk4vxJajnZWXP9h5qk1NDFw7dz2eHjgemcpump" {
		t.Fatalf("asset = %q", sig.AssetID)
	}
}

func TestParseNoSignal(t *testing.T) {
	cases := []struct {
		name string
		msg  domain.RawMessage
	}{
		{"plain chatter", domain.RawMessage{Text: "gm everyone"}},
		{"empty", domain.RawMessage{}},
		{"buy marker without market cap line", domain.RawMessage{Text: "📜CA: SomeMint111"}},
		{"sell marker without link", domain.RawMessage{Text: "2x from call, nice"}},
		{"sell marker with link lacking separator", domain.RawMessage{
			Text:    "2x from call, nice",
			LinkURL: "https://example.com/nothing-here",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if sig, ok := Parse(tc.msg); ok {
				t.Fatalf("unexpected signal %+v", sig)
			}
		})
	}
}

func TestParseBuyTakesFirstMarkerPair(t *testing.T) {
	msg := domain.RawMessage{
		Text: "📜CA: MintA\n🏛️Market Cap: $1\n📜CA: MintB\n🏛️Market Cap: $2",
	}
	sig, ok := Parse(msg)
	if !ok || sig.AssetID != "MintA" {
		t.Fatalf("got %+v ok=%v, want MintA", sig, ok)
	}
}
