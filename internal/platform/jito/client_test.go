package jito

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/mkravets/signalbot/internal/wallet"
)

type fixedBlockhash struct{}

func (fixedBlockhash) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func testWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.New(solana.NewWallet().PrivateKey.String())
	if err != nil {
		t.Fatalf("wallet.New: %v", err)
	}
	return w
}

func testSwapTx(t *testing.T, w *wallet.Wallet) *solana.Transaction {
	t.Helper()
	tx, err := w.TransferTransaction(solana.NewWallet().PublicKey(), 1, solana.Hash{})
	if err != nil {
		t.Fatalf("build swap stand-in: %v", err)
	}
	return tx
}

// relayServer fakes the block engine. confirmAfter controls how many status
// polls return pending before the bundle reports confirmed; a negative value
// means it never confirms.
func relayServer(t *testing.T, confirmAfter int, sawTip *string) *httptest.Server {
	t.Helper()
	var polls atomic.Int64
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request: %v", err)
		}
		var req rpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		switch req.Method {
		case "sendBundle":
			txs, ok := req.Params[0].([]any)
			if !ok || len(txs) != 2 {
				t.Errorf("sendBundle params = %v, want two transactions", req.Params)
			}
			if sawTip != nil {
				feeTx, err := solana.TransactionFromBase64(txs[0].(string))
				if err != nil {
					t.Errorf("decode fee transaction: %v", err)
				} else {
					accounts := feeTx.Message.AccountKeys
					*sawTip = accounts[len(accounts)-2].String()
				}
			}
			fmt.Fprint(rw, `{"jsonrpc":"2.0","id":1,"result":"bundle-1"}`)
		case "getBundleStatuses":
			status := "processed"
			if confirmAfter >= 0 && polls.Add(1) > int64(confirmAfter) {
				status = "confirmed"
			}
			fmt.Fprintf(rw, `{"jsonrpc":"2.0","id":1,"result":{"value":[{"bundle_id":"bundle-1","confirmation_status":%q}]}}`, status)
		default:
			t.Errorf("unexpected method %q", req.Method)
		}
	}))
}

func newTestClient(t *testing.T, endpoint string, confirmTimeout time.Duration) (*Client, *wallet.Wallet) {
	t.Helper()
	w := testWallet(t)
	c, err := NewClient(ClientConfig{
		Endpoint:       endpoint,
		TipLamports:    1_000_000,
		PollInterval:   time.Millisecond,
		ConfirmTimeout: confirmTimeout,
	}, w, fixedBlockhash{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, w
}

func TestSubmitConfirmed(t *testing.T) {
	var tip string
	srv := relayServer(t, 2, &tip)
	defer srv.Close()

	c, w := newTestClient(t, srv.URL, time.Second)
	sub, err := c.Submit(context.Background(), testSwapTx(t, w))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !sub.Confirmed {
		t.Error("Confirmed = false, want true")
	}
	if sub.BundleID != "bundle-1" {
		t.Errorf("BundleID = %q, want bundle-1", sub.BundleID)
	}
	if sub.FeeTxSignature == "" || sub.SwapTxSignature == "" {
		t.Errorf("missing signatures: fee=%q swap=%q", sub.FeeTxSignature, sub.SwapTxSignature)
	}

	known := false
	for _, a := range defaultTipAccounts {
		if a == tip {
			known = true
		}
	}
	if !known {
		t.Errorf("tip recipient %q not in the default tip account set", tip)
	}
}

func TestSubmitRotatesTipAccounts(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		var tip string
		srv := relayServer(t, 0, &tip)

		c, w := newTestClient(t, srv.URL, time.Second)
		if _, err := c.Submit(context.Background(), testSwapTx(t, w)); err != nil {
			srv.Close()
			t.Fatalf("Submit %d: %v", i, err)
		}
		srv.Close()

		known := false
		for _, a := range defaultTipAccounts {
			if a == tip {
				known = true
			}
		}
		if !known {
			t.Fatalf("submission %d tipped %q, not in the default set", i, tip)
		}
		seen[tip] = true
	}

	// 32 draws over 8 accounts land on a single one with vanishing odds.
	if len(seen) < 2 {
		t.Errorf("tip recipients = %d distinct over 32 submissions, want rotation", len(seen))
	}
}

func TestSubmitNeverConfirms(t *testing.T) {
	srv := relayServer(t, -1, nil)
	defer srv.Close()

	c, w := newTestClient(t, srv.URL, 20*time.Millisecond)
	sub, err := c.Submit(context.Background(), testSwapTx(t, w))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Confirmed {
		t.Error("Confirmed = true for bundle that never confirmed")
	}
}

func TestSubmitUnmatchedBundleID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcRequest
		_ = json.Unmarshal(body, &req)
		switch req.Method {
		case "sendBundle":
			fmt.Fprint(rw, `{"jsonrpc":"2.0","id":1,"result":"bundle-1"}`)
		case "getBundleStatuses":
			fmt.Fprint(rw, `{"jsonrpc":"2.0","id":1,"result":{"value":[{"bundle_id":"other","confirmation_status":"confirmed"},null]}}`)
		}
	}))
	defer srv.Close()

	c, w := newTestClient(t, srv.URL, 20*time.Millisecond)
	sub, err := c.Submit(context.Background(), testSwapTx(t, w))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Confirmed {
		t.Error("Confirmed = true with no matching bundle id")
	}
}

func TestSubmitRelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"rate limited"}}`)
	}))
	defer srv.Close()

	c, w := newTestClient(t, srv.URL, time.Second)
	if _, err := c.Submit(context.Background(), testSwapTx(t, w)); err == nil {
		t.Fatal("Submit succeeded against erroring relay")
	}
}

func TestNewClientRejectsBadTipAccount(t *testing.T) {
	w := testWallet(t)
	_, err := NewClient(ClientConfig{
		Endpoint:    "http://localhost",
		TipAccounts: []string{"not-a-pubkey"},
	}, w, fixedBlockhash{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("NewClient accepted invalid tip account")
	}
}
