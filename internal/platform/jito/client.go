// Package jito is the JSON-RPC client for a Jito-style block engine. It
// packages the priority-fee transfer and the signed swap into an ordered
// bundle, submits it, and polls for confirmation under a hard deadline.
package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/mkravets/signalbot/internal/domain"
	"github.com/mkravets/signalbot/internal/wallet"
)

// defaultTipAccounts is the block engine's published set of tip-receiving
// validator accounts. One is drawn uniformly at random per submission.
var defaultTipAccounts = []string{
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
}

// BlockhashProvider supplies a recent blockhash for the fee transfer.
type BlockhashProvider interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// ClientConfig holds relay parameters.
type ClientConfig struct {
	// Endpoint is the block engine bundles URL.
	Endpoint string
	// TipLamports is the priority fee transferred to the tip account in
	// every bundle.
	TipLamports uint64
	// TipAccounts overrides the default tip account set when non-empty.
	TipAccounts []string
	// PollInterval is the pause between confirmation status polls.
	PollInterval time.Duration
	// ConfirmTimeout is the wall-clock bound on waiting for confirmation.
	ConfirmTimeout time.Duration
}

// Client submits bundles and polls their status.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	wallet         *wallet.Wallet
	chain          BlockhashProvider
	tipLamports    uint64
	tipAccounts    []solana.PublicKey
	pollInterval   time.Duration
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// NewClient creates a relay client. The wallet signs the fee transfer; chain
// provides the blockhash it is built against.
func NewClient(cfg ClientConfig, w *wallet.Wallet, chain BlockhashProvider, logger *slog.Logger) (*Client, error) {
	accounts := cfg.TipAccounts
	if len(accounts) == 0 {
		accounts = defaultTipAccounts
	}
	tipAccounts := make([]solana.PublicKey, 0, len(accounts))
	for _, a := range accounts {
		pk, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			return nil, fmt.Errorf("jito: invalid tip account %q: %w", a, err)
		}
		tipAccounts = append(tipAccounts, pk)
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 5 * time.Minute
	}

	return &Client{
		endpoint:       cfg.Endpoint,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		wallet:         w,
		chain:          chain,
		tipLamports:    cfg.TipLamports,
		tipAccounts:    tipAccounts,
		pollInterval:   pollInterval,
		confirmTimeout: confirmTimeout,
		logger:         logger.With(slog.String("component", "jito")),
	}, nil
}

// Submit builds the fee transfer, bundles it ahead of the signed swap
// transaction, sends the bundle, and polls until every submitted id reports
// confirmed or the timeout elapses. A bundle that fails to confirm within the
// bound is reported as not confirmed, not as an error: it may still land
// on-chain after the caller has given up.
func (c *Client) Submit(ctx context.Context, swapTx *solana.Transaction) (domain.BundleSubmission, error) {
	tipAccount := c.tipAccounts[rand.IntN(len(c.tipAccounts))]

	blockhash, err := c.chain.LatestBlockhash(ctx)
	if err != nil {
		return domain.BundleSubmission{}, fmt.Errorf("jito: fee transfer blockhash: %w", err)
	}

	feeTx, err := c.wallet.TransferTransaction(tipAccount, c.tipLamports, blockhash)
	if err != nil {
		return domain.BundleSubmission{}, fmt.Errorf("jito: build fee transfer: %w", err)
	}

	feeB64, err := feeTx.ToBase64()
	if err != nil {
		return domain.BundleSubmission{}, fmt.Errorf("jito: serialize fee transfer: %w", err)
	}
	swapB64, err := swapTx.ToBase64()
	if err != nil {
		return domain.BundleSubmission{}, fmt.Errorf("jito: serialize swap: %w", err)
	}

	// The fee payment rides first; ordering within the bundle is preserved
	// by the relay.
	var bundleID string
	if err := c.call(ctx, "sendBundle", []any{[]string{feeB64, swapB64}}, &bundleID); err != nil {
		return domain.BundleSubmission{}, fmt.Errorf("jito: send bundle: %w", err)
	}

	sub := domain.BundleSubmission{
		FeeTxSignature:  feeTx.Signatures[0].String(),
		SwapTxSignature: swapTx.Signatures[0].String(),
		BundleID:        bundleID,
		SubmittedAt:     time.Now().UTC(),
	}

	c.logger.InfoContext(ctx, "bundle submitted",
		slog.String("bundle_id", bundleID),
		slog.String("tip_account", tipAccount.String()),
	)

	sub.Confirmed = c.awaitConfirmation(ctx, []string{bundleID})
	return sub, nil
}

// awaitConfirmation polls the status endpoint until all ids confirm, the
// timeout elapses, or the context is cancelled. A transport fault while
// polling short-circuits to not-confirmed.
func (c *Client) awaitConfirmation(ctx context.Context, bundleIDs []string) bool {
	deadline := time.Now().Add(c.confirmTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var result bundleStatusResult
		if err := c.call(ctx, "getBundleStatuses", []any{bundleIDs}, &result); err != nil {
			c.logger.WarnContext(ctx, "bundle status poll failed",
				slog.String("error", err.Error()),
			)
			return false
		}

		if allConfirmed(bundleIDs, result.Value) {
			return true
		}

		if time.Now().After(deadline) {
			c.logger.WarnContext(ctx, "bundle confirmation timed out",
				slog.String("bundle_id", bundleIDs[0]),
				slog.Duration("timeout", c.confirmTimeout),
			)
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// allConfirmed reports whether every submitted id has a matching status entry
// with confirmation_status "confirmed". A single unmatched or non-confirmed
// id fails the whole bundle.
func allConfirmed(bundleIDs []string, statuses []*bundleStatus) bool {
	for _, id := range bundleIDs {
		confirmed := false
		for _, st := range statuses {
			if st != nil && st.BundleID == id && st.ConfirmationStatus == "confirmed" {
				confirmed = true
				break
			}
		}
		if !confirmed {
			return false
		}
	}
	return true
}

// bundleStatus is one entry of the getBundleStatuses result value.
type bundleStatus struct {
	BundleID           string `json:"bundle_id"`
	ConfirmationStatus string `json:"confirmation_status"`
}

// bundleStatusResult is the getBundleStatuses result envelope.
type bundleStatusResult struct {
	Value []*bundleStatus `json:"value"`
}

// rpcRequest / rpcResponse are the JSON-RPC 2.0 framing.
type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, body)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}
