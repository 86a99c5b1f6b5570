// Package solana wraps the Solana JSON-RPC node behind the two read
// operations the bot needs: SPL token balances and recent blockhashes.
package solana

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sdk "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Client is a thin wrapper over the RPC node.
type Client struct {
	rpc *rpc.Client
}

// New creates a Client for the given RPC endpoint.
func New(endpoint string) *Client {
	return &Client{rpc: rpc.New(endpoint)}
}

// TokenBalance returns the raw-unit balance of the owner's associated token
// account for the given mint. A missing token account means the owner never
// held (or fully emptied and closed) the token and reads as zero; transport
// faults are returned as errors so callers do not mistake them for an empty
// balance.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	ownerPk, err := sdk.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("solana: invalid owner %q: %w", owner, err)
	}
	mintPk, err := sdk.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("solana: invalid mint %q: %w", mint, err)
	}

	ata, _, err := sdk.FindAssociatedTokenAddress(ownerPk, mintPk)
	if err != nil {
		return 0, fmt.Errorf("solana: derive token account for %s: %w", mint, err)
	}

	res, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentProcessed)
	if err != nil {
		if isAccountNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("solana: token balance for %s: %w", mint, err)
	}

	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("solana: parse balance %q for %s: %w", res.Value.Amount, mint, err)
	}
	return amount, nil
}

// LatestBlockhash fetches a recent blockhash at processed commitment.
func (c *Client) LatestBlockhash(ctx context.Context) (sdk.Hash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentProcessed)
	if err != nil {
		return sdk.Hash{}, fmt.Errorf("solana: latest blockhash: %w", err)
	}
	return res.Value.Blockhash, nil
}

// isAccountNotFound reports whether an RPC error means the token account does
// not exist, as opposed to a transport or node fault.
func isAccountNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "could not find account") ||
		strings.Contains(msg, "Invalid param: could not find account")
}
