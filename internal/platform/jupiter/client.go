// Package jupiter is the REST client for the Jupiter v6 quote/swap API and
// the v2 price API. Route computation happens entirely on Jupiter's side; the
// bot only requests a quote, exchanges it for an unsigned transaction, and
// signs locally.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the Jupiter quote and price hosts.
type Client struct {
	quoteHost  string
	priceHost  string
	httpClient *http.Client
}

// NewClient creates a Jupiter client.
//
// quoteHost is the quote API root, e.g. "https://quote-api.jup.ag/v6".
// priceHost is the price API root, e.g. "https://api.jup.ag".
func NewClient(quoteHost, priceHost string) *Client {
	return &Client{
		quoteHost: quoteHost,
		priceHost: priceHost,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Quote requests a swap route for the given pair and amount. The full quote
// body is retained verbatim in Raw; SwapTransaction passes it back to the
// swap endpoint unmodified, so fields this client does not model survive the
// round trip.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	body, err := c.get(ctx, c.quoteHost+"/quote?"+q.Encode())
	if err != nil {
		return Quote{}, fmt.Errorf("jupiter: quote %s->%s: %w", inputMint, outputMint, err)
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return Quote{}, fmt.Errorf("jupiter: decode quote: %w", err)
	}
	quote.Raw = body
	return quote, nil
}

// SwapTransaction exchanges a quote for a base64-encoded unsigned transaction
// that executes it, with the given wallet as payer.
func (c *Client) SwapTransaction(ctx context.Context, quote Quote, userPublicKey string) (string, error) {
	payload := swapRequest{
		QuoteResponse:    quote.Raw,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: true,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("jupiter: marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.quoteHost+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("jupiter: create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("jupiter: swap: %w", err)
	}

	var resp swapResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("jupiter: swap response carries no transaction")
	}
	return resp.SwapTransaction, nil
}

// Price returns the current price of the given mint in the quote currency.
func (c *Client) Price(ctx context.Context, mint string) (float64, error) {
	body, err := c.get(ctx, c.priceHost+"/price/v2?ids="+url.QueryEscape(mint))
	if err != nil {
		return 0, fmt.Errorf("jupiter: price %s: %w", mint, err)
	}

	var resp priceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("jupiter: decode price response: %w", err)
	}

	entry, ok := resp.Data[mint]
	if !ok || entry == nil {
		// The API keys the result by the requested id, but fall back to the
		// first entry in case the server normalises the mint string.
		for _, e := range resp.Data {
			if e != nil {
				entry = e
				break
			}
		}
	}
	if entry == nil || entry.Price == "" {
		return 0, fmt.Errorf("jupiter: no price for %s", mint)
	}

	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("jupiter: parse price %q for %s: %w", entry.Price, mint, err)
	}
	return price, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 512))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
