package jupiter

import (
	"encoding/json"
	"strconv"
)

// Quote is a swap route computed by the quote endpoint. Only the fields the
// bot inspects are modeled; Raw retains the complete response body for the
// swap round trip.
type Quote struct {
	InputMint  string `json:"inputMint"`
	InAmount   string `json:"inAmount"`
	OutputMint string `json:"outputMint"`
	OutAmount  string `json:"outAmount"`

	Raw json.RawMessage `json:"-"`
}

// ImpliedPrice returns the raw-unit input/output ratio of the quote. It is a
// fallback when the price service is unreachable right after a trade; it is
// NOT decimal-adjusted and only meaningful relative to other quotes for the
// same pair.
func (q Quote) ImpliedPrice() float64 {
	in, err1 := strconv.ParseFloat(q.InAmount, 64)
	out, err2 := strconv.ParseFloat(q.OutAmount, 64)
	if err1 != nil || err2 != nil || out == 0 {
		return 0
	}
	return in / out
}

// swapRequest is the body of the swap endpoint. QuoteResponse embeds the
// verbatim quote body.
type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

// swapResponse is the swap endpoint's reply.
type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// priceEntry is one asset's entry in the price API response. Price is a
// decimal string.
type priceEntry struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

// priceResponse is the price API envelope. Unknown assets map to null.
type priceResponse struct {
	Data map[string]*priceEntry `json:"data"`
}
