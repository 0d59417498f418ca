package server

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`    // quote failure kind, e.g. "BalanceTooLow"
	Details any    `json:"details,omitempty"` // dev mode only
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type FamilyResponse struct {
	ID      uint8          `json:"id"`
	Name    string         `json:"name"`
	Kind    string         `json:"kind"`
	Factory common.Address `json:"factory"`
	Core    bool           `json:"core"`
}

// QuoteRequest carries a plan as the engine would receive it. Amount is the
// caller's opening balance as a decimal string.
type QuoteRequest struct {
	Commands hexutil.Bytes   `json:"commands"`
	Inputs   []hexutil.Bytes `json:"inputs"`
	Caller   common.Address  `json:"caller"`
	Amount   string          `json:"amount"`
}

type QuoteResponse struct {
	FinalStartBalance string         `json:"finalStartBalance"`
	AmountOut         string         `json:"amountOut"`
	CostEstimate      uint64         `json:"costEstimate"`
	TokenStart        common.Address `json:"tokenStart"`
	TokenEnd          common.Address `json:"tokenEnd"`
	TookMs            int64          `json:"took_ms"`
}
