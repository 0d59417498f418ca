package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/Fallback-Solutions/universal-router/internal/eth"
	"github.com/Fallback-Solutions/universal-router/internal/router"
)

// Quoter is the slice of the router the API serves.
type Quoter interface {
	Quote(ctx context.Context, commands []byte, inputs [][]byte, caller common.Address, startBalance *uint256.Int) (*router.Result, error)
	Families() map[eth.Family]eth.ProtocolConfig
}

// StatsProvider reports pool cache sizes.
type StatsProvider interface {
	GetStats() (map[string]int64, error)
}

type Handlers struct {
	Quoter       Quoter
	Cache        StatsProvider // optional
	QuoteTimeout time.Duration
	DevMode      bool
	Logger       *logrus.Logger
}

// err returns a standardized JSON error response; details only in dev mode
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

const defaultQuoteTimeout = 10 * time.Second

func (h *Handlers) quoteTimeout() time.Duration {
	if h.QuoteTimeout <= 0 {
		return defaultQuoteTimeout
	}
	return h.QuoteTimeout
}

func (h *Handlers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.quoteTimeout())
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

func (h *Handlers) Families(c echo.Context) error {
	families := h.Quoter.Families()

	items := make([]FamilyResponse, 0, len(families))
	for f, cfg := range families {
		items = append(items, FamilyResponse{
			ID:      uint8(f),
			Name:    cfg.Name,
			Kind:    cfg.Kind.String(),
			Factory: cfg.Factory,
			Core:    f.IsCore(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) Stats(c echo.Context) error {
	if h.Cache == nil {
		return h.err(c, http.StatusNotFound, "pool cache is not configured", nil)
	}
	stats, err := h.Cache.GetStats()
	if err != nil {
		h.Logger.WithError(err).Error("cache stats failed")
		return h.err(c, http.StatusInternalServerError, "failed to read cache stats", err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// statusFor maps a quote failure to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "Internal":
		return http.StatusInternalServerError
	case "DeadlineExceeded":
		return http.StatusGatewayTimeout
	case "Canceled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handlers) Quote(c echo.Context) error {
	var req QuoteRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", err.Error())
	}

	amountStr := strings.TrimSpace(req.Amount)
	if amountStr == "" {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "required"})
	}
	amount, err := uint256.FromDecimal(amountStr)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be a uint256 decimal"})
	}
	if req.Caller == (common.Address{}) {
		return h.err(c, http.StatusBadRequest, "invalid caller", map[string]any{"caller": "required"})
	}

	inputs := make([][]byte, len(req.Inputs))
	for i, in := range req.Inputs {
		inputs[i] = in
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	start := time.Now()
	res, err := h.Quoter.Quote(ctx, req.Commands, inputs, req.Caller, amount)
	if err != nil {
		kind := router.ErrorKind(err)
		code := statusFor(kind)

		entry := h.Logger.WithError(err).WithFields(logrus.Fields{"kind": kind, "caller": req.Caller.Hex()})
		if code >= http.StatusInternalServerError {
			entry.Error("quote failed")
		} else {
			entry.Warn("quote rejected")
		}

		resp := ErrorResponse{Error: "quote failed", Code: code, Kind: kind}
		if h.DevMode {
			resp.Details = err.Error()
		}
		var cmdErr *router.CommandError
		if errors.As(err, &cmdErr) && h.DevMode {
			resp.Details = map[string]any{"index": cmdErr.Index, "command": router.Command(cmdErr.Command).String(), "error": err.Error()}
		}
		return c.JSON(code, resp)
	}

	took := time.Since(start)
	h.Logger.WithFields(logrus.Fields{
		"commands":  len(req.Commands),
		"amountOut": res.AmountOut.Dec(),
		"took":      took,
	}).Info("quote served")

	return c.JSON(http.StatusOK, QuoteResponse{
		FinalStartBalance: res.FinalStartBalance.Dec(),
		AmountOut:         res.AmountOut.Dec(),
		CostEstimate:      res.CostEstimate,
		TokenStart:        res.TokenStart,
		TokenEnd:          res.TokenEnd,
		TookMs:            took.Milliseconds(),
	})
}
