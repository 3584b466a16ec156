package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/market"
)

// MarketSession defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketSession interface {
	Pair() domain.Pair
	Current() *domain.MarketSnapshot
	Refresh(ctx context.Context) (*domain.MarketSnapshot, error)
	SetPair(ctx context.Context, pair domain.Pair) (*domain.MarketSnapshot, error)
	SwapSides(ctx context.Context) (*domain.MarketSnapshot, error)
	History(ctx context.Context, opts domain.ListOpts) ([]domain.FilledSwap, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	session MarketSession
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given session and logger.
func NewMarketHandler(session MarketSession, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		session: session,
		logger:  logHandler(logger, "market"),
	}
}

// GetMarket renders the current snapshot.
// GET /api/market?wallet=hx...
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Current()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no market snapshot yet")
		return
	}
	h.writeView(w, r, "get market", snap)
}

type setPairRequest struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// SetPair switches the session to a new pair and reloads.
// PUT /api/market/pair
func (h *MarketHandler) SetPair(w http.ResponseWriter, r *http.Request) {
	var req setPairRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair := domain.Pair{
		Base:  domain.AssetID(strings.TrimSpace(req.Base)),
		Quote: domain.AssetID(strings.TrimSpace(req.Quote)),
	}
	if err := pair.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.session.SetPair(r.Context(), pair)
	if err != nil {
		writeServiceError(w, r, h.logger, "set pair", err)
		return
	}
	h.writeView(w, r, "set pair", snap)
}

// SwapSides mirrors the pair and reloads.
// POST /api/market/swap-sides
func (h *MarketHandler) SwapSides(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session.SwapSides(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "swap sides", err)
		return
	}
	h.writeView(w, r, "swap sides", snap)
}

// Refresh reloads the current pair.
// POST /api/market/refresh
func (h *MarketHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "refresh", err)
		return
	}
	h.writeView(w, r, "refresh", snap)
}

type historyResponse struct {
	Pair   string       `json:"pair"`
	Swaps  []market.Row `json:"swaps"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// History lists persisted fills of the current pair. Rendering needs the
// pair's decimals, so it is only served once a snapshot of that pair exists.
// GET /api/market/history?limit=50&offset=0
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	pair := h.session.Pair()
	snap := h.session.Current()
	if snap == nil || snap.Pair != pair {
		writeError(w, http.StatusNotFound, "no market snapshot for current pair")
		return
	}

	opts := parseListOpts(r)
	fills, err := h.session.History(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "history", err)
		return
	}

	wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
	rows := make([]market.Row, 0, len(fills))
	for _, f := range fills {
		row, err := market.BuildRow(f.Swap, pair, snap.Decimals, wallet)
		if err != nil {
			writeServiceError(w, r, h.logger, "history", fmt.Errorf("render swap %s: %w", f.ID, err))
			return
		}
		rows = append(rows, row)
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Pair:   pair.Name(),
		Swaps:  rows,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

func (h *MarketHandler) writeView(w http.ResponseWriter, r *http.Request, op string, snap *domain.MarketSnapshot) {
	view, err := market.BuildView(snap, strings.TrimSpace(r.URL.Query().Get("wallet")))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A snapshot without symbols for its own pair is corrupt, not missing.
			err = fmt.Errorf("%w: %w", domain.ErrDataIntegrity, err)
		}
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
