package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/swapmarket/internal/numeric"
)

// UnitsHandler converts between raw token amounts and units.
type UnitsHandler struct {
	logger *slog.Logger
}

// NewUnitsHandler creates a UnitsHandler.
func NewUnitsHandler(logger *slog.Logger) *UnitsHandler {
	return &UnitsHandler{logger: logHandler(logger, "units")}
}

// ToRaw converts a unit amount to its raw integer form.
// GET /api/units/to-raw?amount=1.5&decimals=18
func (h *UnitsHandler) ToRaw(w http.ResponseWriter, r *http.Request) {
	decimals, ok := queryDecimals(w, r)
	if !ok {
		return
	}
	amount, err := numeric.Parse(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, err := numeric.ToRaw(amount, decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":   amount.String(),
		"decimals": decimals,
		"raw":      raw.String(),
	})
}

// ToUnit converts a raw amount, decimal or 0x-hex, to units.
// GET /api/units/to-unit?raw=0x14d1120d7b160000&decimals=18
func (h *UnitsHandler) ToUnit(w http.ResponseWriter, r *http.Request) {
	decimals, ok := queryDecimals(w, r)
	if !ok {
		return
	}
	raw, err := numeric.ParseRaw(r.URL.Query().Get("raw"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	unit, err := numeric.ToUnit(raw, decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"raw":      raw.String(),
		"decimals": decimals,
		"amount":   unit.String(),
		"display":  numeric.Display(unit),
	})
}

func queryDecimals(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("decimals"))
	if v == "" {
		writeError(w, http.StatusBadRequest, "missing decimals")
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "decimals must be an integer")
		return 0, false
	}
	if err := numeric.ValidateDecimals(n); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return n, true
}
