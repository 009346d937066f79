package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/repository"
)

// CreditHandler exposes org credit balances and top-ups
type CreditHandler struct {
	ledger *repository.LedgerRepository
	log    *logger.Logger
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(ledger *repository.LedgerRepository, log *logger.Logger) *CreditHandler {
	return &CreditHandler{ledger: ledger, log: log}
}

// GetBalance returns an org's current credit balance
// GET /api/v1/orgs/:org/credits
func (h *CreditHandler) GetBalance(c echo.Context) error {
	org := c.Param("org")

	balance, err := h.ledger.GetAvailable(c.Request().Context(), org)
	if err != nil {
		h.log.Error("balance lookup failed", "org_id", org, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to read balance"})
	}

	return c.JSON(http.StatusOK, map[string]any{"org_id": org, "balance": balance})
}

type topUpRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// TopUp credits an org's balance. Amounts must be positive; debits only
// happen through run settlement.
// POST /api/v1/orgs/:org/credits
func (h *CreditHandler) TopUp(c echo.Context) error {
	org := c.Param("org")

	var req topUpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid request body"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": "amount must be positive"})
	}
	reason := req.Reason
	if reason == "" {
		reason = "top-up"
	}

	if err := h.ledger.Credit(c.Request().Context(), org, req.Amount, reason); err != nil {
		h.log.Error("credit top-up failed", "org_id", org, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to credit balance"})
	}

	balance, err := h.ledger.GetAvailable(c.Request().Context(), org)
	if err != nil {
		h.log.Error("balance lookup failed", "org_id", org, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to read balance"})
	}

	h.log.Info("credits added", "org_id", org, "amount", req.Amount)
	return c.JSON(http.StatusOK, map[string]any{"org_id": org, "balance": balance})
}
