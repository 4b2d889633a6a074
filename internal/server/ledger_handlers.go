package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/paygate/internal/server/service"
)

// ledger contains the handlers querying the ledger records.
type ledger struct {
	access *service.AccessService
}

// Receipts lists the access receipts owned by an address.
func (h *ledger) Receipts(c echo.Context) error {
	render, err := h.access.Receipts(c.Request().Context(), service.Params{
		Address: c.Param("address"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render)
}

// Transactions lists the transactions sent by an address.
func (h *ledger) Transactions(c echo.Context) error {
	render, err := h.access.Transactions(c.Request().Context(), service.Params{
		Address: c.QueryParam("sender"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render)
}

// Transaction returns the transaction recorded for a digest.
func (h *ledger) Transaction(c echo.Context) error {
	wait, _ := strconv.ParseBool(c.QueryParam("wait"))

	render, err := h.access.Transaction(c.Request().Context(), service.TransactionParams{
		Digest: c.Param("digest"),
		Wait:   wait,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render)
}
