package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/paygate/internal/server/service"
)

// Payment headers of a 402 response.
const (
	HeaderPaymentAddress   = "X-Payment-Address"
	HeaderPaymentRequired  = "X-Payment-Required"
	HeaderPaymentAmount    = "X-Payment-Amount"
	HeaderPaymentRecipient = "X-Payment-Recipient"
	HeaderPaymentDigest    = "X-Payment-Digest"
)

// content contains all content handlers.
type content struct {
	access *service.AccessService
}

///// List
////
//

// List returns the published contents without their locator.
func (h *content) List(c echo.Context) error {
	render, err := h.access.Contents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render)
}

///// Show
////
//

// Show returns the content if the requester owns an access receipt for it,
// otherwise a 402 with the unsigned purchase transaction to sign.
func (h *content) Show(c echo.Context) error {
	params := service.ContentParams{
		Params:    service.Params{Address: address(c)},
		ContentID: c.Param("id"),
	}

	gate, err := h.access.Content(c.Request().Context(), params)
	if err != nil {
		return err
	}

	if gate.Granted {
		return c.JSON(http.StatusOK, gate.Render)
	}

	header := c.Response().Header()
	header.Set(HeaderPaymentRequired, "true")
	header.Set(HeaderPaymentAmount, strconv.FormatUint(gate.Content.Price, 10))
	header.Set(HeaderPaymentRecipient, gate.Content.Creator)
	if gate.Unsigned != nil {
		header.Set(HeaderPaymentDigest, gate.Unsigned.Digest)
	}
	return c.JSON(http.StatusPaymentRequired, gate.Render)
}

///// Execute
////
//

// Execute submits the purchase transaction signed by the buyer.
func (h *content) Execute(c echo.Context) error {
	var params service.ExecuteParams
	if err := c.Bind(&params); err != nil {
		return err
	}
	params.ContentID = c.Param("id")

	render, err := h.access.Execute(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render)
}

func address(c echo.Context) string {
	if a := c.QueryParam("address"); a != "" {
		return a
	}
	return c.Request().Header.Get(HeaderPaymentAddress)
}
