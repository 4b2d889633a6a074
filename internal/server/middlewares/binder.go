package middlewares

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/paygate/internal/pgerror"
)

// binder rejects empty and malformed payloads with tagged errors.
type binder struct {
	echo.DefaultBinder
}

// NewBinder returns a binder decoding request payloads on top of echo's one.
func NewBinder() echo.Binder {
	return &binder{}
}

// Bind implements the echo.Bind interface.
func (b *binder) Bind(i any, c echo.Context) error {
	if c.Request().Method == http.MethodPost && c.Request().ContentLength == 0 {
		return pgerror.InvalidParameters("Request body can't be empty.")
	}

	if err := b.DefaultBinder.Bind(i, c); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok && herr.Code == http.StatusUnsupportedMediaType {
			return err
		}
		return pgerror.InvalidParameters("Malformed request body.").WithCause(err)
	}
	return nil
}
