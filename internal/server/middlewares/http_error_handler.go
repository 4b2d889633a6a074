package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HTTPErrorHandler is a middleware that formats rendered errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if herr, ok := err.(*echo.HTTPError); ok {
		logrus.WithError(herr.Internal).WithField("code", herr.Code).Debug("echo error")
		_ = c.JSON(herr.Code, echo.Map{
			"error": echo.Map{
				"message": herr.Message,
			},
		})
		return
	}

	var perr *pgerror.Error
	if errors.As(err, &perr) && perr.HTTPCode != 0 {
		status := pgerror.StatusCode(perr)
		if status >= 500 {
			// Retryable failures keep their tag, the cause is only logged.
			logrus.WithError(err).WithField("tag", perr.Tag()).Warn("request failed")
		}
		_ = c.JSON(status, perr)
		return
	}

	internal(err, c)
}

func internal(err error, c echo.Context) {
	id := uuid.Must(uuid.NewV4()).String()
	logrus.WithError(err).WithField("id", id).Error("unexpected error")

	_ = c.JSON(http.StatusInternalServerError, echo.Map{
		"error": echo.Map{
			"message": fmt.Sprintf("Unexpected error (id: %s)", id),
		},
	})
}
