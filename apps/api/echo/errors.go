package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
)

var errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, try again later")

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message string
		var details map[string]string

		var provErr *registration.IdentityProviderError
		var failed *registration.ProvisioningFailed

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if m, ok := origErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			vErr := core.TranslateErrors(origErr, translator).(*core.ValidationError)
			code = http.StatusBadRequest
			message = vErr.Error()
			details = vErr.FieldMap()
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
			details = origErr.FieldMap()
		default:
			switch {
			case origErr == registration.ErrRosterMismatch:
				code = http.StatusForbidden
				message = origErr.Error()
			case origErr == registration.ErrIdentityConflict, origErr == registration.ErrEmailTaken:
				code = http.StatusConflict
				message = registration.ErrIdentityConflict.Error()
			case errors.As(err, &provErr):
				code = http.StatusBadGateway
				message = "the identity service is unavailable, please try again later"
				logger.Error(provErr.Error(), err)
			case errors.As(err, &failed):
				// the identity was compensated: no details leak to the client
				code = http.StatusInternalServerError
				message = "your account could not be created, please try again later"
				logger.Error(failed.Error(), err)
			default: // any other error is a server error
				code = http.StatusInternalServerError
				message = http.StatusText(http.StatusInternalServerError)
				logger.Error(message, errors.Wrap(err, message))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		body := echo.Map{"error": message}
		if len(details) > 0 {
			body["details"] = details
		}
		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			body["debug"] = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
