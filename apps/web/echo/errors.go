package echoweb

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/session"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, account.ErrAuthenticationFailed.Error())
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, account.ErrAccountDeactivated.Error())
)

type errorView struct {
	Code    int
	Message string
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// API errors are sent as JSON, portal errors as an HTML page.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if id, ok := contextIdentity(ctx); ok {
				args = append(args, id)
			}
			logger.Error(msg, args...)
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else if isAPIRequest(ctx) {
			if m, ok := message.(string); ok {
				message = echo.Map{"error": m}
			}
			err = ctx.JSON(code, message)
		} else {
			err = renderErrorPage(ctx, code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func isAPIRequest(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().URL.Path, "/v1")
}

func renderErrorPage(ctx echo.Context, code int, message interface{}) error {
	var msg string
	switch m := message.(type) {
	case string:
		msg = m
	case map[string]string:
		parts := make([]string, 0, len(m))
		for fld, fErr := range m {
			parts = append(parts, fld+": "+fErr)
		}
		sort.Strings(parts)
		msg = strings.Join(parts, "; ")
	default:
		msg = fmt.Sprint(m)
	}

	store, _ := getContextStore(ctx) // nil before the store middleware ran
	view := errorView{Code: code, Message: msg}
	return ctx.Render(code, "error", newPageData(ctx, store, http.StatusText(code), view))
}

// contextIdentity returns the acting Identity of the portal session or the API bearer, if any.
func contextIdentity(ctx echo.Context) (session.Identity, bool) {
	if store, err := getContextStore(ctx); err == nil {
		return store.Identity()
	}
	if claims, err := getContextClaims(ctx); err == nil {
		return claims.Identity, true
	}
	return session.Identity{}, false
}
