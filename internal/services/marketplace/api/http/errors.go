package httpapi

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	i18n "github.com/Kingl1tz/shoppal/internal/platform/errors/i18n"
	"github.com/Kingl1tz/shoppal/internal/platform/httpx"
	"github.com/Kingl1tz/shoppal/internal/platform/requestctx"
)

// writeError renders err as a localized JSON error. The status follows the
// error kind.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := httpx.RequestContext(r)
	code := apperrors.CodeUnknown
	var metadata map[string]string
	if appErr, ok := apperrors.As(err); ok {
		code = appErr.Code
		metadata = appErr.Metadata
	} else if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = apperrors.CodeStoreFailure
	}
	status := code.Kind().HTTPStatus()

	locale := requestctx.LocaleFromContext(ctx)
	if locale == "" && r != nil {
		locale = i18n.Negotiate(r.Header.Get("Accept-Language"))
	}
	message := i18n.Message(locale, string(code), metadata)

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", "code", code, "status", status, "error", err)
	} else {
		h.logger.DebugContext(ctx, "request rejected", "code", code, "status", status, "error", err)
	}
	_ = httpx.WriteJSONError(w, status, string(code), message)
}

func (h *Handler) writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, apperrors.Wrap(apperrors.CodeRequestInvalid, "invalid request", err))
}
