package redirect

import (
	"log/slog"
	"net/http"

	"github.com/swiftlink/swiftlink/internal/errx"
	"github.com/swiftlink/swiftlink/internal/httpx"
)

// Handler serves the public redirect endpoint.
type Handler struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(resolver *Resolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		resolver: resolver,
		logger:   logger,
	}
}

// Redirect handles GET /r/{code}. It answers 302 rather than 301 so browsers
// keep coming back and every visit is counted.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	code := r.PathValue("code")

	longURL, err := h.resolver.Resolve(ctx, code)
	if err != nil {
		kind := errx.KindOf(err)

		logAttrs := []any{
			"error", err.Error(),
			"error_kind", kind,
			"code", code,
		}

		switch kind {
		case errx.NotFound:
			logger.WarnContext(ctx, "code not found", logAttrs...)
			httpx.WriteError(w, http.StatusNotFound, "not_found",
				"short link doesn't exist", nil)

		case errx.Invalid:
			logger.WarnContext(ctx, "invalid code", logAttrs...)
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)

		default:
			logger.ErrorContext(ctx, "unexpected error resolving code", logAttrs...)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
				"Unable to resolve this link at this time", nil)
		}
		return
	}

	logger.InfoContext(ctx, "code resolved",
		"code", code,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, longURL, http.StatusFound)
}
