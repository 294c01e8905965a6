package link

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/swiftlink/swiftlink/internal/auth"
	"github.com/swiftlink/swiftlink/internal/errx"
	"github.com/swiftlink/swiftlink/internal/httpx"
)

// HTTPCreateRequest represents the JSON request body for creating a link.
type HTTPCreateRequest struct {
	LongURL     string `json:"long_url"`
	CustomAlias string `json:"custom_alias,omitempty"`
}

// LinkResponse represents the JSON shape of a link.
type LinkResponse struct {
	ID        string `json:"id"`
	ShortCode string `json:"short_code"`
	LongURL   string `json:"long_url"`
	ShortURL  string `json:"short_url"`
	CreatedAt string `json:"created_at"`
}

// ClicksResponse represents the JSON response for click counts.
type ClicksResponse struct {
	Clicks map[string]int64 `json:"clicks"`
}

// Handler provides the authenticated link management endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // base URL for constructing short URLs (e.g. "https://swift.link")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

// Create handles POST /api/links.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner := auth.PrincipalFrom(ctx)
	if owner == "" {
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")
		return
	}

	req, err := httpx.DecodeJSON[HTTPCreateRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	created, err := h.service.Create(ctx, owner, CreateRequest{
		LongURL:     req.LongURL,
		CustomAlias: req.CustomAlias,
	})
	if err != nil {
		h.handleCreateError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", created.ID.String(),
		"short_code", created.ShortCode,
		"custom_alias", req.CustomAlias != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, h.linkResponse(created))
}

// List handles GET /api/links.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner := auth.PrincipalFrom(ctx)
	if owner == "" {
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")
		return
	}

	links, err := h.service.List(ctx, owner)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list links",
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
		)
		httpx.WriteKindError(w, errx.KindOf(err), "unable to list links at this time")
		return
	}

	out := make([]LinkResponse, len(links))
	for i, l := range links {
		out[i] = h.linkResponse(l)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Delete handles DELETE /api/links/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner := auth.PrincipalFrom(ctx)
	if owner == "" {
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid link id", nil)
		return
	}

	if err := h.service.Delete(ctx, owner, id); err != nil {
		h.handleDeleteError(ctx, w, err, id)
		return
	}

	logger.InfoContext(ctx, "link deleted", "link_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// Clicks handles GET /api/clicks.
func (h *Handler) Clicks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner := auth.PrincipalFrom(ctx)
	if owner == "" {
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")
		return
	}

	counts, err := h.service.Clicks(ctx, owner)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read click counts",
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
		)
		httpx.WriteKindError(w, errx.KindOf(err), "unable to read click counts at this time")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ClicksResponse{Clicks: counts})
}

func (h *Handler) linkResponse(l Link) LinkResponse {
	return LinkResponse{
		ID:        l.ID.String(),
		ShortCode: l.ShortCode,
		LongURL:   l.LongURL,
		ShortURL:  fmt.Sprintf("%s/r/%s", h.baseURL, l.ShortCode),
		CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// handleCreateError maps errors from the Create service method.
func (h *Handler) handleCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Conflict:
		h.logger.WarnContext(ctx, "alias conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"This alias is already taken",
			map[string]string{
				"hint": "Try a different custom alias or let us generate a code for you",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Unauthorized:
		h.logger.WarnContext(ctx, "unauthenticated create", logAttrs...)
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "service unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to create short link at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error creating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create short link at this time. Please try again.", nil)
	}
}

// handleDeleteError maps errors from the Delete service method.
func (h *Handler) handleDeleteError(ctx context.Context, w http.ResponseWriter, err error, id uuid.UUID) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"link_id", id.String(),
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "link not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"link doesn't exist", nil)

	case errx.Forbidden:
		h.logger.WarnContext(ctx, "delete denied", logAttrs...)
		httpx.WriteError(w, http.StatusForbidden, "forbidden",
			"you do not own this link", nil)

	case errx.Unauthorized:
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")

	default:
		h.logger.ErrorContext(ctx, "unexpected error deleting link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to delete this link at this time", nil)
	}
}
