package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urlmint/urlmint/internal/model"
	"github.com/urlmint/urlmint/internal/repository"
	"github.com/urlmint/urlmint/internal/service"
)

// Handler holds HTTP handlers and dependencies. It receives interfaces
// rather than concrete implementations for testability.
type Handler struct {
	shortener service.ShortenerInterface
	db        DBInterface
	cache     CacheInterface
	logger    *slog.Logger
	metrics   http.Handler
}

// DBInterface defines the database operations needed by the handler.
type DBInterface interface {
	Ping(ctx context.Context) error
	Close()
}

// CacheInterface defines the cache operations needed by the handler.
// A nil cache means the service runs without Redis.
type CacheInterface interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler instance with the provided dependencies.
func NewHandler(shortener service.ShortenerInterface, db DBInterface, cache CacheInterface, logger *slog.Logger, metrics http.Handler) *Handler {
	return &Handler{
		shortener: shortener,
		db:        db,
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
	}
}

// RegisterRoutes registers all route definitions on the given Gin engine.
// The caller is responsible for creating the engine and adding middleware
// first, so middleware runs in the correct order. The bare redirect
// route is registered last to avoid conflicts.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.healthCheck)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/shorten", h.shorten)
		apiGroup.GET("/info/:code", h.info)
		apiGroup.GET("/stats", h.stats)
		apiGroup.POST("/cleanup", h.cleanup)
	}

	r.GET("/:code", h.redirect)
}

// healthCheck handles GET /health
// Response codes:
//   - 200 OK: all dependencies are healthy
//   - 503 Service Unavailable: one or more dependencies are down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	status := "ok"
	code := http.StatusOK
	deps := gin.H{"database": "up", "cache": "up"}

	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["database"] = "down"
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			deps["cache"] = "down"
		}
	} else {
		deps["cache"] = "disabled"
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// shorten handles POST /api/shorten
// Response codes:
//   - 201 Created: mapping created
//   - 400 Bad Request: invalid body or URL
//   - 503 Service Unavailable: code space exhausted or storage down
//   - 504 Gateway Timeout: caller deadline exceeded
func (h *Handler) shorten(c *gin.Context) {
	ctx := c.Request.Context()

	var req model.ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.shortener.Shorten(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.errorResponse(c, http.StatusBadRequest, "Invalid URL")
		case errors.Is(err, service.ErrGenerationExhausted):
			h.errorResponse(c, http.StatusServiceUnavailable, "Could not allocate a short code, retry later")
		default:
			h.serverError(c, "unexpected error creating mapping", err)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// info handles GET /api/info/:code
// Returns metadata without incrementing the click count. Expired
// mappings are returned with isActive=false until they are purged.
// Response codes:
//   - 200 OK
//   - 404 Not Found: short code does not exist
func (h *Handler) info(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	resp, err := h.shortener.Info(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			h.errorResponse(c, http.StatusNotFound, "Short code not found")
		default:
			h.serverError(c, "unexpected error fetching mapping", err)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// stats handles GET /api/stats
func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()

	resp, err := h.shortener.Stats(ctx)
	if err != nil {
		h.serverError(c, "unexpected error computing stats", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// cleanup handles POST /api/cleanup
// Deletion only happens when the request sets includeExpired; an empty
// body is a safe no-op.
func (h *Handler) cleanup(c *gin.Context) {
	ctx := c.Request.Context()

	var req model.CleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.WarnContext(ctx, "invalid request body",
				slog.String("error", err.Error()),
				slog.String("path", c.Request.URL.Path))
			h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	resp, err := h.shortener.Cleanup(ctx, &req)
	if err != nil {
		h.serverError(c, "unexpected error during cleanup", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// redirect handles GET /:code
// Response codes:
//   - 301 Moved Permanently: redirects to the original URL
//   - 404 Not Found: short code does not exist
//   - 410 Gone: mapping has expired but is not yet purged
func (h *Handler) redirect(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	target, err := h.shortener.Resolve(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			h.errorResponse(c, http.StatusNotFound, "Short code not found")
		case errors.Is(err, service.ErrExpired):
			h.errorResponse(c, http.StatusGone, "Short code has expired")
		default:
			h.serverError(c, "unexpected error during redirect", err)
		}
		return
	}

	c.Redirect(http.StatusMovedPermanently, target)
}

// serverError maps the remaining error kinds: storage outages and
// caller deadlines get their own statuses, everything else is a 500.
func (h *Handler) serverError(c *gin.Context, msg string, err error) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, repository.ErrUnavailable):
		h.logger.ErrorContext(ctx, msg, slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusServiceUnavailable, "Storage temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		h.errorResponse(c, http.StatusGatewayTimeout, "Request timed out")
	default:
		h.logger.ErrorContext(ctx, msg, slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

// errorResponse sends a standardized JSON error response.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
