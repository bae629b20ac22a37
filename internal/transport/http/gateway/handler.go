// Package gateway serves the model exchange endpoint and the telemetry
// collector.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/adapter/provider"
	"github.com/xiaot623/gogo/streamchat/internal/domain"
	"github.com/xiaot623/gogo/streamchat/internal/routing"
	"github.com/xiaot623/gogo/streamchat/internal/telemetry"
)

// Handler handles gateway HTTP requests.
type Handler struct {
	router    *routing.Engine
	providers *provider.Registry
	telemetry *telemetry.FileLog
	logger    *zap.Logger
}

// NewHandler creates a new gateway handler. telemetryLog may be nil, in
// which case telemetry posts are accepted and dropped.
func NewHandler(router *routing.Engine, providers *provider.Registry, telemetryLog *telemetry.FileLog, logger *zap.Logger) *Handler {
	return &Handler{
		router:    router,
		providers: providers,
		telemetry: telemetryLog,
		logger:    logger,
	}
}

// RegisterRoutes registers gateway routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/chat", h.Chat)
	e.POST("/api/telemetry", h.Telemetry)
	e.GET("/api/models", h.ListModels)
}

// Chat streams a completion for the request history.
// POST /api/chat
//
// Failures before the first fragment are reported with a status code so
// clients can classify them; later failures become an error event.
func (h *Handler) Chat(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "messages is required"})
	}
	if req.Model == "" {
		req.Model = domain.DefaultModelID
	}

	if h.providers.Empty() {
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "API keys not configured"})
	}

	route, err := h.router.Route(ctx, req.Model)
	if err != nil {
		h.logger.Error("routing failed", zap.String("model", req.Model), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "Failed to process request", Details: err.Error()})
	}
	p, ok := h.providers.Get(route.Provider)
	if !ok {
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Error: fmt.Sprintf("%s API key not configured", providerLabel(route.Provider)),
		})
	}

	w := &sseWriter{c: c}
	err = p.Stream(ctx, route.Model, req.Messages, func(delta string) error {
		return w.event(domain.StreamEvent{Type: domain.StreamEventTextDelta, Delta: delta})
	})

	if err != nil && ctx.Err() == nil {
		h.logger.Error("upstream stream failed",
			zap.String("model", req.Model),
			zap.String("provider", string(route.Provider)),
			zap.Error(err))

		if !w.started {
			status := http.StatusInternalServerError
			var upstream *provider.UpstreamError
			if errors.As(err, &upstream) && upstream.StatusCode >= 400 {
				status = upstream.StatusCode
			}
			return c.JSON(status, domain.ErrorResponse{Error: "Failed to process request", Details: err.Error()})
		}
		_ = w.event(domain.StreamEvent{Type: domain.StreamEventError, ErrorText: err.Error()})
	}
	if ctx.Err() != nil {
		return nil
	}

	if err := w.done(); err != nil {
		h.logger.Debug("failed to finish stream", zap.Error(err))
	}
	return nil
}

// Telemetry appends a client telemetry record.
// POST /api/telemetry
func (h *Handler) Telemetry(c echo.Context) error {
	var record map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&record); err != nil && !errors.Is(err, io.EOF) {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "error"})
	}
	if h.telemetry == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	if err := h.telemetry.Append(record); err != nil {
		h.logger.Warn("failed to append telemetry", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"status": "error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListModels returns the model catalogue.
// GET /api/models
func (h *Handler) ListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"models":  domain.ModelOptions,
		"default": domain.DefaultModelID,
	})
}

func providerLabel(p routing.Provider) string {
	switch p {
	case routing.ProviderOpenAI:
		return "OpenAI"
	case routing.ProviderGoogle:
		return "Google"
	default:
		s := string(p)
		if s == "" {
			return "Provider"
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// sseWriter writes headers lazily so errors before the first event can
// still carry a status code.
type sseWriter struct {
	c       echo.Context
	started bool
}

func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true
	res := w.c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
}

func (w *sseWriter) event(ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return w.write(fmt.Sprintf("data: %s\n\n", data))
}

func (w *sseWriter) done() error {
	return w.write("data: [DONE]\n\n")
}

func (w *sseWriter) write(s string) error {
	w.start()
	res := w.c.Response()
	if _, err := fmt.Fprint(res, s); err != nil {
		return err
	}
	res.Flush()
	return nil
}
