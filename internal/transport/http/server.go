// Package http assembles the streamchat HTTP server.
package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/streamchat/internal/transport/ws"
)

// RouteRegistrar is implemented by every handler group mounted on the server.
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

// Server is the public HTTP server: gateway, conversation API and WebSocket
// sessions share one listener.
type Server struct {
	echo *echo.Echo
	hub  *ws.Hub
}

// NewServer creates the server and mounts the given handler groups.
func NewServer(h *ws.Hub, groups ...RouteRegistrar) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo: e,
		hub:  h,
	}

	e.GET("/api/status", s.handleStatus)
	for _, g := range groups {
		g.RegisterRoutes(e)
	}

	return s
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleStatus(c echo.Context) error {
	connections := 0
	if s.hub != nil {
		connections = s.hub.GetConnectionCount()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": connections,
	})
}
