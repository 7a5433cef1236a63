package httpserver

import (
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(s.middleware.Metrics.CollectHTTPMetrics())
	s.echo.Use(s.middleware.Logging.RequestLogging())

	// Identity first, then the admission gate: the gate needs the principal
	// to pick the identity layer's limit and the org for the quota layer.
	s.echo.Use(s.middleware.Principal.ExtractPrincipal())
	s.echo.Use(s.middleware.Gate.Handler())
}
