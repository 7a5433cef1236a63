package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tariffscope/admission/internal/core/domain/audit"
)

func (s *Server) getAuditLogs(c echo.Context) error {
	var filter audit.AuditLogFilter
	if err := c.Bind(&filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filter parameters")
	}
	logs, total, err := s.auditSvc.GetAuditLogs(c.Request().Context(), &filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"logs": logs, "total": total})
}
