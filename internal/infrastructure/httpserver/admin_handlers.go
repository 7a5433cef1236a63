package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tariffscope/admission/internal/core/domain/audit"
	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/internal/core/domain/violation"
	"github.com/tariffscope/admission/internal/infrastructure/httpserver/helpers"
)

func (s *Server) getViolations(c echo.Context) error {
	var filter violation.Filter
	if err := c.Bind(&filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filter parameters")
	}
	if filter.Scope != nil && !filter.Scope.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown scope")
	}

	violations, total, err := s.violationSvc.GetViolations(c.Request().Context(), &filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"violations": violations, "total": total})
}

func (s *Server) getTopViolators(c echo.Context) error {
	window := 7 * 24 * time.Hour
	if raw := c.QueryParam("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid window duration")
		}
		window = d
	}
	n := 0
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		n = v
	}

	ranks, err := s.violationSvc.TopViolators(c.Request().Context(), window, n)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"top_violators": ranks, "window": window.String()})
}

func (s *Server) getOrganizationUsage(c echo.Context) error {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid organization id")
	}

	resource := quota.ResourceType(c.QueryParam("resource"))
	if resource == "" {
		resource = quota.ResourceCalculations
	}
	if !resource.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown resource")
	}

	view, err := s.quotaSvc.Resolve(c.Request().Context(), orgID, resource)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}

type quotaResetRequest struct {
	Resource quota.ResourceType `json:"resource"`
}

// resetOrganizationQuota zeroes the current period only and leaves an audit
// trail naming the acting administrator.
func (s *Server) resetOrganizationQuota(c echo.Context) error {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid organization id")
	}

	var req quotaResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !req.Resource.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown resource")
	}

	actor, err := helpers.GetPrincipalFromContext(c)
	if err != nil {
		return err
	}

	auditReq := &audit.CreateAuditLogRequest{
		OrganizationID: &orgID,
		ActorID:        &actor.ID,
		Action:         audit.ActionQuotaReset,
		Resource:       audit.ResourceQuota,
		IPAddress:      c.RealIP(),
		UserAgent:      c.Request().UserAgent(),
	}

	view, err := s.quotaSvc.ResetQuota(c.Request().Context(), orgID, req.Resource, auditReq)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}
