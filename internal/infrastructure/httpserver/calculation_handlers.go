package httpserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/internal/infrastructure/httpserver/helpers"
)

// Tariff arithmetic lives in a separate service; these handlers accept the
// work order, commit the billable unit, and hand back an accepted record.
// The admission gate has already run, so a request reaching a handler is
// admitted through every applicable layer.

type createCalculationRequest struct {
	OriginCountry      string  `json:"origin_country"`
	DestinationCountry string  `json:"destination_country"`
	HSCode             string  `json:"hs_code"`
	DeclaredValue      float64 `json:"declared_value"`
}

type createComparisonRequest struct {
	OriginCountry string   `json:"origin_country"`
	Destinations  []string `json:"destinations"`
	HSCode        string   `json:"hs_code"`
	DeclaredValue float64  `json:"declared_value"`
}

func (s *Server) createCalculation(c echo.Context) error {
	var req createCalculationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.OriginCountry == "" || req.DestinationCountry == "" || req.HSCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "origin_country, destination_country and hs_code are required")
	}

	o, err := helpers.GetActiveOrganizationFromContext(c)
	if err != nil {
		return err
	}

	// The unit is committed only after the request is accepted as billable
	// work. Rejected attempts above never reach this point and never meter.
	view, err := s.quotaSvc.CommitUsage(c.Request().Context(), o.ID, quota.ResourceCalculations)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record usage")
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"id":         uuid.New(),
		"status":     "accepted",
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"request":    req,
		"quota":      view,
	})
}

func (s *Server) createComparison(c echo.Context) error {
	var req createComparisonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.OriginCountry == "" || len(req.Destinations) < 2 || req.HSCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "origin_country, hs_code and at least two destinations are required")
	}

	o, err := helpers.GetActiveOrganizationFromContext(c)
	if err != nil {
		return err
	}

	view, err := s.quotaSvc.CommitUsage(c.Request().Context(), o.ID, quota.ResourceComparisons)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record usage")
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"id":         uuid.New(),
		"status":     "accepted",
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"request":    req,
		"quota":      view,
	})
}

// getOwnQuota reports the caller's organization standing for dashboards.
// Read-only: it never moves the meter.
func (s *Server) getOwnQuota(c echo.Context) error {
	p, err := helpers.GetPrincipalFromContext(c)
	if err != nil {
		return err
	}
	if p.OrganizationID == nil {
		return echo.NewHTTPError(http.StatusForbidden, "no organization membership")
	}

	resource := quota.ResourceType(c.QueryParam("resource"))
	if resource == "" {
		resource = quota.ResourceCalculations
	}
	if !resource.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown resource")
	}

	view, err := s.quotaSvc.Resolve(c.Request().Context(), *p.OrganizationID, resource)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}
