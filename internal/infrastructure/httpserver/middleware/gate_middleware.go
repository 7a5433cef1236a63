package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/admission"
	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/internal/core/ports"
	"github.com/tariffscope/admission/internal/infrastructure/httpserver/helpers"
)

// GateMiddleware runs the layered admission check exactly once per request.
// Handlers behind it never see a request that was not admitted through every
// applicable layer.
type GateMiddleware struct {
	admissionSvc ports.AdmissionService
	orgRepo      ports.OrganizationRepository
	decisions    *prometheus.CounterVec
	logger       *logrus.Logger

	// quotaRoutes maps method+path (echo route form) to the resource the
	// route consumes. Routes absent from the map skip the quota layer.
	quotaRoutes map[string]quota.ResourceType
	skipPaths   map[string]struct{}
}

func NewGateMiddleware(admissionSvc ports.AdmissionService, orgRepo ports.OrganizationRepository, decisions *prometheus.CounterVec, logger *logrus.Logger) *GateMiddleware {
	return &GateMiddleware{
		admissionSvc: admissionSvc,
		orgRepo:      orgRepo,
		decisions:    decisions,
		logger:       logger,
		quotaRoutes: map[string]quota.ResourceType{
			"POST /api/v1/calculations": quota.ResourceCalculations,
			"POST /api/v1/comparisons":  quota.ResourceComparisons,
		},
		skipPaths: map[string]struct{}{
			"/health":  {},
			"/metrics": {},
		},
	}
}

func (g *GateMiddleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, skip := g.skipPaths[c.Request().URL.Path]; skip {
				return next(c)
			}

			req := &admission.Request{
				IP:        c.RealIP(),
				Endpoint:  c.Request().Method + " " + c.Path(),
				UserAgent: c.Request().UserAgent(),
			}
			principal, _ := helpers.GetPrincipalRaw(c)
			req.Principal = principal

			if oc, err := g.orgContext(c, principal); err != nil {
				return err
			} else {
				req.Org = oc
			}

			decision := g.admissionSvc.Admit(c.Request().Context(), req)
			helpers.SetDecision(c, decision)
			g.setRateHeaders(c, decision)
			g.count(decision)

			if decision.Allowed {
				return next(c)
			}
			return g.renderDenied(c, decision)
		}
	}
}

// orgContext marks the request quota-relevant when the route consumes a
// metered resource and the principal belongs to an organization. It also
// rejects suspended tenants before any counter is touched.
func (g *GateMiddleware) orgContext(c echo.Context, principal *admission.Principal) (*admission.OrgContext, error) {
	resource, metered := g.quotaRoutes[c.Request().Method+" "+c.Path()]
	if !metered {
		return nil, nil
	}
	if principal == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if principal.OrganizationID == nil {
		return nil, echo.NewHTTPError(http.StatusForbidden, "no organization membership")
	}

	o, err := g.orgRepo.GetByID(c.Request().Context(), *principal.OrganizationID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusForbidden, "unknown organization")
	}
	if !o.CanAccess() {
		return nil, echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("organization is %s", o.Status))
	}
	helpers.SetOrganization(c, o)

	return &admission.OrgContext{ID: o.ID, Resource: resource}, nil
}

// setRateHeaders reports the tightest window the request passed through, and
// quota standing on metered routes, on every response including rejections.
func (g *GateMiddleware) setRateHeaders(c echo.Context, d *admission.Decision) {
	h := c.Response().Header()

	window := d.IdentityWindow
	if window == nil {
		window = d.IPWindow
	}
	if window != nil {
		h.Set("X-RateLimit-Limit", strconv.Itoa(window.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(window.Remaining()))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window.ResetAfter).Unix(), 10))
	}

	if q := d.Quota; q != nil && q.Limit != nil {
		h.Set("X-Quota-Limit", strconv.Itoa(*q.Limit))
		h.Set("X-Quota-Used", strconv.Itoa(q.Used))
		remaining := *q.Limit - q.Used
		if remaining < 0 {
			remaining = 0
		}
		h.Set("X-Quota-Remaining", strconv.Itoa(remaining))
	}
}

func (g *GateMiddleware) renderDenied(c echo.Context, d *admission.Decision) error {
	deny := d.Deny
	if deny.RetryAfterSeconds != nil {
		c.Response().Header().Set("Retry-After", strconv.Itoa(*deny.RetryAfterSeconds))
	}
	if g.logger != nil {
		g.logger.WithFields(logrus.Fields{"layer": d.Layer, "endpoint": c.Path(), "ip": c.RealIP()}).Info("request rejected by admission layer")
	}
	return c.JSON(http.StatusTooManyRequests, deny)
}

func (g *GateMiddleware) count(d *admission.Decision) {
	if g.decisions == nil {
		return
	}
	if d.Allowed {
		g.decisions.WithLabelValues("all", "admitted").Inc()
		return
	}
	g.decisions.WithLabelValues(string(d.Layer), "rejected").Inc()
}
