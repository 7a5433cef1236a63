package helpers

import (
	"github.com/labstack/echo/v4"

	"github.com/tariffscope/admission/internal/core/domain/admission"
	"github.com/tariffscope/admission/internal/core/domain/org"
)

type ctxKey string

const (
	keyPrincipal    ctxKey = "principal"
	keyOrganization ctxKey = "organization"
	keyDecision     ctxKey = "admission_decision"
)

func SetPrincipal(c echo.Context, p *admission.Principal) { c.Set(string(keyPrincipal), p) }
func GetPrincipalRaw(c echo.Context) (*admission.Principal, bool) {
	v := c.Get(string(keyPrincipal))
	p, ok := v.(*admission.Principal)
	return p, ok
}

func SetOrganization(c echo.Context, o *org.Organization) { c.Set(string(keyOrganization), o) }
func GetOrganizationRaw(c echo.Context) (*org.Organization, bool) {
	v := c.Get(string(keyOrganization))
	o, ok := v.(*org.Organization)
	return o, ok
}

func SetDecision(c echo.Context, d *admission.Decision) { c.Set(string(keyDecision), d) }
func GetDecisionRaw(c echo.Context) (*admission.Decision, bool) {
	v := c.Get(string(keyDecision))
	d, ok := v.(*admission.Decision)
	return d, ok
}
