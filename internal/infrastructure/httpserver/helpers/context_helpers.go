package helpers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tariffscope/admission/internal/core/domain/admission"
	"github.com/tariffscope/admission/internal/core/domain/org"
)

// GetPrincipalFromContext returns the verified principal or 401 when the
// request carried no usable identity.
func GetPrincipalFromContext(c echo.Context) (*admission.Principal, error) {
	p, ok := GetPrincipalRaw(c)
	if !ok || p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

// GetActiveOrganizationFromContext returns the resolved organization,
// rejecting suspended or deleted tenants.
func GetActiveOrganizationFromContext(c echo.Context) (*org.Organization, error) {
	o, ok := GetOrganizationRaw(c)
	if !ok || o == nil {
		return nil, echo.NewHTTPError(http.StatusForbidden, "no organization context")
	}
	if !o.CanAccess() {
		return nil, echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("organization is %s", o.Status))
	}
	return o, nil
}

func GetJWTTokenFromContext(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}
	return token, nil
}
