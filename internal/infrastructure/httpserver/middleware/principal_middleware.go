package middleware

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/admission"
	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/infrastructure/httpserver/helpers"
)

// PrincipalMiddleware extracts the verified identity from the token the
// identity provider issued. This subsystem performs no authentication of its
// own: a request without a token proceeds anonymously through the IP layer
// only, while a malformed or badly signed token is rejected outright.
type PrincipalMiddleware struct {
	jwtSecret string
	logger    *logrus.Logger
}

func NewPrincipalMiddleware(jwtSecret string, logger *logrus.Logger) *PrincipalMiddleware {
	return &PrincipalMiddleware{jwtSecret: jwtSecret, logger: logger}
}

type principalClaims struct {
	Role           string `json:"role"`
	OrganizationID string `json:"org_id"`
	jwt.RegisteredClaims
}

// ExtractPrincipal resolves the principal when an Authorization header is
// present and stores it in the request context.
func (m *PrincipalMiddleware) ExtractPrincipal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return next(c)
			}

			tokenString, err := helpers.GetJWTTokenFromContext(c)
			if err != nil {
				return err
			}

			principal, err := m.parse(tokenString)
			if err != nil {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"ip": c.RealIP(), "path": c.Request().URL.Path}).WithError(err).Warn("token validation failed")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			helpers.SetPrincipal(c, principal)
			return next(c)
		}
	}
}

// RequireAdmin gates the admin introspection surface.
func (m *PrincipalMiddleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := helpers.GetPrincipalFromContext(c)
			if err != nil {
				return err
			}
			if !p.Role.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden, "admin role required")
			}
			return next(c)
		}
	}
}

func (m *PrincipalMiddleware) parse(tokenString string) (*admission.Principal, error) {
	claims := &principalClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	role := limit.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role claim %q", claims.Role)
	}

	principal := &admission.Principal{ID: userID, Role: role}
	if claims.OrganizationID != "" {
		orgID, err := uuid.Parse(claims.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("invalid org claim: %w", err)
		}
		principal.OrganizationID = &orgID
	}
	return principal, nil
}
