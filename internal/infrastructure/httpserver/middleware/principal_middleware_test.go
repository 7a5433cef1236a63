package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tariffscope/admission/internal/core/domain/admission"
	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/infrastructure/httpserver/helpers"
	customMiddleware "github.com/tariffscope/admission/internal/infrastructure/httpserver/middleware"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub, role, orgID string, secret string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	if orgID != "" {
		claims["org_id"] = orgID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func runExtract(t *testing.T, authHeader string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	m := customMiddleware.NewPrincipalMiddleware(testSecret, nil)
	handler := m.ExtractPrincipal()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return c, handler(c)
}

func TestExtractPrincipal_ValidToken(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	token := signToken(t, userID.String(), "admin", orgID.String(), testSecret)

	c, err := runExtract(t, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := helpers.GetPrincipalRaw(c)
	if !ok || p == nil {
		t.Fatal("expected a principal in context")
	}
	if p.ID != userID || p.Role != limit.RoleAdmin {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if p.OrganizationID == nil || *p.OrganizationID != orgID {
		t.Fatal("expected the organization claim to carry through")
	}
}

func TestExtractPrincipal_NoHeaderIsAnonymous(t *testing.T) {
	c, err := runExtract(t, "")
	if err != nil {
		t.Fatalf("anonymous requests must pass through: %v", err)
	}
	if _, ok := helpers.GetPrincipalRaw(c); ok {
		t.Fatal("no principal expected without a token")
	}
}

func TestExtractPrincipal_BadSignatureRejected(t *testing.T) {
	token := signToken(t, uuid.New().String(), "member", "", "wrong-secret")
	_, err := runExtract(t, "Bearer "+token)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestExtractPrincipal_UnknownRoleRejected(t *testing.T) {
	token := signToken(t, uuid.New().String(), "root", "", testSecret)
	_, err := runExtract(t, "Bearer "+token)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()
	m := customMiddleware.NewPrincipalMiddleware(testSecret, nil)
	handler := m.RequireAdmin()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	// Member principals are refused.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/violations", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	helpers.SetPrincipal(c, &admission.Principal{ID: uuid.New(), Role: limit.RoleMember})
	if err := handler(c); err == nil {
		t.Fatal("member must not reach the admin surface")
	}

	// Admins pass.
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/admin/violations", nil), httptest.NewRecorder())
	helpers.SetPrincipal(c, &admission.Principal{ID: uuid.New(), Role: limit.RoleSuperadmin})
	if err := handler(c); err != nil {
		t.Fatalf("superadmin must pass: %v", err)
	}
}
