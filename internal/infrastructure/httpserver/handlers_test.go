package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tariffscope/admission/internal/core/domain/admission"
	"github.com/tariffscope/admission/internal/core/domain/audit"
	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/internal/core/domain/violation"
	"github.com/tariffscope/admission/internal/infrastructure/httpserver"
	"github.com/tariffscope/admission/test/mocks"
)

const testJWTSecret = "test-secret"

func issueToken(t *testing.T, userID uuid.UUID, role limit.Role, orgID *uuid.UUID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	if orgID != nil {
		claims["org_id"] = orgID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func newTestServer(deps httpserver.ServerDeps) *httpserver.Server {
	cfg := &httpserver.ServerConfig{Host: "127.0.0.1", Port: "0"}
	return httpserver.NewServer(cfg, testJWTSecret, nil, deps)
}

func activeOrgRepo(orgID uuid.UUID, plan org.Plan) *mocks.OrganizationRepositoryMock {
	return &mocks.OrganizationRepositoryMock{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
			return &org.Organization{ID: orgID, Name: "Acme Freight", Plan: plan, Status: org.StatusActive}, nil
		},
	}
}

func TestCreateCalculation_CommitsOneUnit(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()

	commits := 0
	quotaSvc := &mocks.QuotaServiceMock{
		CommitUsageFn: func(ctx context.Context, id uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error) {
			commits++
			require.Equal(t, orgID, id)
			require.Equal(t, quota.ResourceCalculations, resource)
			return quota.BuildUsageView(id, resource, 5, quota.Limit{Value: 100}, time.Now()), nil
		},
	}
	server := newTestServer(httpserver.ServerDeps{
		AdmissionService: &mocks.AdmissionServiceMock{},
		QuotaService:     quotaSvc,
		ViolationService: &mocks.ViolationServiceMock{},
		AuditService:     &mocks.AuditServiceMock{},
		OrganizationRepo: activeOrgRepo(orgID, org.PlanFree),
	})

	body, _ := json.Marshal(map[string]interface{}{
		"origin_country":      "CN",
		"destination_country": "US",
		"hs_code":             "8542.31",
		"declared_value":      1200.50,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+issueToken(t, userID, limit.RoleMember, &orgID))
	rec := httptest.NewRecorder()

	server.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, commits)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "accepted", resp["status"])
	require.NotNil(t, resp["quota"])
}

func TestCreateCalculation_RejectedRequestNeverCommits(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()

	retryAfter := 30
	lim := 100
	admissionSvc := &mocks.AdmissionServiceMock{
		AdmitFn: func(ctx context.Context, req *admission.Request) *admission.Decision {
			return &admission.Decision{
				Allowed: false,
				Layer:   admission.LayerIdentity,
				Deny: &admission.Deny{
					Error:             admission.DenyRateLimited,
					Message:           "Rate limit exceeded",
					Limit:             &lim,
					Used:              100,
					RetryAfterSeconds: &retryAfter,
				},
			}
		},
	}
	quotaSvc := &mocks.QuotaServiceMock{
		CommitUsageFn: func(ctx context.Context, id uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error) {
			t.Fatal("a rejected request must never move the usage meter")
			return nil, nil
		},
	}
	server := newTestServer(httpserver.ServerDeps{
		AdmissionService: admissionSvc,
		QuotaService:     quotaSvc,
		ViolationService: &mocks.ViolationServiceMock{},
		AuditService:     &mocks.AuditServiceMock{},
		OrganizationRepo: activeOrgRepo(orgID, org.PlanFree),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculations", bytes.NewReader([]byte(`{"origin_country":"CN","destination_country":"US","hs_code":"8542.31"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+issueToken(t, userID, limit.RoleMember, &orgID))
	rec := httptest.NewRecorder()

	server.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "30", rec.Header().Get("Retry-After"))

	var deny admission.Deny
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deny))
	require.Equal(t, admission.DenyRateLimited, deny.Error)
}

func TestGetOwnQuota_ReturnsView(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()

	quotaSvc := &mocks.QuotaServiceMock{
		ResolveFn: func(ctx context.Context, id uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error) {
			return quota.BuildUsageView(id, resource, 85, quota.Limit{Value: 100}, time.Now()), nil
		},
	}
	server := newTestServer(httpserver.ServerDeps{
		AdmissionService: &mocks.AdmissionServiceMock{},
		QuotaService:     quotaSvc,
		ViolationService: &mocks.ViolationServiceMock{},
		AuditService:     &mocks.AuditServiceMock{},
		OrganizationRepo: activeOrgRepo(orgID, org.PlanFree),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, userID, limit.RoleMember, &orgID))
	rec := httptest.NewRecorder()

	server.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view quota.UsageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, 85, view.Used)
	require.True(t, view.Warning)
	require.False(t, view.Exceeded)
}

func TestAdminSurface_RequiresAdminRole(t *testing.T) {
	orgID := uuid.New()
	server := newTestServer(httpserver.ServerDeps{
		AdmissionService: &mocks.AdmissionServiceMock{},
		QuotaService:     &mocks.QuotaServiceMock{},
		ViolationService: &mocks.ViolationServiceMock{},
		AuditService:     &mocks.AuditServiceMock{},
		OrganizationRepo: activeOrgRepo(orgID, org.PlanFree),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/violations", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, uuid.New(), limit.RoleMember, &orgID))
	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Without any token the admin surface is unauthorized.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/violations", nil)
	rec = httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminViolations_ListAndTotal(t *testing.T) {
	orgID := uuid.New()
	violationSvc := &mocks.ViolationServiceMock{
		GetViolationsFn: func(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, int, error) {
			return []*violation.Violation{{Subject: "203.0.113.9", Scope: limit.ScopeIP, Limit: 100, ObservedCount: 101}}, 1, nil
		},
	}
	server := newTestServer(httpserver.ServerDeps{
		AdmissionService: &mocks.AdmissionServiceMock{},
		QuotaService:     &mocks.QuotaServiceMock{},
		ViolationService: violationSvc,
		AuditService:     &mocks.AuditServiceMock{},
		OrganizationRepo: activeOrgRepo(orgID, org.PlanFree),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/violations?scope=ip", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, uuid.New(), limit.RoleAdmin, &orgID))
	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Violations []*violation.Violation `json:"violations"`
		Total      int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Violations, 1)
}

func TestAdminQuotaReset_NamesTheActor(t *testing.T) {
	orgID := uuid.New()
	adminID := uuid.New()

	var auditReq *audit.CreateAuditLogRequest
	quotaSvc := &mocks.QuotaServiceMock{
		ResetQuotaFn: func(ctx context.Context, id uuid.UUID, resource quota.ResourceType, req *audit.CreateAuditLogRequest) (*quota.UsageView, error) {
			auditReq = req
			return quota.BuildUsageView(id, resource, 0, quota.Limit{Value: 100}, time.Now()), nil
		},
	}
	server := newTestServer(httpserver.ServerDeps{
		AdmissionService: &mocks.AdmissionServiceMock{},
		QuotaService:     quotaSvc,
		ViolationService: &mocks.ViolationServiceMock{},
		AuditService:     &mocks.AuditServiceMock{},
		OrganizationRepo: activeOrgRepo(orgID, org.PlanFree),
	})

	body := []byte(`{"resource":"calculations"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/organizations/"+orgID.String()+"/quota/reset", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+issueToken(t, adminID, limit.RoleSuperadmin, nil))
	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, auditReq)
	require.NotNil(t, auditReq.ActorID)
	require.Equal(t, adminID, *auditReq.ActorID)
	require.NotNil(t, auditReq.OrganizationID)
	require.Equal(t, orgID, *auditReq.OrganizationID)
}

func TestHealthEndpointBypassesGate(t *testing.T) {
	server := newTestServer(httpserver.ServerDeps{
		AdmissionService: &mocks.AdmissionServiceMock{
			AdmitFn: func(ctx context.Context, req *admission.Request) *admission.Decision {
				t.Fatal("health must not consult admission")
				return nil
			},
		},
		QuotaService:     &mocks.QuotaServiceMock{},
		ViolationService: &mocks.ViolationServiceMock{},
		AuditService:     &mocks.AuditServiceMock{},
		OrganizationRepo: &mocks.OrganizationRepositoryMock{},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
