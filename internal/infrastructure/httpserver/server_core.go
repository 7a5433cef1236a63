package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/ports"
	customMiddleware "github.com/tariffscope/admission/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	AllowedOrigins []string
	Environment    string
}

type ServerDeps struct {
	AdmissionService ports.AdmissionService
	QuotaService     ports.QuotaService
	ViolationService ports.ViolationService
	AuditService     ports.AuditService
	OrganizationRepo ports.OrganizationRepository
	HealthCheckers   []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	admissionSvc   ports.AdmissionService
	quotaSvc       ports.QuotaService
	violationSvc   ports.ViolationService
	auditSvc       ports.AuditService
	orgRepo        ports.OrganizationRepository
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, jwtSecret string, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		admissionSvc:   deps.AdmissionService,
		quotaSvc:       deps.QuotaService,
		violationSvc:   deps.ViolationService,
		auditSvc:       deps.AuditService,
		orgRepo:        deps.OrganizationRepo,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.AdmissionService,
			deps.OrganizationRepo,
			logger,
			jwtSecret,
			GetRequestsTotal(),
			GetRequestDuration(),
			GetAdmissionDecisions(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
