package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/ports"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	Principal *PrincipalMiddleware
	Gate      *GateMiddleware
	Logging   *LoggingMiddleware
	Metrics   *MetricsMiddleware
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	admissionSvc ports.AdmissionService,
	orgRepo ports.OrganizationRepository,
	logger *logrus.Logger,
	jwtSecret string,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
	admissionDecisions *prometheus.CounterVec,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		Principal: NewPrincipalMiddleware(jwtSecret, logger),
		Gate:      NewGateMiddleware(admissionSvc, orgRepo, admissionDecisions, logger),
		Logging:   NewLoggingMiddleware(logger),
		Metrics:   NewMetricsMiddleware(requestsTotal, requestDuration),
	}
}
