package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")
	api.POST("/calculations", s.createCalculation)
	api.POST("/comparisons", s.createComparison)
	api.GET("/quota", s.getOwnQuota)

	admin := api.Group("/admin", s.middleware.Principal.RequireAdmin())
	admin.GET("/violations", s.getViolations)
	admin.GET("/violations/top", s.getTopViolators)
	admin.GET("/organizations/:id/usage", s.getOrganizationUsage)
	admin.POST("/organizations/:id/quota/reset", s.resetOrganizationQuota)
	admin.GET("/audit-logs", s.getAuditLogs)
}
