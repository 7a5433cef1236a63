package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/domain/quota"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Identity  IdentityConfig
	Admission AdmissionConfig
	Cleanup   CleanupConfig
	Notifier  NotifierConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

// IdentityConfig covers the shim that extracts the verified principal issued
// by the external identity provider. The shared secret verifies the token
// signature; no credential handling happens in this service.
type IdentityConfig struct {
	JWTSecret string
}

// AdmissionConfig carries the throttle layers' tunables. The failure policy
// is a named, operator-visible decision, never an accident of implementation.
type AdmissionConfig struct {
	Window        time.Duration
	IPLimit       int
	RoleLimits    limit.RoleLimits
	PlanLimits    quota.PlanLimits
	FailurePolicy limit.FailurePolicy
	StoreTimeout  time.Duration
	KeyPrefix     string
	UpgradeURL    string
	// OrgCacheTTL bounds how long a stale plan can over/under-enforce when
	// the billing collaborator forgets to send an invalidation event.
	OrgCacheTTL time.Duration
}

type CleanupConfig struct {
	// WindowSweepSchedule / ViolationPurgeSchedule are cron expressions.
	WindowSweepSchedule    string
	ViolationPurgeSchedule string
	ViolationRetention     time.Duration
	AuditRetention         time.Duration
}

type NotifierConfig struct {
	// Driver selects the warning-zone notifier: "log" or "sendgrid".
	Driver         string
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	BaseURL        string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	failurePolicy, err := limit.ParseFailurePolicy(getEnv("ADMISSION_FAIL_POLICY", string(limit.FailOpen)))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMISSION_FAIL_POLICY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:  getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:   getEnv("TLS_KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "admission_db"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Identity: IdentityConfig{
			JWTSecret: getEnvRequired("JWT_SECRET"),
		},
		Admission: AdmissionConfig{
			Window:        getDurationEnv("ADMISSION_WINDOW", time.Minute),
			IPLimit:       getIntEnv("ADMISSION_IP_LIMIT", 100),
			RoleLimits:    loadRoleLimits(),
			PlanLimits:    loadPlanLimits(),
			FailurePolicy: failurePolicy,
			StoreTimeout:  getDurationEnv("ADMISSION_STORE_TIMEOUT", 500*time.Millisecond),
			KeyPrefix:     getEnv("ADMISSION_KEY_PREFIX", "ratelimit"),
			UpgradeURL:    getEnv("ADMISSION_UPGRADE_URL", "https://app.tariffscope.com/billing/upgrade"),
			OrgCacheTTL:   getDurationEnv("ADMISSION_ORG_CACHE_TTL", 5*time.Minute),
		},
		Cleanup: CleanupConfig{
			WindowSweepSchedule:    getEnv("CLEANUP_WINDOW_SCHEDULE", "@hourly"),
			ViolationPurgeSchedule: getEnv("CLEANUP_VIOLATION_SCHEDULE", "@daily"),
			ViolationRetention:     getDurationEnv("CLEANUP_VIOLATION_RETENTION", 30*24*time.Hour),
			AuditRetention:         getDurationEnv("CLEANUP_AUDIT_RETENTION", 90*24*time.Hour),
		},
		Notifier: NotifierConfig{
			Driver:         getEnv("NOTIFIER_DRIVER", "log"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("FROM_EMAIL", "noreply@tariffscope.com"),
			FromName:       getEnv("FROM_NAME", "TariffScope"),
			BaseURL:        getEnv("BASE_URL", "https://app.tariffscope.com"),
		},
	}

	// Build database DSN
	cfg.Database.DSN = fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects malformed limit tables and tunables at startup. An
// unknown plan, role or resource is a configuration fault that must prevent
// the service from starting rather than fail requests unpredictably.
func (c *Config) Validate() error {
	if c.Admission.IPLimit <= 0 {
		return fmt.Errorf("config: ADMISSION_IP_LIMIT must be positive, got %d", c.Admission.IPLimit)
	}
	if c.Admission.Window <= 0 {
		return fmt.Errorf("config: ADMISSION_WINDOW must be positive, got %s", c.Admission.Window)
	}
	if c.Admission.StoreTimeout <= 0 {
		return fmt.Errorf("config: ADMISSION_STORE_TIMEOUT must be positive, got %s", c.Admission.StoreTimeout)
	}
	if err := c.Admission.RoleLimits.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Admission.PlanLimits.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Notifier.Driver {
	case "log":
	case "sendgrid":
		if c.Notifier.SendGridAPIKey == "" {
			return fmt.Errorf("config: NOTIFIER_DRIVER=sendgrid requires SENDGRID_API_KEY")
		}
	default:
		return fmt.Errorf("config: unknown NOTIFIER_DRIVER %q", c.Notifier.Driver)
	}
	return nil
}

// loadRoleLimits starts from the published role tiers and applies per-role
// env overrides.
func loadRoleLimits() limit.RoleLimits {
	rl := limit.DefaultRoleLimits()
	overrides := map[limit.Role]string{
		limit.RoleViewer: "ADMISSION_VIEWER_LIMIT",
		limit.RoleMember: "ADMISSION_MEMBER_LIMIT",
		limit.RoleAdmin:  "ADMISSION_ADMIN_LIMIT",
	}
	for role, key := range overrides {
		if v := getIntEnv(key, 0); v > 0 {
			rl[role] = limit.RoleLimit{RequestsPerWindow: v}
		}
	}
	return rl
}

// loadPlanLimits starts from the published plan allowances and applies
// per-plan-per-resource env overrides (e.g. QUOTA_FREE_CALCULATIONS=200).
// The explicit reload trigger re-runs this loader.
func loadPlanLimits() quota.PlanLimits {
	pl := quota.DefaultPlanLimits()
	envName := func(p org.Plan, r quota.ResourceType) string {
		return fmt.Sprintf("QUOTA_%s_%s", strings.ToUpper(string(p)), strings.ToUpper(string(r)))
	}
	for _, plan := range org.Plans() {
		for _, res := range quota.ResourceTypes() {
			if v := getIntEnv(envName(plan, res), 0); v > 0 {
				pl[plan][res] = quota.Limit{Value: v}
			}
		}
	}
	return pl
}

// ReloadPlanLimits is the explicit reload trigger for the plan table.
func ReloadPlanLimits() quota.PlanLimits {
	return loadPlanLimits()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
