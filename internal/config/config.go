package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the coordinator.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Session    SessionConfig
	EVM        ChainConfig
	DAG        ChainConfig
	Analysis   AnalysisConfig
	Reconciler ReconcilerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SessionConfig defines wallet session parameters.
type SessionConfig struct {
	JWTSecret  string
	TTLMinutes int
}

// ChainConfig parameterizes one ledger adapter. ContractRef is the deployed
// registry contract (EVM) or program reference (DAG); ExplorerURLTemplate is
// used only for audit links, never for logic.
type ChainConfig struct {
	Endpoint              string
	ContractRef           string
	ExplorerURLTemplate   string
	ReceiptTimeoutSeconds int
	GracePeriodSeconds    int
}

// AnalysisConfig points at the best-effort incident enrichment service.
type AnalysisConfig struct {
	Endpoint       string
	TimeoutSeconds int
}

// ReconcilerConfig controls the periodic reconciliation sweep.
type ReconcilerConfig struct {
	SweepIntervalSeconds int
	BatchSize            int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "incident-coordinator"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			JWTSecret:  getEnv("SESSION_JWT_SECRET", "dev-secret"),
			TTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 240),
		},
		EVM: ChainConfig{
			Endpoint:              getEnv("EVM_RPC_ENDPOINT", "http://127.0.0.1:8545"),
			ContractRef:           getEnv("EVM_REGISTRY_CONTRACT", ""),
			ExplorerURLTemplate:   getEnv("EVM_EXPLORER_URL_TEMPLATE", "https://explorer.example.com/tx/%s"),
			ReceiptTimeoutSeconds: getEnvAsInt("EVM_RECEIPT_TIMEOUT_SECONDS", 90),
			GracePeriodSeconds:    getEnvAsInt("EVM_GRACE_PERIOD_SECONDS", 600),
		},
		DAG: ChainConfig{
			Endpoint:              getEnv("DAG_NODE_ENDPOINT", "http://127.0.0.1:9090"),
			ContractRef:           getEnv("DAG_PROGRAM_REF", ""),
			ExplorerURLTemplate:   getEnv("DAG_EXPLORER_URL_TEMPLATE", "https://dagexplorer.example.com/transaction/%s"),
			ReceiptTimeoutSeconds: getEnvAsInt("DAG_RECEIPT_TIMEOUT_SECONDS", 60),
			GracePeriodSeconds:    getEnvAsInt("DAG_GRACE_PERIOD_SECONDS", 300),
		},
		Analysis: AnalysisConfig{
			Endpoint:       getEnv("ANALYSIS_ENDPOINT", ""),
			TimeoutSeconds: getEnvAsInt("ANALYSIS_TIMEOUT_SECONDS", 10),
		},
		Reconciler: ReconcilerConfig{
			SweepIntervalSeconds: getEnvAsInt("RECONCILER_SWEEP_INTERVAL_SECONDS", 60),
			BatchSize:            getEnvAsInt("RECONCILER_BATCH_SIZE", 50),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ReceiptTimeout returns the per-chain receipt wait duration.
func (c ChainConfig) ReceiptTimeout() time.Duration {
	if c.ReceiptTimeoutSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.ReceiptTimeoutSeconds) * time.Second
}

// GracePeriod returns how long an unconfirmed transaction is waited on
// before reconciliation treats it as failed.
func (c ChainConfig) GracePeriod() time.Duration {
	if c.GracePeriodSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// SweepInterval returns the reconciliation sweep cadence.
func (r ReconcilerConfig) SweepInterval() time.Duration {
	if r.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.SweepIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
