package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func loadEnvString(key string, result *string) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	*result = s
}

func loadEnvUint(key string, result *uint) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = uint(n)
}

func loadEnvInt(key string, result *int) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = n
}

func loadEnvDuration(key string, result *time.Duration) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return
	}
	*result = d
}

/* PgSQL Configuration */

type pgSqlConfig struct {
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Database string `json:"database"`
	SslMode  string `json:"ssl_mode"`
	User     string `json:"user"`
	Password string `json:"password"`
}

func (p pgSqlConfig) ConnStr() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s", p.Host, p.Port, p.User, p.Password, p.Database, p.SslMode)
}

func defaultPgSql() pgSqlConfig {
	return pgSqlConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "llmstxt",
		User:     "",
		Password: "",
		SslMode:  "disable",
	}
}

func (p *pgSqlConfig) loadFromEnv() {
	loadEnvString("POSTGRES_HOST", &p.Host)
	loadEnvUint("POSTGRES_PORT", &p.Port)
	loadEnvString("POSTGRES_DB_NAME", &p.Database)
	loadEnvString("POSTGRES_SSLMODE", &p.SslMode)
	loadEnvString("POSTGRES_USERNAME", &p.User)
	loadEnvString("POSTGRES_PASSWORD", &p.Password)
}

/* Listen Configuration */

type listenConfig struct {
	Host string `json:"host"`
	Port uint   `json:"port"`
}

func (l listenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

func defaultListenConfig() listenConfig {
	return listenConfig{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

func (l *listenConfig) loadFromEnv() {
	loadEnvString("LISTEN_HOST", &l.Host)
	loadEnvUint("LISTEN_PORT", &l.Port)
}

/* NATS Configuration */

type natsConfig struct {
	Host     string
	Port     uint
	Username string
	Password string
}

func (c *natsConfig) loadFromEnv() {
	loadEnvString("NATS_HOST", &c.Host)
	loadEnvUint("NATS_PORT", &c.Port)
	c.Username = getEnv("NATS_USER", "")
	c.Password = getEnv("NATS_PASSWORD", "")
}

func (c *natsConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

func defaultNatsConfig() natsConfig {
	return natsConfig{
		Host: "localhost",
		Port: 4222,
	}
}

/* Redis Configuration */

type redisConfig struct {
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r *redisConfig) loadFromEnv() {
	loadEnvString("REDIS_HOST", &r.Host)
	loadEnvUint("REDIS_PORT", &r.Port)
	loadEnvString("REDIS_PASSWORD", &r.Password)
	loadEnvInt("REDIS_DB", &r.DB)
}

func defaultRedisConfig() redisConfig {
	return redisConfig{
		Host:     "localhost",
		Port:     6379,
		Password: "",
		DB:       0,
	}
}

/* GCS Configuration */

type GCSConfig struct {
	ProjectID       string
	CredentialsFile string
	Bucket          string
}

func (g *GCSConfig) loadFromEnv() {
	g.ProjectID = getEnv("GCS_PROJECT_ID", "")
	g.CredentialsFile = getEnv("GCS_CREDENTIALS_FILE", "")
	g.Bucket = getEnv("GCS_STORAGE_BUCKET", "")
}

func defaultGcsConfig() GCSConfig {
	return GCSConfig{}
}

/* Security Configuration */

type securityConfig struct {
	BackendApiKey string
}

func (s *securityConfig) loadFromEnv() {
	s.BackendApiKey = getEnv("BACKEND_API_KEY", "")
}

func defaultSecurityConfig() securityConfig {
	return securityConfig{}
}

/* LLM Provider Configuration */

type LLMConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	GoogleAPIKey    string
	GeminiModel     string
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	CallTimeout     time.Duration
}

func (l *LLMConfig) loadFromEnv() {
	loadEnvString("ANTHROPIC_API_KEY", &l.AnthropicAPIKey)
	loadEnvString("ANTHROPIC_MODEL", &l.AnthropicModel)
	loadEnvString("GOOGLE_API_KEY", &l.GoogleAPIKey)
	loadEnvString("GEMINI_MODEL", &l.GeminiModel)
	loadEnvInt("LLM_MAX_ATTEMPTS", &l.MaxAttempts)
	loadEnvDuration("LLM_INITIAL_DELAY", &l.InitialDelay)
	loadEnvDuration("LLM_MAX_DELAY", &l.MaxDelay)
	loadEnvDuration("LLM_CALL_TIMEOUT", &l.CallTimeout)
}

func defaultLLMConfig() LLMConfig {
	return LLMConfig{
		AnthropicModel: "claude-sonnet-4-20250514",
		GeminiModel:    "gemini-2.0-flash",
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       30 * time.Second,
		CallTimeout:    90 * time.Second,
	}
}

/* Pipeline Configuration */

type PipelineConfig struct {
	BatchSize        int
	SummaryCacheTTL  time.Duration
	FailureThreshold float64
	FetchTimeout     time.Duration
	ContentRetention time.Duration
	SweepBudget      time.Duration
}

func (p *PipelineConfig) loadFromEnv() {
	loadEnvInt("PIPELINE_BATCH_SIZE", &p.BatchSize)
	loadEnvDuration("PIPELINE_SUMMARY_CACHE_TTL", &p.SummaryCacheTTL)
	loadEnvDuration("PIPELINE_FETCH_TIMEOUT", &p.FetchTimeout)
	loadEnvDuration("PIPELINE_CONTENT_RETENTION", &p.ContentRetention)
	loadEnvDuration("PIPELINE_SWEEP_BUDGET", &p.SweepBudget)
	if s, ok := os.LookupEnv("PIPELINE_FAILURE_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			p.FailureThreshold = f
		}
	}
}

func defaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BatchSize:        10,
		SummaryCacheTTL:  24 * time.Hour,
		FailureThreshold: 0.8,
		FetchTimeout:     30 * time.Second,
		ContentRetention: 7 * 24 * time.Hour,
		SweepBudget:      30 * time.Second,
	}
}

/* Queue Configuration */

type QueueDefaults struct {
	Concurrency     int
	LockDuration    time.Duration
	StalledInterval time.Duration
	RetryLimit      int
	BackoffDelay    time.Duration
}

func (q *QueueDefaults) loadFromEnv() {
	loadEnvInt("QUEUE_CONCURRENCY", &q.Concurrency)
	loadEnvDuration("QUEUE_LOCK_DURATION", &q.LockDuration)
	loadEnvDuration("QUEUE_STALLED_INTERVAL", &q.StalledInterval)
	loadEnvInt("QUEUE_RETRY_LIMIT", &q.RetryLimit)
	loadEnvDuration("QUEUE_BACKOFF_DELAY", &q.BackoffDelay)
}

func defaultQueueDefaults() QueueDefaults {
	return QueueDefaults{
		Concurrency:     3,
		LockDuration:    10 * time.Minute,
		StalledInterval: 30 * time.Second,
		RetryLimit:      2,
		BackoffDelay:    time.Minute,
	}
}

type Config struct {
	Listen   listenConfig
	PgSql    pgSqlConfig
	Security securityConfig
	Nats     natsConfig
	Redis    redisConfig
	GCS      GCSConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Queue    QueueDefaults
}

func (c *Config) LoadFromEnv() {
	c.Listen.loadFromEnv()
	c.PgSql.loadFromEnv()
	c.Security.loadFromEnv()
	c.Nats.loadFromEnv()
	c.Redis.loadFromEnv()
	c.GCS.loadFromEnv()
	c.LLM.loadFromEnv()
	c.Pipeline.loadFromEnv()
	c.Queue.loadFromEnv()
}

func DefaultConfig() Config {
	return Config{
		Listen:   defaultListenConfig(),
		PgSql:    defaultPgSql(),
		Security: defaultSecurityConfig(),
		Nats:     defaultNatsConfig(),
		Redis:    defaultRedisConfig(),
		GCS:      defaultGcsConfig(),
		LLM:      defaultLLMConfig(),
		Pipeline: defaultPipelineConfig(),
		Queue:    defaultQueueDefaults(),
	}
}
