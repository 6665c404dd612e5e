// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// AzureADConfig provides settings for validating caseworker tokens and
// obtaining service tokens.
type AzureADConfig interface {
	GetAzureAppClientID() string
	GetAzureAppClientSecret() string
	GetAzureOpenIDIssuer() string
	GetAzureJWKSURI() string
	GetAzureTokenEndpoint() string
	GetAdminRole() string
}

// OppgaveConfig provides settings for the external task API.
type OppgaveConfig interface {
	GetOppgaveURL() string
	GetOppgaveScope() string
}

// TilgangConfig provides settings for the access-control service.
type TilgangConfig interface {
	GetTilgangURL() string
	GetTilgangScope() string
}

// KafkaConfig provides broker and topic settings.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	GetKafkaGroupID() string
	GetOppgaveHendelseGroupID() string
	GetKafkaUsername() string
	GetKafkaPassword() string
	GetKafkaTLS() bool
	GetManuellOppgaveTopic() string
	GetOppgaveHendelseTopic() string
	GetReceiptTopic() string
	GetOkSykmeldingTopic() string
	GetAvvistSykmeldingTopic() string
	GetNotificationTopic() string
	GetConsumerRetryBackoff() time.Duration
	IsProduction() bool
}

// SchedulerConfig provides settings for the Redis-backed replay queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// LeaderConfig provides settings for leader election.
type LeaderConfig interface {
	GetElectorURL() string
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetHostname() string
	GetLeaderDebounce() time.Duration
}

// ReconcileConfig provides settings for the status poller.
type ReconcileConfig interface {
	GetPollInterval() time.Duration
	GetPollBatchSize() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env            string
	HTTPAddr       string
	DatabaseURL    string
	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	AzureAppClientID     string
	AzureAppClientSecret string
	AzureOpenIDIssuer    string
	AzureJWKSURI         string
	AzureTokenEndpoint   string
	AdminRole            string

	OppgaveURL   string
	OppgaveScope string
	TilgangURL   string
	TilgangScope string

	KafkaBrokers          []string
	KafkaGroupID          string
	OppgaveHendelseGroup  string
	KafkaUsername         string
	KafkaPassword         string
	KafkaTLS              bool
	ManuellOppgaveTopic   string
	OppgaveHendelseTopic  string
	ReceiptTopic          string
	OkSykmeldingTopic     string
	AvvistSykmeldingTopic string
	NotificationTopic     string
	ConsumerRetryBackoff  time.Duration

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	ElectorURL     string
	Hostname       string
	LeaderDebounce time.Duration

	PollInterval  time.Duration
	PollBatchSize int
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// AzureADConfig implementation
func (c *Config) GetAzureAppClientID() string     { return c.AzureAppClientID }
func (c *Config) GetAzureAppClientSecret() string { return c.AzureAppClientSecret }
func (c *Config) GetAzureOpenIDIssuer() string    { return c.AzureOpenIDIssuer }
func (c *Config) GetAzureJWKSURI() string         { return c.AzureJWKSURI }
func (c *Config) GetAzureTokenEndpoint() string   { return c.AzureTokenEndpoint }
func (c *Config) GetAdminRole() string            { return c.AdminRole }

// OppgaveConfig implementation
func (c *Config) GetOppgaveURL() string   { return c.OppgaveURL }
func (c *Config) GetOppgaveScope() string { return c.OppgaveScope }

// TilgangConfig implementation
func (c *Config) GetTilgangURL() string   { return c.TilgangURL }
func (c *Config) GetTilgangScope() string { return c.TilgangScope }

// KafkaConfig implementation
func (c *Config) GetKafkaBrokers() []string              { return c.KafkaBrokers }
func (c *Config) GetKafkaGroupID() string                { return c.KafkaGroupID }
func (c *Config) GetOppgaveHendelseGroupID() string      { return c.OppgaveHendelseGroup }
func (c *Config) GetKafkaUsername() string               { return c.KafkaUsername }
func (c *Config) GetKafkaPassword() string               { return c.KafkaPassword }
func (c *Config) GetKafkaTLS() bool                      { return c.KafkaTLS }
func (c *Config) GetManuellOppgaveTopic() string         { return c.ManuellOppgaveTopic }
func (c *Config) GetOppgaveHendelseTopic() string        { return c.OppgaveHendelseTopic }
func (c *Config) GetReceiptTopic() string                { return c.ReceiptTopic }
func (c *Config) GetOkSykmeldingTopic() string           { return c.OkSykmeldingTopic }
func (c *Config) GetAvvistSykmeldingTopic() string       { return c.AvvistSykmeldingTopic }
func (c *Config) GetNotificationTopic() string           { return c.NotificationTopic }
func (c *Config) GetConsumerRetryBackoff() time.Duration { return c.ConsumerRetryBackoff }
func (c *Config) IsProduction() bool                     { return strings.EqualFold(c.Env, "production") }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// LeaderConfig implementation
func (c *Config) GetElectorURL() string            { return c.ElectorURL }
func (c *Config) GetHostname() string              { return c.Hostname }
func (c *Config) GetLeaderDebounce() time.Duration { return c.LeaderDebounce }

// ReconcileConfig implementation
func (c *Config) GetPollInterval() time.Duration { return c.PollInterval }
func (c *Config) GetPollBatchSize() int          { return c.PollBatchSize }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	hostname, _ := os.Hostname()

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		AzureAppClientID:     getEnv("AZURE_APP_CLIENT_ID", ""),
		AzureAppClientSecret: getEnv("AZURE_APP_CLIENT_SECRET", ""),
		AzureOpenIDIssuer:    getEnv("AZURE_OPENID_CONFIG_ISSUER", ""),
		AzureJWKSURI:         getEnv("AZURE_OPENID_CONFIG_JWKS_URI", ""),
		AzureTokenEndpoint:   getEnv("AZURE_OPENID_CONFIG_TOKEN_ENDPOINT", ""),
		AdminRole:            getEnv("ADMIN_ROLE", "manuelloppgave-admin"),

		OppgaveURL:   strings.TrimRight(getEnv("OPPGAVE_URL", ""), "/"),
		OppgaveScope: getEnv("OPPGAVE_SCOPE", ""),
		TilgangURL:   strings.TrimRight(getEnv("TILGANG_URL", ""), "/"),
		TilgangScope: getEnv("TILGANG_SCOPE", ""),

		KafkaBrokers:          splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupID:          getEnv("KAFKA_GROUP_ID", "manuell-oppgave-backend"),
		OppgaveHendelseGroup:  getEnv("KAFKA_OPPGAVE_HENDELSE_GROUP_ID", ""),
		KafkaUsername:         getEnv("KAFKA_USERNAME", ""),
		KafkaPassword:         getEnv("KAFKA_PASSWORD", ""),
		KafkaTLS:              strings.EqualFold(getEnv("KAFKA_TLS", "false"), "true"),
		ManuellOppgaveTopic:   getEnv("KAFKA_MANUELL_OPPGAVE_TOPIC", "teamsykmelding.sykmelding-manuell"),
		OppgaveHendelseTopic:  getEnv("KAFKA_OPPGAVE_HENDELSE_TOPIC", "oppgavehandtering.oppgavehendelse-v1"),
		ReceiptTopic:          getEnv("KAFKA_RECEIPT_TOPIC", "teamsykmelding.sykmelding-apprec"),
		OkSykmeldingTopic:     getEnv("KAFKA_OK_SYKMELDING_TOPIC", "teamsykmelding.ok-sykmelding"),
		AvvistSykmeldingTopic: getEnv("KAFKA_AVVIST_SYKMELDING_TOPIC", "teamsykmelding.avvist-sykmelding"),
		NotificationTopic:     getEnv("KAFKA_NOTIFICATION_TOPIC", "teamsykmelding.sykmelding-notifikasjon"),
		ConsumerRetryBackoff:  mustDuration(getEnv("KAFKA_CONSUMER_RETRY_BACKOFF", "1m")),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "manuelloppgave"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),

		ElectorURL:     getEnv("ELECTOR_GET_URL", ""),
		Hostname:       getEnv("HOSTNAME", hostname),
		LeaderDebounce: mustDuration(getEnv("LEADER_DEBOUNCE", "10s")),

		PollInterval:  mustDuration(getEnv("OPPGAVE_STATUS_POLL_INTERVAL", "5m")),
		PollBatchSize: mustInt(getEnv("OPPGAVE_STATUS_POLL_BATCH_SIZE", "10")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OppgaveURL == "" {
		return nil, fmt.Errorf("OPPGAVE_URL is required")
	}
	if cfg.AzureJWKSURI == "" || cfg.AzureAppClientID == "" {
		return nil, fmt.Errorf("AZURE_OPENID_CONFIG_JWKS_URI and AZURE_APP_CLIENT_ID are required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if !cfg.CORSAllowAll && len(cfg.CORSOrigins) == 0 {
		return nil, fmt.Errorf("CORS_ORIGINS is required unless CORS_ALLOW_ALL is true")
	}
	if cfg.OppgaveHendelseGroup == "" {
		cfg.OppgaveHendelseGroup = cfg.KafkaGroupID + "-oppgavehendelse"
	}
	if cfg.OppgaveHendelseGroup == cfg.KafkaGroupID {
		return nil, fmt.Errorf("KAFKA_OPPGAVE_HENDELSE_GROUP_ID must differ from KAFKA_GROUP_ID")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.PollBatchSize < 1 {
		cfg.PollBatchSize = 10
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
