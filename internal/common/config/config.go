// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Status        StatusConfig            `mapstructure:"status"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Alerts        AlertsConfig            `mapstructure:"alerts"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=jobboard-workers",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
	JobsIndex string   `mapstructure:"jobs_index"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// StatusConfig controls the status mutator.
type StatusConfig struct {
	EnforceTransitions bool `mapstructure:"enforce_transitions"`
}

type NotificationConfig struct {
	Queue struct {
		Driver          string `mapstructure:"driver"` // "redis" or "camunda"
		Key             string `mapstructure:"key"`
		DeadLetterKey   string `mapstructure:"dead_letter_key"`
		ProcessID       string `mapstructure:"process_id"`
		PublishTimeout  int    `mapstructure:"publish_timeout"` // milliseconds
		ConsumerWorkers int    `mapstructure:"consumer_workers"`
		PopTimeout      int    `mapstructure:"pop_timeout"` // milliseconds
		MaxAttempts     int    `mapstructure:"max_attempts"`
	} `mapstructure:"queue"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool     `mapstructure:"enabled"`
		Statuses []string `mapstructure:"statuses"`
		SenderID string   `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	RegistryPath    string `mapstructure:"registry_path"`
	ContactCacheTTL int    `mapstructure:"contact_cache_ttl"` // seconds
}

type AlertsConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Interval   int  `mapstructure:"interval"` // seconds
	MaxMatches int  `mapstructure:"max_matches"`
}

type AuthConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RequiredScope string `mapstructure:"required_scope"`
	Keycloak      struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		CacheTTL     int    `mapstructure:"cache_ttl"` // seconds, 0 disables
	} `mapstructure:"keycloak"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
