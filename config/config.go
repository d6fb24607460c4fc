package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	LogFormat   string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Elastic     ElasticsearchConfig
	ServiceBus  ServiceBusConfig
	NewRelic    NewRelicConfig
	Worker      WorkerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
	MaxIdle  int
	MaxConn  int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// ElasticsearchConfig holds Elasticsearch configuration
type ElasticsearchConfig struct {
	URLs     []string
	Username string
	Password string
	Index    string
	Enabled  bool
}

// ServiceBusConfig holds Azure Service Bus configuration
type ServiceBusConfig struct {
	ConnectionString string
	QueueName        string
	Enabled          bool
}

// NewRelicConfig holds New Relic configuration
type NewRelicConfig struct {
	Enabled    bool
	LicenseKey string
	AppName    string
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	ReprocessInterval time.Duration
	ReprocessLimit    int
}

// LoadConfig reads configuration from file or environment variables.
// For example, FISCAL_DATABASE_HOST overrides database.host.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, ENV vars and defaults still apply
	}

	v.SetEnvPrefix("FISCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := Config{
		Environment: v.GetString("environment"),
		LogLevel:    v.GetString("logging.level"),
		LogFormat:   v.GetString("logging.format"),
		Server: ServerConfig{
			Address:        v.GetString("server.address"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.name"),
			SSLMode:  v.GetString("database.sslmode"),
			Debug:    v.GetBool("database.debug"),
			MaxIdle:  v.GetInt("database.max_idle_conns"),
			MaxConn:  v.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Enabled:  v.GetBool("redis.enabled"),
		},
		Elastic: ElasticsearchConfig{
			URLs:     v.GetStringSlice("elastic.urls"),
			Username: v.GetString("elastic.username"),
			Password: v.GetString("elastic.password"),
			Index:    v.GetString("elastic.index"),
			Enabled:  v.GetBool("elastic.enabled"),
		},
		ServiceBus: ServiceBusConfig{
			ConnectionString: v.GetString("servicebus.connection_string"),
			QueueName:        v.GetString("servicebus.queue_name"),
			Enabled:          v.GetBool("servicebus.enabled"),
		},
		NewRelic: NewRelicConfig{
			Enabled:    v.GetBool("newrelic.enabled"),
			LicenseKey: v.GetString("newrelic.license_key"),
			AppName:    v.GetString("newrelic.app_name"),
		},
		Worker: WorkerConfig{
			ReprocessInterval: v.GetDuration("worker.reprocess_interval"),
			ReprocessLimit:    v.GetInt("worker.reprocess_limit"),
		},
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.max_upload_bytes", int64(64<<20))

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "fiscal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.debug", false)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", true)

	v.SetDefault("elastic.urls", []string{"http://localhost:9200"})
	v.SetDefault("elastic.index", "fiscal-documents")
	v.SetDefault("elastic.enabled", false)

	v.SetDefault("servicebus.queue_name", "fiscal-documents")
	v.SetDefault("servicebus.enabled", false)

	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.app_name", "Fiscal Document Service")

	v.SetDefault("worker.reprocess_interval", "5m")
	v.SetDefault("worker.reprocess_limit", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
