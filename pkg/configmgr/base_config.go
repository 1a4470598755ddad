package configmgr

import (
	"strings"
	"time"
)

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetServerConfig() *ServerConfig
	GetLoggingConfig() *LoggingConfig
	GetDatabaseConfig() *DatabaseConfig
	GetTxQueueConfig() *TxQueueConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for the application and is expected to be in the following YAML format:
/*
name: "serialdb"
environment: "development"
version: "1.0"
logging:
  level: "debug"
server:
  port: "8080"
  concurrency: 10
  disableStartupMsg: false
  requestTimeout: 30s
database:
  host: localhost
  port: 5432
  name: main-db
  user: postgres
  password: password
  connectTimeout: 5s
txqueue:
  lockWaitTimeout: 0s
  queueWarnThreshold: 1000
*/
type BaseConfig struct {
	Name        string          `mapstructure:"name" validate:"required"`
	Environment string          `mapstructure:"environment"`
	Version     string          `mapstructure:"version"`
	Logging     *LoggingConfig  `mapstructure:"logging"`
	Server      *ServerConfig   `mapstructure:"server"`
	Database    *DatabaseConfig `mapstructure:"database"`
	TxQueue     *TxQueueConfig  `mapstructure:"txqueue"`
}

type ServerConfig struct {
	Port                  string        `mapstructure:"port" validate:"required,numeric"`
	Concurrency           int           `mapstructure:"concurrency" validate:"gte=0"`
	DisableStartupMessage bool          `mapstructure:"disableStartupMsg"`
	RequestTimeout        time.Duration `mapstructure:"requestTimeout" validate:"gte=0"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// DatabaseConfig - connection settings of the single shared database connection.
type DatabaseConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int32         `mapstructure:"port" validate:"gt=0"`
	Name           string        `mapstructure:"name" validate:"required"`
	User           string        `mapstructure:"user" validate:"required"`
	Password       string        `mapstructure:"password" validate:"required"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" validate:"gte=0"`
}

// TxQueueConfig - transaction serialization settings.
//
// LockWaitTimeout bounds how long a transaction boundary waits for outstanding locking
// operations; zero waits forever. QueueWarnThreshold logs a warning when the deferred
// operation queue grows past that length; zero disables the warning.
type TxQueueConfig struct {
	LockWaitTimeout    time.Duration `mapstructure:"lockWaitTimeout" validate:"gte=0"`
	QueueWarnThreshold int           `mapstructure:"queueWarnThreshold" validate:"gte=0"`
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(strings.ToUpper(cfg.Environment))
}

func (cfg BaseConfig) GetServerConfig() *ServerConfig {
	return cfg.Server
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	if cfg.Logging == nil {
		return &LoggingConfig{Level: "info"}
	}

	return cfg.Logging
}

func (cfg BaseConfig) GetDatabaseConfig() *DatabaseConfig {
	return cfg.Database
}

// GetTxQueueConfig - returns the txqueue section, or the zero config (wait forever, no warning) when absent.
func (cfg BaseConfig) GetTxQueueConfig() *TxQueueConfig {
	if cfg.TxQueue == nil {
		return &TxQueueConfig{}
	}

	return cfg.TxQueue
}
