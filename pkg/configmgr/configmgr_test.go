package configmgr_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcodd23/go-serialtx/pkg/configmgr"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shared configuration content
var configContent = `
name: "serialdb"
environment: "development"
version: "latest"
logging:
  level: "debug"
server:
  port: "8080"
  concurrency: 10
  disableStartupMsg: false
database:
  host: localhost
  port: 5432
  name: main-db
  user: postgres
  password: password
  connectTimeout: 3s
txqueue:
  lockWaitTimeout: 250ms
  queueWarnThreshold: 100
`

type TestConfiguration struct {
	configmgr.BaseConfig `mapstructure:",squash"`
}

func createTestConfigFile(t *testing.T, content string) string {
	file, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	defer file.Close()

	_, err = file.WriteString(content)
	if err != nil {
		t.Fatalf("Failed to write to temp config file: %v", err)
	}

	return file.Name()
}

func TestLoadConfigFromFile(t *testing.T) {
	configFilePath := createTestConfigFile(t, configContent)
	defer os.Remove(configFilePath)

	var cfg TestConfiguration
	err := configmgr.ReadConfiguration(configFilePath, &cfg)
	assert.NoError(t, err)
	assert.Equal(t, "serialdb", cfg.GetServiceName())
	assert.Equal(t, "development", cfg.GetEnvironment())
	assert.True(t, cfg.IsLocalEnvironment())
	assert.NotNil(t, cfg.Logging)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NotNil(t, cfg.Server)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.Concurrency)
	assert.Equal(t, false, cfg.Server.DisableStartupMessage)

	require.NotNil(t, cfg.GetDatabaseConfig())
	assert.Equal(t, "localhost", cfg.GetDatabaseConfig().Host)
	assert.Equal(t, int32(5432), cfg.GetDatabaseConfig().Port)
	assert.Equal(t, "main-db", cfg.GetDatabaseConfig().Name)
	assert.Equal(t, 3*time.Second, cfg.GetDatabaseConfig().ConnectTimeout)

	assert.Equal(t, 250*time.Millisecond, cfg.GetTxQueueConfig().LockWaitTimeout)
	assert.Equal(t, 100, cfg.GetTxQueueConfig().QueueWarnThreshold)
}

func TestEnvVariableOverridesConfig(t *testing.T) {
	configFilePath := createTestConfigFile(t, configContent)
	defer os.Remove(configFilePath)

	// Set environment variable to override server port and the lock wait timeout
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TXQUEUE_LOCKWAITTIMEOUT", "2s")

	var cfg TestConfiguration
	err := configmgr.ReadConfiguration(configFilePath, &cfg)
	assert.NoError(t, err)
	assert.Equal(t, "serialdb", cfg.GetServiceName())
	assert.NotNil(t, cfg.Server)
	assert.Equal(t, "9090", cfg.Server.Port) // Expecting overridden value
	assert.Equal(t, 10, cfg.Server.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.GetTxQueueConfig().LockWaitTimeout)
}

func TestMissingSectionsFallBackToDefaults(t *testing.T) {
	configFilePath := createTestConfigFile(t, "name: \"bare\"\n")
	defer os.Remove(configFilePath)

	var cfg TestConfiguration
	err := configmgr.ReadConfiguration(configFilePath, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.GetLoggingConfig().Level)
	assert.Equal(t, time.Duration(0), cfg.GetTxQueueConfig().LockWaitTimeout)
	assert.Nil(t, cfg.GetDatabaseConfig())
}

func TestUndecodableConfigIsAGeneralError(t *testing.T) {
	configFilePath := createTestConfigFile(t, "name: \"broken\"\nserver: \"8080\"\n")
	defer os.Remove(configFilePath)

	var cfg TestConfiguration
	err := configmgr.ReadConfiguration(configFilePath, &cfg)

	var generalErr *errorx.GeneralError
	require.ErrorAs(t, err, &generalErr)
	assert.Contains(t, err.Error(), "unable to decode into config struct")
}

func TestLoadConfigFromPathForEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "property-stage.yaml"), []byte("name: \"staged\"\nenvironment: \"STAGE\"\n"), 0o600))

	t.Setenv("ENVIRONMENT", "stage")

	var cfg TestConfiguration
	err := configmgr.LoadConfigFromPathForEnv(dir+"/", &cfg)
	require.NoError(t, err)
	assert.Equal(t, "staged", cfg.GetServiceName())
	assert.False(t, cfg.IsLocalEnvironment())
}
