package main

import (
	"testing"

	"github.com/marcodd23/go-serialtx/pkg/configmgr"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		BaseConfig: configmgr.BaseConfig{
			Name:   "serialdb",
			Server: &configmgr.ServerConfig{Port: "8080"},
			Database: &configmgr.DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				Name:     "main-db",
				User:     "postgres",
				Password: "password",
			},
		},
		APIPrefix: "/api",
	}
}

func TestValidateConfiguration(t *testing.T) {
	require.NoError(t, validateConfiguration(validServiceConfig()))
}

func TestValidateConfigurationMissingSections(t *testing.T) {
	cfg := validServiceConfig()
	cfg.Database = nil

	err := validateConfiguration(cfg)

	var generalErr *errorx.GeneralError
	require.ErrorAs(t, err, &generalErr)
	assert.Contains(t, err.Error(), "server and database sections are required")
}

func TestValidateConfigurationTags(t *testing.T) {
	cfg := validServiceConfig()
	cfg.Server.Port = "http"

	err := validateConfiguration(cfg)

	var generalErr *errorx.GeneralError
	require.ErrorAs(t, err, &generalErr)

	var valErr *validator.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.GetErrorsDetails(), 1)
	assert.Equal(t, "numeric", valErr.GetErrorsDetails()[0].Tag)
}
