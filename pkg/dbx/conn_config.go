package dbx

import (
	"time"

	"github.com/marcodd23/go-serialtx/pkg/configmgr"
)

// ConnConfig represents the configuration required for the database connection.
type ConnConfig struct {
	Host           string        `validate:"required"`
	Port           int32         `validate:"gt=0,lte=65535"`
	DBName         string        `validate:"required"`
	User           string        `validate:"required"`
	Password       string        `validate:"required"`
	ConnectTimeout time.Duration `validate:"gte=0"`
	IsLocalEnv     bool
}

// ConnConfigFrom builds a ConnConfig out of the service configuration.
func ConnConfigFrom(config configmgr.Config) ConnConfig {
	dbConf := config.GetDatabaseConfig()
	if dbConf == nil {
		return ConnConfig{IsLocalEnv: config.IsLocalEnvironment()}
	}

	return ConnConfig{
		Host:           dbConf.Host,
		Port:           dbConf.Port,
		DBName:         dbConf.Name,
		User:           dbConf.User,
		Password:       dbConf.Password,
		ConnectTimeout: dbConf.ConnectTimeout,
		IsLocalEnv:     config.IsLocalEnvironment(),
	}
}
