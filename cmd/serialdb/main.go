package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-serialtx/pkg/configmgr"
	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/marcodd23/go-serialtx/pkg/servermgr/fibersrv"
	"github.com/marcodd23/go-serialtx/pkg/shutdown"
	"github.com/marcodd23/go-serialtx/pkg/txapi"
	"github.com/marcodd23/go-serialtx/pkg/txqueue"
	"github.com/marcodd23/go-serialtx/pkg/validator"
)

// ShutdownTimeoutMilli - timeout for cleaning up resources before shutting down the server.
const ShutdownTimeoutMilli = 5000

// ServiceConfig - configuration of the serialdb service.
type ServiceConfig struct {
	configmgr.BaseConfig `mapstructure:",squash"`
	APIPrefix            string `mapstructure:"apiPrefix"`
}

func main() {
	rootCtx := context.Background()

	config := loadConfiguration()

	logx.SetupLogger(config)

	proxy := setupDatabase(rootCtx, config)

	serverManager := fibersrv.NewFiberServer(config)

	// Setup Routes
	serverManager.Setup(rootCtx, func(appServer *fiber.App) {
		api := appServer.Group(config.APIPrefix)
		txapi.NewHandler(proxy, config.GetServerConfig().RequestTimeout).Register(api)
	})

	// Start server
	serverManager.RunAsync()

	shutdown.WaitForShutdown(rootCtx, ShutdownTimeoutMilli, func(timeoutCtx context.Context) {
		serverManager.Shutdown(timeoutCtx)

		// close runs after everything already submitted, including a pending transaction
		closed := make(chan error, 1)
		if err := proxy.Close(func(err error, _ ...any) { closed <- err }); err != nil {
			logx.GetLogger().LogError(timeoutCtx, "error closing the database connection", err)
			return
		}

		select {
		case err := <-closed:
			if err != nil {
				logx.GetLogger().LogError(timeoutCtx, "error closing the database connection", err)
			}
		case <-timeoutCtx.Done():
		}
	})
}

func loadConfiguration() *ServiceConfig {
	var cfg ServiceConfig

	err := configmgr.LoadConfigFromPathForEnv("./config/", &cfg)
	if err != nil {
		log.Panicf("error loading property files: %+v", err)
	}

	if err := validateConfiguration(&cfg); err != nil {
		log.Panicf("%s", err)
	}

	return &cfg
}

// validateConfiguration - checks the validate tags and that the sections the service needs are present.
func validateConfiguration(cfg *ServiceConfig) error {
	if err := validator.NewValidator().Validate(cfg); err != nil {
		return errorx.NewGeneralErrorWrapper(err, "invalid configuration")
	}

	if cfg.GetServerConfig() == nil || cfg.GetDatabaseConfig() == nil {
		return errorx.NewGeneralError("invalid configuration: the server and database sections are required")
	}

	return nil
}

// setupDatabase - connects to the database and puts the serializing proxy in front of the connection.
func setupDatabase(ctx context.Context, config *ServiceConfig) *txqueue.Proxy {
	conn, err := pgxdb.Connect(ctx, dbx.ConnConfigFrom(config))
	if err != nil {
		logx.GetLogger().LogFatal(ctx, "error connecting to the database", err)
	}

	proxy, err := txqueue.Wrap(conn, txqueue.WithConfig(config.GetTxQueueConfig()))
	if err != nil {
		logx.GetLogger().LogFatal(ctx, "error wrapping the database connection", err)
	}

	proxy.Events().On(dbx.EventTrace, func(args ...any) {
		if len(args) > 0 {
			if sql, ok := args[0].(string); ok {
				logx.GetLogger().LogDebug(ctx, "sql: "+sql)
			}
		}
	})

	return proxy
}
