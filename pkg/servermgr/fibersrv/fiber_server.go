package fibersrv

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-serialtx/pkg/configmgr"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/marcodd23/go-serialtx/pkg/servermgr"
	"github.com/marcodd23/go-serialtx/pkg/validator"
	"github.com/pkg/errors"
)

var (
	once     sync.Once
	instance servermgr.Server[*fiber.App]
)

// FiberServer - Fiber server.
type FiberServer struct {
	Server *fiber.App
	config configmgr.Config
}

// NewFiberServer - Fiber server constructor (singleton).
func NewFiberServer(config configmgr.Config) servermgr.Server[*fiber.App] {
	once.Do(func() {
		app := fiber.New(BuildFiberConfig(config))
		instance = &FiberServer{app, config}
	})
	return instance
}

// BuildFiberConfig - the fiber configuration derived from the service configuration.
func BuildFiberConfig(config configmgr.Config) fiber.Config {
	fiberConfig := fiber.Config{
		AppName:       config.GetServiceName(),
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		JSONEncoder:   json.Marshal,
		JSONDecoder:   json.Unmarshal,
		ErrorHandler:  ErrorHandler,
	}

	if srvConf := config.GetServerConfig(); srvConf != nil {
		fiberConfig.Concurrency = srvConf.Concurrency
		fiberConfig.DisableStartupMessage = srvConf.DisableStartupMessage
	}

	return fiberConfig
}

// ErrorResponse - body of every error response.
type ErrorResponse struct {
	Error   string                               `json:"error"`
	Details []*validator.ValidationErrorResponse `json:"details,omitempty"`
}

// ErrorHandler maps handler errors to status codes: validation and usage errors are the
// caller's fault (400), fiber errors keep their code, everything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	body := ErrorResponse{Error: err.Error()}

	var fiberErr *fiber.Error
	var valErr *validator.ValidationError
	var usageErr *errorx.UsageError

	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.As(err, &valErr):
		code = fiber.StatusBadRequest
		body = ErrorResponse{Error: "validation failed", Details: valErr.GetErrorsDetails()}
	case errors.As(err, &usageErr):
		code = fiber.StatusBadRequest
	}

	if code >= fiber.StatusInternalServerError {
		logx.GetLogger().LogError(c.UserContext(), fmt.Sprintf("%s %s failed", c.Method(), c.Path()), err)
	}

	return c.Status(code).JSON(body)
}

// GetServer - return the fiber server.
func (srv *FiberServer) GetServer() *fiber.App {
	return srv.Server
}

// RunSync - Run the server sync.
func (srv *FiberServer) RunSync() {
	if srv.Server != nil {
		runServer(srv)
	}
}

// RunAsync - Run the server async.
func (srv *FiberServer) RunAsync() {
	if srv.Server != nil {
		go func() {
			runServer(srv)
		}()
	}
}

// Setup - Receive a callback function setupFunc that let to configure the server.
func (srv *FiberServer) Setup(ctx context.Context, setupFunc func(fiber *fiber.App)) {
	if srv.Server != nil {
		setupFunc(srv.Server)
	}
}

// Shutdown - shutdown the server.
func (srv *FiberServer) Shutdown(ctx context.Context) {
	if srv.Server != nil {
		if err := srv.Server.ShutdownWithContext(ctx); err != nil {
			logx.GetLogger().LogError(ctx, "Error shutting down the Server", err)
		} else {
			logx.GetLogger().LogInfo(ctx, "Server shut down.. ")
		}
	}
}

func runServer(srv *FiberServer) {
	serverAddr := fmt.Sprintf(":%s", srv.config.GetServerConfig().Port)
	if err := srv.Server.Listen(serverAddr); err != nil {
		logx.GetLogger().LogPanic(context.TODO(), "Oops... server is not running! error:", err)
	}
}
