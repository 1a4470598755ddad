// Package txapi exposes a txqueue.Proxy over HTTP.
//
// Routes:
//   - GET  /status: the proxy Stats.
//   - POST /operations: one operation, queued behind the current transaction if any. A
//     request that times out (504) does not withdraw the operation: it stays queued and
//     still runs once the transaction finished.
//   - POST /transactions: a list of operations run inside one transaction, committed when
//     all of them succeed and rolled back otherwise.
package txapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/marcodd23/go-serialtx/pkg/txqueue"
	"github.com/marcodd23/go-serialtx/pkg/validator"
	"github.com/pkg/errors"
)

const defaultRequestTimeout = 30 * time.Second

// OperationRequest - body of POST /operations, and one entry of a TransactionRequest.
type OperationRequest struct {
	Operation string `json:"operation" validate:"required,oneof=exec run get all each map"`
	SQL       string `json:"sql" validate:"required"`
	Args      []any  `json:"args"`
}

// OperationResponse - outcome of one operation. Rows is filled by each only.
type OperationResponse struct {
	Results []any `json:"results"`
	Rows    []any `json:"rows,omitempty"`
}

// TransactionRequest - body of POST /transactions.
type TransactionRequest struct {
	Statements []OperationRequest `json:"statements" validate:"required,min=1,dive"`
}

// TransactionResponse - outcome of a committed transaction, one entry per statement.
type TransactionResponse struct {
	TxID    int64               `json:"txId"`
	Results []OperationResponse `json:"results"`
}

// Handler - HTTP handlers over one Proxy.
type Handler struct {
	proxy    *txqueue.Proxy
	validate *validator.Validator
	timeout  time.Duration
}

// NewHandler - Handler constructor. requestTimeout bounds every request, including the time
// spent queued behind a transaction; zero means 30s.
func NewHandler(proxy *txqueue.Proxy, requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return &Handler{
		proxy:    proxy,
		validate: validator.NewValidator(),
		timeout:  requestTimeout,
	}
}

// Register mounts the routes on router.
func (h *Handler) Register(router fiber.Router) {
	router.Get("/status", h.status)
	router.Post("/operations", h.operation)
	router.Post("/transactions", h.transaction)
}

func (h *Handler) status(c *fiber.Ctx) error {
	return c.JSON(h.proxy.Stats())
}

func (h *Handler) operation(c *fiber.Ctx) error {
	var req OperationRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	resp, err := run(ctx, h.proxy, req)
	if errors.Is(err, context.DeadlineExceeded) {
		err = errors.Wrap(err, "operation submitted, not withdrawn: it may still run")
	}
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(resp)
}

func (h *Handler) transaction(c *fiber.Ctx) error {
	var req TransactionRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	resp := TransactionResponse{Results: make([]OperationResponse, 0, len(req.Statements))}
	err := h.proxy.RunInTransaction(ctx, func(txCtx context.Context, tx *txqueue.Tx) error {
		resp.TxID = tx.ID()

		for i, stmt := range req.Statements {
			out, err := run(txCtx, tx, stmt)
			if err != nil {
				return errors.Wrapf(err, "statement %d", i)
			}
			resp.Results = append(resp.Results, out)
		}

		return nil
	})
	if err != nil {
		logx.GetLogger().LogWarning(logx.WithTxID(ctx, resp.TxID), "transaction request failed", err)
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return h.validate.Validate(req)
}

// caller is implemented by txqueue.Proxy and txqueue.Tx.
type caller interface {
	Call(name string, call dbx.Call) error
}

// run issues req on target and waits for its completion or for ctx.
func run(ctx context.Context, target caller, req OperationRequest) (OperationResponse, error) {
	if req.Operation == dbx.OpExec && len(req.Args) > 0 {
		return OperationResponse{}, errorx.NewUsageError("'%s' takes no arguments", dbx.OpExec)
	}

	type outcome struct {
		err     error
		results []any
	}
	done := make(chan outcome, 1)

	var resp OperationResponse
	call := dbx.Call{
		Args: append([]any{req.SQL}, req.Args...),
		Done: func(err error, results ...any) {
			done <- outcome{err: err, results: results}
		},
	}
	if req.Operation == dbx.OpEach {
		// rows are delivered before the completion, which publishes resp through the channel
		call.Row = func(err error, row any) {
			if err == nil {
				resp.Rows = append(resp.Rows, row)
			}
		}
	}

	if err := target.Call(req.Operation, call); err != nil {
		return OperationResponse{}, err
	}

	select {
	case o := <-done:
		if o.err != nil {
			return OperationResponse{}, o.err
		}
		resp.Results = o.results
		if resp.Results == nil {
			resp.Results = []any{}
		}
		return resp, nil
	case <-ctx.Done():
		return OperationResponse{}, errors.WithStack(ctx.Err())
	}
}
