package txqueue

import (
	"context"

	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/logx"
	"github.com/pkg/errors"
)

// RunInTransaction begins a transaction, runs task with it and commits when task returns
// nil, rolling back otherwise. It blocks until the transaction finished, so it must not be
// called from a completion: a connection completing synchronously has not returned from
// the call yet, and BEGIN waits for that.
//
// The operations task issues through tx complete asynchronously; commit waits for them, so
// task only needs to wait for results it wants to inspect.
//
// Arguments:
//   - ctx: bounds the wait for the transaction to begin. When it ends first, the transaction
//     is rolled back as soon as it begins and ctx.Err() is returned.
//   - task: the transactional work.
//
// Returns:
//   - error: the begin error, the task error (wrapped) or the commit error.
func (p *Proxy) RunInTransaction(ctx context.Context, task func(ctx context.Context, tx *Tx) error) (err error) {
	ctx = contextOrBackground(ctx)

	type begun struct {
		tx  *Tx
		err error
	}
	began := make(chan begun, 1)
	p.BeginTransaction(ctx, func(err error, tx *Tx) {
		began <- begun{tx: tx, err: err}
	})

	var b begun
	select {
	case b = <-began:
	case <-ctx.Done():
		go func() {
			if late := <-began; late.tx != nil {
				late.tx.Rollback(context.Background(), func(error) {})
			}
		}()
		return errors.WithStack(ctx.Err())
	}

	if b.err != nil {
		return b.err
	}

	tx := b.tx
	txCtx := logx.WithTxID(ctx, tx.ID())

	defer func() {
		if r := recover(); r != nil {
			finishSync(tx.Rollback, context.Background())
			panic(r)
		}
	}()

	if err = task(txCtx, tx); err != nil {
		if rbErr := finishSync(tx.Rollback, context.Background()); rbErr != nil {
			logx.GetLogger().LogError(txCtx, "error rolling back after failed transactional task", rbErr)
		}
		return errorx.NewDatabaseErrorWrapper(err, "error executing transactional task")
	}

	if err = finishSync(tx.Commit, ctx); err != nil {
		if tx.State() == TxOpen {
			// commit never ran: the lock wait gave up
			if rbErr := finishSync(tx.Rollback, context.Background()); rbErr != nil {
				logx.GetLogger().LogError(txCtx, "error rolling back after failed commit", rbErr)
			}
		}
		return err
	}

	return nil
}

func finishSync(finish func(ctx context.Context, done func(error)), ctx context.Context) error {
	result := make(chan error, 1)
	finish(ctx, func(err error) {
		result <- err
	})

	return <-result
}
