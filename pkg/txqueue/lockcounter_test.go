package txqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcodd23/go-serialtx/pkg/dbx"
	"github.com/marcodd23/go-serialtx/pkg/txqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	for _, name := range []string{dbx.OpExec, dbx.OpRun, dbx.OpGet, dbx.OpAll, dbx.OpEach, dbx.OpMap, dbx.OpFinalize, dbx.OpReset} {
		assert.Equal(t, txqueue.Locking, txqueue.Classify(name), name)
	}

	for _, name := range []string{dbx.OpPrepare, dbx.OpSerialize, dbx.OpEmit, dbx.OpSubscribe, dbx.OpUnsubscribe, dbx.OpListeners} {
		assert.Equal(t, txqueue.Excluded, txqueue.Classify(name), name)
	}

	for _, name := range []string{dbx.OpClose, dbx.OpBind, "interrupt", "loadExtension"} {
		assert.Equal(t, txqueue.PassThrough, txqueue.Classify(name), name)
	}
}

func TestLockCounterWaitReturnsAtZero(t *testing.T) {
	counter := txqueue.NewLockCounter()
	require.NoError(t, counter.Wait(context.Background()))

	counter.Acquire()
	counter.Acquire()
	require.Equal(t, int64(2), counter.Count())

	waited := make(chan error, 1)
	go func() {
		waited <- counter.Wait(context.Background())
	}()

	counter.Release()
	requireNothing(t, waited)

	counter.Release()
	require.NoError(t, receive(t, waited))
	require.Equal(t, int64(0), counter.Count())
}

func TestLockCounterWaitHonoursContext(t *testing.T) {
	counter := txqueue.NewLockCounter()
	counter.Acquire()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := counter.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockCounterWaitSurvivesReacquire(t *testing.T) {
	counter := txqueue.NewLockCounter()
	counter.Acquire()

	waited := make(chan error, 1)
	go func() {
		waited <- counter.Wait(context.Background())
	}()

	// drop to zero and immediately go back up: the waiter may or may not observe the
	// short zero, but it must return once the count is zero again
	counter.Acquire()
	counter.Release()
	counter.Release()

	require.NoError(t, receive(t, waited))
}

func TestLockCounterReleaseBelowZeroPanics(t *testing.T) {
	counter := txqueue.NewLockCounter()

	require.PanicsWithValue(t, txqueue.ErrUnbalancedLocks, func() {
		counter.Release()
	})
}

func TestQueueIsFIFO(t *testing.T) {
	var q txqueue.Queue

	require.Equal(t, 1, q.Push(txqueue.QueuedOperation{Kind: txqueue.KindLock, Name: "run"}))
	require.Equal(t, 2, q.Push(txqueue.QueuedOperation{Kind: txqueue.KindSimple, Name: "close"}))
	require.Equal(t, 3, q.Push(txqueue.QueuedOperation{Kind: txqueue.KindTransactionBegin, Name: "beginTransaction"}))

	var names []string
	for {
		op, ok := q.Pop()
		if !ok {
			break
		}
		names = append(names, op.Kind.String()+":"+op.Name)
	}

	assert.Equal(t, []string{"lock:run", "simple:close", "transaction:beginTransaction"}, names)
	assert.Equal(t, 0, q.Len())
}
