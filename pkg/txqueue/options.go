package txqueue

import (
	"time"

	"github.com/marcodd23/go-serialtx/pkg/configmgr"
)

type options struct {
	lockWaitTimeout    time.Duration
	queueWarnThreshold int
}

// Option configures a Proxy.
type Option func(*options)

// WithLockWaitTimeout bounds how long begin, commit and rollback wait for outstanding
// locking operations. Zero, the default, waits forever.
func WithLockWaitTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.lockWaitTimeout = timeout
	}
}

// WithQueueWarnThreshold logs a warning whenever the deferred operation queue grows past
// threshold operations. Zero, the default, never warns.
func WithQueueWarnThreshold(threshold int) Option {
	return func(o *options) {
		o.queueWarnThreshold = threshold
	}
}

// WithConfig applies the txqueue section of the service configuration.
func WithConfig(cfg *configmgr.TxQueueConfig) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		o.lockWaitTimeout = cfg.LockWaitTimeout
		o.queueWarnThreshold = cfg.QueueWarnThreshold
	}
}
