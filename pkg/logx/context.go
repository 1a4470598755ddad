package logx

import "context"

type txIDKey struct{}

// WithTxID returns a copy of ctx carrying the id of the transaction the work belongs to.
// Loggers add it to every entry logged with that context as "txId".
func WithTxID(ctx context.Context, txID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, txIDKey{}, txID)
}

// TxIDFromContext returns the transaction id set by WithTxID.
func TxIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}

	txID, ok := ctx.Value(txIDKey{}).(int64)

	return txID, ok
}
