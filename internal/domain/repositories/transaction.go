package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager groups gateway writes that must land together, such as a
// denial's post update and its comment.
type TransactionManager interface {
	// ExecTx runs fn within a transaction; gateway calls made with the ctx
	// passed to fn join it
	ExecTx(ctx context.Context, fn TxFn) error
}
