package memory

import (
	"context"

	"postflow/internal/domain/repositories"
)

// memTx buffers the notifications of a write scope until it commits.
type memTx struct {
	pending []repositories.Change
}

type txKey struct{}

// ExecTx runs fn as one atomic write scope. If fn fails every table is put
// back as it was and no notification is sent.
func (g *Gateway) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if _, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(ctx)
	}

	g.txMu.Lock()

	g.mu.Lock()
	snapshot := make(map[string]*table, len(g.tables))
	for name, t := range g.tables {
		snapshot[name] = t.clone()
	}
	g.mu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		g.mu.Lock()
		g.tables = snapshot
		g.mu.Unlock()
		g.txMu.Unlock()
		g.logger.Debug("memory transaction rolled back", "error", err, "discarded", len(tx.pending))
		return err
	}

	g.txMu.Unlock()
	g.deliver(tx.pending)
	return nil
}

// writeScope joins the transaction in ctx, or opens a single-write scope that
// delivers its notification on release.
func (g *Gateway) writeScope(ctx context.Context) (release func(), tx *memTx) {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok {
		return func() {}, tx
	}

	g.txMu.Lock()
	tx = &memTx{}
	return func() {
		g.txMu.Unlock()
		g.deliver(tx.pending)
	}, tx
}
