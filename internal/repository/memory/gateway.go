// Package memory is an in-process Gateway for local development and tests.
// It keeps rows in maps, echoes every committed write as a change
// notification, and can be told to fail specific operations.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"postflow/internal/domain"
	"postflow/internal/domain/repositories"
)

// Op names a gateway operation for fault injection and call counting.
type Op string

const (
	OpSelect     Op = "select"
	OpInsert     Op = "insert"
	OpUpdate     Op = "update"
	OpUpdateMany Op = "update_many"
	OpDelete     Op = "delete"
	OpSubscribe  Op = "subscribe"
)

// ErrInjected is the default error returned by an injected failure.
var ErrInjected = errors.New("injected gateway failure")

type table struct {
	rows  map[string]repositories.Row
	order []string
}

func (t *table) clone() *table {
	c := &table{rows: make(map[string]repositories.Row, len(t.rows)), order: append([]string(nil), t.order...)}
	for id, r := range t.rows {
		c.rows[id] = copyRow(r)
	}
	return c
}

type subscriber struct {
	table string
	fn    func(repositories.Change)
}

// Gateway implements repositories.Gateway and repositories.TransactionManager
// in memory.
type Gateway struct {
	logger *slog.Logger

	// txMu serialises write scopes; a transaction holds it for its whole body
	txMu sync.Mutex

	mu       sync.Mutex
	tables   map[string]*table
	failures map[Op]error
	calls    map[Op]int
	subs     map[int]subscriber
	nextSub  int
}

var (
	_ repositories.Gateway            = (*Gateway)(nil)
	_ repositories.TransactionManager = (*Gateway)(nil)
)

// NewGateway creates an empty gateway.
func NewGateway(logger *slog.Logger) *Gateway {
	return &Gateway{
		logger:   logger,
		tables:   map[string]*table{},
		failures: map[Op]error{},
		calls:    map[Op]int{},
		subs:     map[int]subscriber{},
	}
}

// Fail makes every later call of op return err (ErrInjected when nil) until
// Recover is called.
func (g *Gateway) Fail(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	g.mu.Lock()
	g.failures[op] = err
	g.mu.Unlock()
}

// Recover clears an injected failure.
func (g *Gateway) Recover(op Op) {
	g.mu.Lock()
	delete(g.failures, op)
	g.mu.Unlock()
}

// Calls returns how many times op was attempted.
func (g *Gateway) Calls(op Op) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Seed stores rows directly, without notifications or fault checks.
func (g *Gateway) Seed(tableName string, rows ...repositories.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.tableLocked(tableName)
	for _, r := range rows {
		r = normalize(r)
		id := r.ID()
		if id == "" {
			id = uuid.NewString()
			r["id"] = id
		}
		if _, exists := t.rows[id]; !exists {
			t.order = append(t.order, id)
		}
		t.rows[id] = r
	}
}

// Row returns a copy of one stored row.
func (g *Gateway) Row(tableName, id string) (repositories.Row, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tables[tableName]
	if !ok {
		return nil, false
	}
	r, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	return copyRow(r), true
}

// SelectAll returns every row of a table in insertion order.
func (g *Gateway) SelectAll(ctx context.Context, tableName string) ([]repositories.Row, error) {
	if err := g.enter(OpSelect); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.tableLocked(tableName)
	out := make([]repositories.Row, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, copyRow(t.rows[id]))
	}
	return out, nil
}

// Insert stores a new row. A row without id gets one.
func (g *Gateway) Insert(ctx context.Context, tableName string, row repositories.Row) (repositories.Row, error) {
	if err := g.enter(OpInsert); err != nil {
		return nil, err
	}
	release, tx := g.writeScope(ctx)
	defer release()

	stored := normalize(row)
	if stored.ID() == "" {
		stored["id"] = uuid.NewString()
	}
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = time.Now().UTC()
	}

	g.mu.Lock()
	t := g.tableLocked(tableName)
	id := stored.ID()
	if _, exists := t.rows[id]; exists {
		g.mu.Unlock()
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("%s row %s already exists", tableName, id),
			ResourceType: tableName,
			ResourceID:   id,
		}
	}
	t.rows[id] = stored
	t.order = append(t.order, id)
	g.mu.Unlock()

	g.publish(tx, repositories.Change{Table: tableName, Type: repositories.ChangeInsert, New: copyRow(stored)})
	return copyRow(stored), nil
}

// UpdateByID merges patch into one row.
func (g *Gateway) UpdateByID(ctx context.Context, tableName, id string, patch repositories.Row) error {
	if err := g.enter(OpUpdate); err != nil {
		return err
	}
	release, tx := g.writeScope(ctx)
	defer release()

	changes, err := g.patch(tableName, []string{id}, patch, true)
	if err != nil {
		return err
	}
	for _, ch := range changes {
		g.publish(tx, ch)
	}
	return nil
}

// UpdateByIDs merges patch into every listed row as one write. Ids that do
// not exist are skipped.
func (g *Gateway) UpdateByIDs(ctx context.Context, tableName string, ids []string, patch repositories.Row) error {
	if err := g.enter(OpUpdateMany); err != nil {
		return err
	}
	release, tx := g.writeScope(ctx)
	defer release()

	changes, err := g.patch(tableName, ids, patch, false)
	if err != nil {
		return err
	}
	for _, ch := range changes {
		g.publish(tx, ch)
	}
	return nil
}

func (g *Gateway) patch(tableName string, ids []string, patch repositories.Row, strict bool) ([]repositories.Change, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.tableLocked(tableName)
	values := normalize(patch)
	var changes []repositories.Change
	for _, id := range ids {
		current, ok := t.rows[id]
		if !ok {
			if strict {
				return nil, &domain.NotFoundError{Message: fmt.Sprintf("%s row %s not found", tableName, id)}
			}
			continue
		}
		old := copyRow(current)
		for k, v := range values {
			if k == "id" {
				continue
			}
			current[k] = v
		}
		changes = append(changes, repositories.Change{
			Table: tableName,
			Type:  repositories.ChangeUpdate,
			New:   copyRow(current),
			Old:   old,
		})
	}
	return changes, nil
}

// DeleteByID removes one row.
func (g *Gateway) DeleteByID(ctx context.Context, tableName, id string) error {
	if err := g.enter(OpDelete); err != nil {
		return err
	}
	release, tx := g.writeScope(ctx)
	defer release()

	g.mu.Lock()
	t := g.tableLocked(tableName)
	old, ok := t.rows[id]
	if !ok {
		g.mu.Unlock()
		return &domain.NotFoundError{Message: fmt.Sprintf("%s row %s not found", tableName, id)}
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	g.mu.Unlock()

	g.publish(tx, repositories.Change{Table: tableName, Type: repositories.ChangeDelete, Old: old})
	return nil
}

// Subscribe registers onChange for a table. Notifications are delivered on
// the writing goroutine once the write (or its transaction) commits.
func (g *Gateway) Subscribe(ctx context.Context, tableName string, onChange func(repositories.Change)) (repositories.Subscription, error) {
	if err := g.enter(OpSubscribe); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = subscriber{table: tableName, fn: onChange}
	g.mu.Unlock()

	return &subscription{gateway: g, id: id}, nil
}

// Subscribers returns the number of open subscriptions.
func (g *Gateway) Subscribers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// enter counts the call and returns an injected failure, if any.
func (g *Gateway) enter(op Op) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
	if err, ok := g.failures[op]; ok {
		return err
	}
	return nil
}

func (g *Gateway) publish(tx *memTx, ch repositories.Change) {
	tx.pending = append(tx.pending, ch)
}

func (g *Gateway) deliver(changes []repositories.Change) {
	if len(changes) == 0 {
		return
	}
	g.mu.Lock()
	ids := make([]int, 0, len(g.subs))
	for id := range g.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, g.subs[id])
	}
	g.mu.Unlock()

	for _, ch := range changes {
		for _, s := range subs {
			if s.table == ch.Table {
				s.fn(ch)
			}
		}
	}
}

func (g *Gateway) tableLocked(name string) *table {
	t, ok := g.tables[name]
	if !ok {
		t = &table{rows: map[string]repositories.Row{}}
		g.tables[name] = t
	}
	return t
}

type subscription struct {
	gateway *Gateway
	id      int
	once    sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.gateway.mu.Lock()
		delete(s.gateway.subs, s.id)
		s.gateway.mu.Unlock()
	})
	return nil
}
