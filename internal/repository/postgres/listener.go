package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postflow/internal/domain/repositories"
)

const reconnectDelay = 2 * time.Second

// notification is the JSON payload published by the change triggers. Rows
// too large for NOTIFY arrive as an id only and are fetched back.
type notification struct {
	Table string                  `json:"table"`
	Type  repositories.ChangeType `json:"type"`
	ID    string                  `json:"id"`
	New   map[string]any          `json:"new"`
	Old   map[string]any          `json:"old"`
}

type handler struct {
	id    int
	table string
	fn    func(repositories.Change)
}

// listener holds one LISTEN connection and fans notifications out to every
// subscribed handler in arrival order.
type listener struct {
	gateway *Gateway
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.RWMutex
	handlers map[int]handler
	nextID   int
}

func startListener(ctx context.Context, g *Gateway) (*listener, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen on %s: %w", ChangeChannel, err)
	}

	// Outlives the Subscribe call; stopped by Close
	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l := &listener{
		gateway:  g,
		cancel:   cancel,
		done:     make(chan struct{}),
		handlers: map[int]handler{},
	}
	go l.loop(listenCtx, conn)

	g.logger.Info("listening for row changes", "channel", ChangeChannel)
	return l, nil
}

func (l *listener) loop(ctx context.Context, conn *pgxpool.Conn) {
	defer close(l.done)

	for {
		err := l.receive(ctx, conn)
		conn.Release()
		if ctx.Err() != nil {
			return
		}
		l.gateway.logger.Warn("change listener disconnected, reconnecting", "error", err)

		conn = l.reconnect(ctx)
		if conn == nil {
			return
		}
	}
}

// receive blocks on notifications until the connection fails or ctx ends.
func (l *listener) receive(ctx context.Context, conn *pgxpool.Conn) error {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, n.Payload)
	}
}

func (l *listener) reconnect(ctx context.Context) *pgxpool.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}

		conn, err := l.gateway.pool.Acquire(ctx)
		if err != nil {
			l.gateway.logger.Warn("reacquire listen connection failed", "error", err)
			continue
		}
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
			conn.Release()
			l.gateway.logger.Warn("re-listen failed", "error", err)
			continue
		}
		return conn
	}
}

func (l *listener) dispatch(ctx context.Context, payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		l.gateway.logger.Warn("ignoring malformed change notification", "error", err)
		return
	}

	change := repositories.Change{Table: n.Table, Type: n.Type}
	if n.New != nil {
		change.New = repositories.Row(n.New)
	}
	if n.Old != nil {
		change.Old = repositories.Row(n.Old)
	}

	switch {
	case n.Type == repositories.ChangeDelete && change.Old == nil && n.ID != "":
		change.Old = repositories.Row{"id": n.ID}
	case n.Type != repositories.ChangeDelete && change.New == nil && n.ID != "":
		row, err := l.gateway.selectByID(ctx, n.Table, n.ID)
		if err != nil {
			l.gateway.logger.Warn("fetch changed row failed", "table", n.Table, "id", n.ID, "error", err)
			return
		}
		change.New = row
	}

	l.mu.RLock()
	var targets []func(repositories.Change)
	for _, h := range l.handlers {
		if h.table == n.Table {
			targets = append(targets, h.fn)
		}
	}
	l.mu.RUnlock()

	for _, fn := range targets {
		fn(change)
	}
}

func (l *listener) add(table string, fn func(repositories.Change)) repositories.Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.handlers[id] = handler{id: id, table: table, fn: fn}
	return &subscription{listener: l, id: id}
}

func (l *listener) remove(id int) {
	l.mu.Lock()
	delete(l.handlers, id)
	l.mu.Unlock()
}

func (l *listener) stop() {
	l.cancel()
	<-l.done
}

type subscription struct {
	listener *listener
	id       int
	once     sync.Once
}

// Close unregisters the handler. The listener connection stays up until the
// gateway is closed.
func (s *subscription) Close() error {
	s.once.Do(func() { s.listener.remove(s.id) })
	return nil
}
