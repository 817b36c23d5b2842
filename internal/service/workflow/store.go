package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"postflow/internal/domain"
	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"
)

// entry is one cached post. post is what readers see: the newest local
// write still in flight, or confirmed when nothing is pending. confirmed is
// the last state the gateway is known to hold and is nil until a created post
// is acknowledged.
type entry struct {
	post         content.Post
	confirmed    *content.Post
	confirmedGen uint64
	pending      []pendingWrite
}

// pendingWrite is a local write the gateway has not answered yet.
type pendingWrite struct {
	gen   uint64
	after content.Post
}

func confirmedEntry(p content.Post, gen uint64) *entry {
	c := p.Clone()
	return &entry{post: p, confirmed: &c, confirmedGen: gen}
}

// settle recomputes what readers see after a pending write resolved: the
// newest pending write unless a later one is already confirmed. It reports
// false when nothing is left to show.
func (e *entry) settle() bool {
	n := len(e.pending)
	switch {
	case n > 0 && e.pending[n-1].gen > e.confirmedGen:
		e.post = e.pending[n-1].after.Clone()
	case e.confirmed != nil:
		e.post = e.confirmed.Clone()
	default:
		return false
	}
	return true
}

// take removes the pending write gen and reports whether it was still there.
func (e *entry) take(gen uint64) (pendingWrite, bool) {
	for i, w := range e.pending {
		if w.gen == gen {
			e.pending = append(e.pending[:i:i], e.pending[i+1:]...)
			return w, true
		}
	}
	return pendingWrite{}, false
}

// Store is the in-memory aggregate of every post with its comments and media,
// kept in sync with the gateway by an initial fetch and per-table change
// subscriptions. Construct one per session, Start it, and Dispose it when done.
//
// Only the workflow Service writes to a Store; change notifications from the
// gateway are the other writer and always overwrite the cached row.
type Store struct {
	gateway repositories.Gateway
	tables  Tables
	loc     *time.Location
	logger  *slog.Logger

	// notifyMu orders deliveries so watchers never see an older board after
	// a newer one
	notifyMu sync.Mutex

	mu       sync.RWMutex
	posts    map[string]*entry
	gen      uint64
	subs     []repositories.Subscription
	watchers map[int]func([]content.Post)
	nextID   int
	disposed bool
}

// NewStore creates an empty store. loc is used to interpret legacy rows that
// only carry human-readable schedule columns.
func NewStore(gateway repositories.Gateway, tables Tables, loc *time.Location, logger *slog.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		gateway:  gateway,
		tables:   tables,
		loc:      loc,
		logger:   logger,
		posts:    map[string]*entry{},
		watchers: map[int]func([]content.Post){},
	}
}

// Start fetches every post and subscribes to the three aggregate tables.
func (s *Store) Start(ctx context.Context) error {
	s.mu.RLock()
	disposed := s.disposed
	s.mu.RUnlock()
	if disposed {
		return errors.New("store already disposed")
	}

	if err := s.Load(ctx); err != nil {
		return err
	}

	handlers := []struct {
		table string
		fn    func(repositories.Change)
	}{
		{s.tables.Posts, s.onPostChange},
		{s.tables.Comments, s.onCommentChange},
		{s.tables.Media, s.onMediaChange},
	}

	subs := make([]repositories.Subscription, 0, len(handlers))
	for _, h := range handlers {
		sub, err := s.gateway.Subscribe(ctx, h.table, h.fn)
		if err != nil {
			for _, open := range subs {
				_ = open.Close()
			}
			return fmt.Errorf("subscribe to %s: %w", h.table, err)
		}
		subs = append(subs, sub)
	}

	s.mu.Lock()
	s.subs = append(s.subs, subs...)
	s.mu.Unlock()

	s.logger.Info("post store started", "posts", s.Len())
	return nil
}

// Load replaces the cache with a fresh fetch of posts, comments and media.
// Malformed rows are logged and skipped so one bad row never hides the board.
func (s *Store) Load(ctx context.Context) error {
	postRows, err := s.gateway.SelectAll(ctx, s.tables.Posts)
	if err != nil {
		return fmt.Errorf("fetch posts: %w", err)
	}
	commentRows, err := s.gateway.SelectAll(ctx, s.tables.Comments)
	if err != nil {
		return fmt.Errorf("fetch comments: %w", err)
	}
	mediaRows, err := s.gateway.SelectAll(ctx, s.tables.Media)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}

	posts := make(map[string]*content.Post, len(postRows))
	for _, row := range postRows {
		p, err := postFromRow(row, s.loc)
		if err != nil {
			s.logger.Warn("skipping malformed post row", "error", err)
			continue
		}
		posts[p.ID] = &p
	}

	for _, row := range commentRows {
		c, ok := commentFromRow(row)
		if !ok {
			continue
		}
		if p, found := posts[c.PostID]; found {
			p.Comments = append(p.Comments, c)
		}
	}
	for _, row := range mediaRows {
		m, ok := mediaFromRow(row)
		if !ok {
			continue
		}
		if p, found := posts[m.PostID]; found {
			p.Media = append(p.Media, m)
		}
	}

	s.mu.Lock()
	s.posts = make(map[string]*entry, len(posts))
	for id, p := range posts {
		sortComments(p.Comments)
		p.RefreshCreative()
		s.gen++
		s.posts[id] = confirmedEntry(*p, s.gen)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Dispose closes every change subscription and drops all watchers. The cache
// stays readable; further Start calls fail.
func (s *Store) Dispose() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.watchers = map[int]func([]content.Post){}
	s.disposed = true
	s.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("post store disposed", "subscriptions", len(subs))
	return errors.Join(errs...)
}

// Posts returns copies of every cached post, newest first.
func (s *Store) Posts() []content.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get returns a copy of one post.
func (s *Store) Get(id string) (content.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.posts[id]
	if !ok {
		return content.Post{}, false
	}
	return e.post.Clone(), true
}

// Len returns the number of cached posts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// anyMatch reports whether fn holds for at least one cached post.
func (s *Store) anyMatch(fn func(p *content.Post) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.posts {
		if fn(&e.post) {
			return true
		}
	}
	return false
}

// Watch registers fn to receive the full post list after every change, in
// change order. fn runs on the writing goroutine and must not write to the
// store. The returned func unregisters it.
func (s *Store) Watch(fn func([]content.Post)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// applied is the outcome of one local optimistic write.
type applied struct {
	before  content.Post
	after   content.Post
	gen     uint64
	changed bool
}

// update runs t against a copy of post id and, if it changed anything, shows
// the result as a new pending write. Local writes are serialised, so they
// land in the order they were issued.
func (s *Store) update(id string, now time.Time, t Transition) (applied, error) {
	s.mu.Lock()
	e, ok := s.posts[id]
	if !ok {
		s.mu.Unlock()
		return applied{}, &domain.NotFoundError{Message: fmt.Sprintf("post %s not found", id)}
	}

	before := e.post.Clone()
	next := e.post.Clone()
	changed, err := t(&next, now)
	if err != nil || !changed {
		s.mu.Unlock()
		return applied{before: before, after: before, changed: false}, err
	}

	s.gen++
	e.pending = append(e.pending, pendingWrite{gen: s.gen, after: next.Clone()})
	e.post = next
	out := applied{before: before, after: next.Clone(), gen: s.gen, changed: true}
	s.mu.Unlock()

	s.notify()
	return out, nil
}

// updateAll runs t against every post and shows every changed result in one
// step. Used by the sweeper to flip a batch together.
func (s *Store) updateAll(now time.Time, t Transition) ([]applied, error) {
	s.mu.Lock()
	var out []applied
	for _, e := range s.posts {
		next := e.post.Clone()
		changed, err := t(&next, now)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if !changed {
			continue
		}
		s.gen++
		before := e.post.Clone()
		e.pending = append(e.pending, pendingWrite{gen: s.gen, after: next.Clone()})
		e.post = next
		out = append(out, applied{before: before, after: next.Clone(), gen: s.gen, changed: true})
	}
	s.mu.Unlock()

	if len(out) > 0 {
		s.notify()
	}
	return out, nil
}

// insert shows a new post as a pending write with nothing confirmed behind it.
func (s *Store) insert(p content.Post) applied {
	s.mu.Lock()
	s.gen++
	s.posts[p.ID] = &entry{
		post:    p.Clone(),
		pending: []pendingWrite{{gen: s.gen, after: p.Clone()}},
	}
	out := applied{after: p.Clone(), gen: s.gen, changed: true}
	s.mu.Unlock()

	s.notify()
	return out
}

// confirm records that the gateway accepted write gen. A write already
// superseded by a change notification leaves the cache alone.
func (s *Store) confirm(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.posts[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	w, pending := e.take(gen)
	if !pending {
		s.mu.Unlock()
		return
	}
	if gen > e.confirmedGen {
		c := w.after.Clone()
		e.confirmed, e.confirmedGen = &c, gen
	}
	e.settle()
	s.mu.Unlock()

	s.notify()
}

// revert drops write gen after the gateway refused it. The post falls back to
// the newest write still in flight, or to the last confirmed state; a created
// post that was never confirmed disappears. A write already superseded by a
// change notification leaves the cache alone. It reports whether the cache
// was touched.
func (s *Store) revert(id string, gen uint64) bool {
	s.mu.Lock()
	e, ok := s.posts[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, pending := e.take(gen); !pending {
		s.mu.Unlock()
		return false
	}
	if !e.settle() {
		delete(s.posts, id)
	}
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Store) onPostChange(ch repositories.Change) {
	if ch.Type == repositories.ChangeDelete {
		id := ch.Old.ID()
		s.mu.Lock()
		_, existed := s.posts[id]
		delete(s.posts, id)
		s.mu.Unlock()
		if existed {
			s.notify()
		}
		return
	}

	p, err := postFromRow(ch.New, s.loc)
	if err != nil {
		s.logger.Warn("ignoring malformed post change", "type", ch.Type, "error", err)
		return
	}

	s.mu.Lock()
	if current, ok := s.posts[p.ID]; ok {
		// Comments and media arrive through their own tables. Pending local
		// children are dropped with the pending writes they belong to.
		children := current.post
		if current.confirmed != nil {
			children = *current.confirmed
		}
		p.Comments = children.Clone().Comments
		p.Media = children.Clone().Media
		p.RefreshCreative()
	}
	s.gen++
	s.posts[p.ID] = confirmedEntry(p, s.gen)
	s.mu.Unlock()

	s.notify()
}

func (s *Store) onCommentChange(ch repositories.Change) {
	row := ch.New
	if ch.Type == repositories.ChangeDelete {
		row = ch.Old
	}
	c, ok := commentFromRow(row)
	if !ok {
		s.logger.Warn("ignoring malformed comment change", "type", ch.Type)
		return
	}

	s.modify(c.PostID, func(p *content.Post) {
		idx := -1
		for i := range p.Comments {
			if p.Comments[i].ID == c.ID {
				idx = i
				break
			}
		}
		switch {
		case ch.Type == repositories.ChangeDelete && idx >= 0:
			p.Comments = append(p.Comments[:idx:idx], p.Comments[idx+1:]...)
		case ch.Type == repositories.ChangeDelete:
		case idx >= 0:
			p.Comments[idx] = c
		default:
			p.Comments = append(p.Comments, c)
			sortComments(p.Comments)
		}
	})
}

func (s *Store) onMediaChange(ch repositories.Change) {
	row := ch.New
	if ch.Type == repositories.ChangeDelete {
		row = ch.Old
	}
	m, ok := mediaFromRow(row)
	if !ok {
		s.logger.Warn("ignoring malformed media change", "type", ch.Type)
		return
	}

	s.modify(m.PostID, func(p *content.Post) {
		idx := -1
		for i := range p.Media {
			if p.Media[i].ID == m.ID {
				idx = i
				break
			}
		}
		switch {
		case ch.Type == repositories.ChangeDelete && idx >= 0:
			p.Media = append(p.Media[:idx:idx], p.Media[idx+1:]...)
		case ch.Type == repositories.ChangeDelete:
		case idx >= 0:
			p.Media[idx] = m
		default:
			p.Media = append(p.Media, m)
		}
		p.RefreshCreative()
	})
}

// modify applies a remote child-row change to its parent post, both to what
// readers see and to every state a rollback could fall back to.
func (s *Store) modify(postID string, fn func(p *content.Post)) {
	s.mu.Lock()
	e, ok := s.posts[postID]
	if !ok {
		s.mu.Unlock()
		return
	}
	next := e.post.Clone()
	fn(&next)
	e.post = next
	if e.confirmed != nil {
		c := e.confirmed.Clone()
		fn(&c)
		e.confirmed = &c
	}
	for i := range e.pending {
		after := e.pending[i].after.Clone()
		fn(&after)
		e.pending[i].after = after
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.RLock()
	if len(s.watchers) == 0 {
		s.mu.RUnlock()
		return
	}
	posts := s.snapshotLocked()
	fns := make([]func([]content.Post), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(posts)
	}
}

func (s *Store) snapshotLocked() []content.Post {
	out := make([]content.Post, 0, len(s.posts))
	for _, e := range s.posts {
		out = append(out, e.post.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortComments(cs []content.Comment) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}
