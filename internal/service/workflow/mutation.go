package workflow

import (
	"context"
	"time"

	"postflow/internal/domain"
	"postflow/internal/domain/models/content"
)

// persistFn writes one applied mutation to the gateway.
type persistFn func(ctx context.Context, before, after *content.Post) error

// mutate is the single path for every single-post write: the transition runs
// against a copy and lands in the store at once, then persist runs. If persist
// fails the store is put back and the failure lands in the error slot.
//
// Validation and transition errors return before anything is applied.
func (s *Service) mutate(ctx context.Context, op, postID string, t Transition, persist persistFn) (*content.Post, error) {
	return s.apply(ctx, op, postID, touch(t), persist)
}

// apply is mutate without the UpdatedAt stamp, for writes that leave the
// posts row alone.
func (s *Service) apply(ctx context.Context, op, postID string, t Transition, persist persistFn) (*content.Post, error) {
	res, err := s.store.update(postID, s.now(), t)
	if err != nil {
		return nil, err
	}
	if !res.changed {
		s.logger.Debug("mutation is a no-op", "op", op, "post_id", postID, "status", res.after.Status)
		return &res.after, nil
	}

	s.ClearError()

	// Local state already moved, so the write outlives the caller's context
	if err := persist(context.WithoutCancel(ctx), &res.before, &res.after); err != nil {
		return nil, s.fail(op, postID, res.gen, err)
	}
	s.store.confirm(postID, res.gen)

	s.logger.Debug("mutation persisted",
		"op", op,
		"post_id", postID,
		"from", res.before.Status,
		"to", res.after.Status,
	)
	return &res.after, nil
}

// fail undoes the write tagged gen and records err under op.
func (s *Service) fail(op, postID string, gen uint64, err error) error {
	reverted := s.store.revert(postID, gen)

	merr := &domain.MutationError{Op: op, Err: err}
	s.setError(merr.Error())
	s.logger.Error("mutation failed",
		"op", op,
		"post_id", postID,
		"reverted", reverted,
		"error", err,
	)
	return merr
}

// touch stamps UpdatedAt on every transition that changes the post.
func touch(t Transition) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		changed, err := t(p, now)
		if err == nil && changed {
			p.UpdatedAt = now
		}
		return changed, err
	}
}

// LastError returns the message of the most recent failed write, or "".
func (s *Service) LastError() string {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.lastErr
}

// ClearError empties the error slot.
func (s *Service) ClearError() {
	s.setError("")
}

func (s *Service) setError(msg string) {
	s.errMu.Lock()
	s.lastErr = msg
	s.errMu.Unlock()
}

// newComments returns the comments in after that before does not have.
func newComments(before, after *content.Post) []content.Comment {
	seen := make(map[string]struct{}, len(before.Comments))
	for _, c := range before.Comments {
		seen[c.ID] = struct{}{}
	}
	var out []content.Comment
	for _, c := range after.Comments {
		if _, ok := seen[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// mediaDiff splits the change between two attachment lists.
func mediaDiff(before, after *content.Post) (added []content.MediaFile, removed []string) {
	old := make(map[string]struct{}, len(before.Media))
	for _, m := range before.Media {
		old[m.ID] = struct{}{}
	}
	kept := make(map[string]struct{}, len(after.Media))
	for _, m := range after.Media {
		kept[m.ID] = struct{}{}
		if _, ok := old[m.ID]; !ok {
			added = append(added, m)
		}
	}
	for _, m := range before.Media {
		if _, ok := kept[m.ID]; !ok {
			removed = append(removed, m.ID)
		}
	}
	return added, removed
}
