package workflow

import (
	"context"
	"time"

	"postflow/internal/config"
	"postflow/internal/domain"
	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"
)

// CheckAndMarkMissedPosts flips every scheduled post whose slot passed at
// least an hour ago to missed. The batch lands locally in one step and is
// written with one gateway call. A failed write is logged and rolled back;
// the posts stay scheduled for the next sweep and the call reports zero.
//
// Every call scans. Calls that arrive while a sweep is running wait for it
// and share its count.
func (s *Service) CheckAndMarkMissedPosts(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err, shared := s.sweeps.Do("sweep", func() (any, error) {
		return s.sweep(ctx)
	})
	if err != nil {
		return 0, err
	}
	if shared {
		s.logger.Debug("sweep joined one already running")
	}
	return v.(int), nil
}

func (s *Service) sweep(ctx context.Context) (int, error) {
	due := s.store.anyMatch(func(p *content.Post) bool {
		return Overdue(p, s.now(), config.MissedAfter)
	})
	if !due {
		return 0, nil
	}
	// Paces batch writes; the scan above never waits
	if s.sweepLimiter != nil {
		if err := s.sweepLimiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	flipped, err := s.store.updateAll(s.now(), MarkMissed(config.MissedAfter))
	if err != nil {
		return 0, err
	}
	if len(flipped) == 0 {
		return 0, nil
	}

	ids := make([]string, len(flipped))
	for i, res := range flipped {
		ids[i] = res.after.ID
	}

	patch := repositories.Row{colStatus: string(content.StatusMissed)}
	if err := s.gateway.UpdateByIDs(context.WithoutCancel(ctx), s.store.tables.Posts, ids, patch); err != nil {
		for _, res := range flipped {
			s.store.revert(res.after.ID, res.gen)
		}
		s.logger.Error("sweep write failed, posts stay scheduled",
			"posts", len(ids),
			"error", err,
		)
		s.setError((&domain.MutationError{Op: "mark missed posts", Err: err}).Error())
		return 0, nil
	}

	for _, res := range flipped {
		s.store.confirm(res.after.ID, res.gen)
	}
	s.logger.Info("marked missed posts", "count", len(ids), "post_ids", ids)
	return len(ids), nil
}

// Sweeper runs CheckAndMarkMissedPosts on a fixed interval.
type Sweeper struct {
	service  *Service
	interval time.Duration
}

// NewSweeper creates a sweeper. An interval of zero or less disables Run.
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.service.logger.Info("missed-post sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	n, err := w.service.CheckAndMarkMissedPosts(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.service.logger.Warn("sweep failed", "error", err)
		}
		return
	}
	if n > 0 {
		w.service.logger.Debug("sweep finished", "missed", n)
	}
}
