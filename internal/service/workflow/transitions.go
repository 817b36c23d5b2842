package workflow

import (
	"strings"
	"time"

	"postflow/internal/domain"
	"postflow/internal/domain/models"
	"postflow/internal/domain/models/content"

	"github.com/google/uuid"
)

// Directory resolves the people a transition needs: who holds a role and what
// to call them. identity.Resolver satisfies it.
type Directory interface {
	HasRole(userID string, role models.RoleKey) bool
	DisplayName(userID string) string
	DisplayNameForRole(role models.RoleKey) string
}

// Transition computes a post's next state in place. It reports changed=false
// when the post is already where the transition would leave it, which makes
// repeated intents (a double-clicked approve) no-ops. A non-nil error means p
// must be discarded.
type Transition func(p *content.Post, now time.Time) (changed bool, err error)

// Submit moves a draft into the review gate its creative requires.
func Submit(dir Directory) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		switch p.Status {
		case content.StatusDesignReview, content.StatusFinalReview:
			return false, nil
		case content.StatusDraft:
		default:
			return false, invalid(p, "submit")
		}

		if err := ValidateSubmission(p); err != nil {
			return false, err
		}

		next := content.StatusFinalReview
		if p.HasCreative {
			next = content.StatusDesignReview
		}
		p.Status = next
		p.WaitingFor = waitingFor(next, p, dir)
		return true, nil
	}
}

// ApproveCreative passes design review. Only a designer may approve.
func ApproveCreative(actorID string, dir Directory) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		if p.Status != content.StatusDesignReview {
			if p.Creative.Approved && pastGate(p.Status, content.GateCreative) {
				return false, nil
			}
			return false, invalid(p, "approve creative for")
		}
		if !dir.HasRole(actorID, models.RoleDesigner) {
			return false, &domain.ForbiddenError{Message: "only the designer can approve creative"}
		}

		p.Creative.Approve(actorID, now)
		p.Status = content.StatusFinalReview
		p.WaitingFor = waitingFor(p.Status, p, dir)
		return true, nil
	}
}

// ApproveFinal passes final review. Only an approver may approve.
func ApproveFinal(actorID string, dir Directory) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		if p.Status != content.StatusFinalReview {
			if p.Final.Approved && pastGate(p.Status, content.GateFinal) {
				return false, nil
			}
			return false, invalid(p, "approve")
		}
		if !dir.HasRole(actorID, models.RoleApprover) {
			return false, &domain.ForbiddenError{Message: "only the approver can give final approval"}
		}

		p.Final.Approve(actorID, now)
		p.Status = content.StatusApproved
		p.WaitingFor = nil
		return true, nil
	}
}

// Denial describes one "send back for changes" decision at a gate.
type Denial struct {
	Gate     content.Gate
	ActorID  string
	Reason   string
	ReturnTo content.Status // zero value means the gate's default
}

// DefaultReturnTo is where a denied post goes when the caller does not say.
// Creative denial keeps the post in design review; final denial sends it back
// to design review rather than to draft.
func DefaultReturnTo(g content.Gate) content.Status {
	return content.StatusDesignReview
}

// validReturnTo reports whether a post denied at g may go back to status: draft
// or any review up to and including g's own.
func validReturnTo(g content.Gate, status content.Status) bool {
	switch status {
	case content.StatusDraft, content.StatusDesignReview:
		return true
	case content.StatusFinalReview:
		return g == content.GateFinal
	}
	return false
}

// Deny is the denial primitive shared by both gates. It records the denial on
// the gate, bumps the revision count, recomputes who the post waits for and
// appends the reason to the comment thread.
func Deny(d Denial, dir Directory) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		if !d.Gate.Valid() {
			return false, &domain.ValidationError{Message: "unknown review gate"}
		}
		reason := strings.TrimSpace(d.Reason)
		if reason == "" {
			return false, &domain.ValidationError{Message: "A reason is required to deny a post"}
		}
		returnTo := d.ReturnTo
		if returnTo == "" {
			returnTo = DefaultReturnTo(d.Gate)
		}
		if !validReturnTo(d.Gate, returnTo) {
			return false, &domain.ValidationError{Message: "a denied post can only return to draft or a review at or before " + string(d.Gate.ReviewStatus())}
		}
		if p.Status != d.Gate.ReviewStatus() {
			return false, invalid(p, "deny")
		}
		if role := roleForGate(d.Gate); !dir.HasRole(d.ActorID, role) {
			return false, &domain.ForbiddenError{Message: "only the " + string(role) + " can deny at this gate"}
		}

		p.Review(d.Gate).Deny(d.ActorID, reason, now)
		p.RevisionCount++
		p.Status = returnTo
		p.WaitingFor = waitingFor(returnTo, p, dir)
		p.Comments = append(p.Comments, content.Comment{
			ID:         uuid.NewString(),
			PostID:     p.ID,
			AuthorID:   d.ActorID,
			AuthorName: dir.DisplayName(d.ActorID),
			Text:       d.Gate.DenialLabel() + ": " + reason,
			CreatedAt:  now,
		})
		return true, nil
	}
}

// Schedule books an approved post into a future slot.
func Schedule(at time.Time, loc *time.Location) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		if p.Status == content.StatusScheduled && sameSlot(p.ScheduledAt, at) {
			return false, nil
		}
		if p.Status != content.StatusApproved {
			return false, invalid(p, "schedule")
		}
		if err := requireFuture(at, now); err != nil {
			return false, err
		}
		setSlot(p, at, loc)
		p.Status = content.StatusScheduled
		return true, nil
	}
}

// Reschedule moves a missed (or not yet due) post into a new future slot.
func Reschedule(at time.Time, loc *time.Location) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		if p.Status != content.StatusMissed && p.Status != content.StatusScheduled {
			return false, invalid(p, "reschedule")
		}
		if p.Status == content.StatusScheduled && sameSlot(p.ScheduledAt, at) {
			return false, nil
		}
		if err := requireFuture(at, now); err != nil {
			return false, err
		}
		setSlot(p, at, loc)
		p.Status = content.StatusScheduled
		return true, nil
	}
}

// MarkPosted records that a scheduled or missed post went out.
func MarkPosted(postURL *string) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		switch p.Status {
		case content.StatusPosted:
			return false, nil
		case content.StatusScheduled, content.StatusMissed:
		default:
			return false, invalid(p, "mark posted")
		}

		if postURL != nil {
			if u := strings.TrimSpace(*postURL); u != "" {
				p.PostURL = &u
			}
		}
		p.PostedAt = &now
		p.Status = content.StatusPosted
		return true, nil
	}
}

// MoveToDraft pulls a missed post back to draft and forgets its schedule.
func MoveToDraft() Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		if p.Status == content.StatusDraft {
			return false, nil
		}
		if p.Status != content.StatusMissed {
			return false, invalid(p, "move to draft")
		}
		p.ClearSchedule()
		p.Status = content.StatusDraft
		return true, nil
	}
}

// MarkMissed is the sweep transition: a scheduled post whose slot is at least
// threshold in the past becomes missed. Nothing else changes.
func MarkMissed(threshold time.Duration) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		if !Overdue(p, now, threshold) {
			return false, nil
		}
		p.Status = content.StatusMissed
		return true, nil
	}
}

// Overdue reports whether p is scheduled and its slot passed at least
// threshold ago.
func Overdue(p *content.Post, now time.Time, threshold time.Duration) bool {
	if p.Status != content.StatusScheduled || p.ScheduledAt == nil {
		return false
	}
	return now.Sub(*p.ScheduledAt) >= threshold
}

// Move resolves a board drag from the post's current column to `to`. Only
// edges that need no further input are reachable this way.
func Move(to content.Status, dir Directory) Transition {
	return func(p *content.Post, now time.Time) (bool, error) {
		if !to.Valid() {
			return false, &domain.ValidationError{Message: "unknown status: " + string(to)}
		}
		if p.Status == to {
			return false, nil
		}

		switch {
		case p.Status == content.StatusDraft &&
			(to == content.StatusDesignReview || to == content.StatusFinalReview):
			// The creative decides the gate; a drag cannot skip design review.
			if want := submitTarget(p); want != to {
				return false, &domain.ValidationError{Message: "this post must go to " + string(want)}
			}
			return Submit(dir)(p, now)
		case p.Status == content.StatusMissed && to == content.StatusDraft:
			return MoveToDraft()(p, now)
		case to == content.StatusPosted:
			return MarkPosted(nil)(p, now)
		}
		return false, &domain.TransitionError{PostID: p.ID, From: string(p.Status), Action: "move to " + string(to)}
	}
}

func submitTarget(p *content.Post) content.Status {
	if p.HasCreative {
		return content.StatusDesignReview
	}
	return content.StatusFinalReview
}

// roleForGate is the role that decides a gate.
func roleForGate(g content.Gate) models.RoleKey {
	if g == content.GateCreative {
		return models.RoleDesigner
	}
	return models.RoleApprover
}

// waitingFor names whoever blocks a post sitting in status.
func waitingFor(status content.Status, p *content.Post, dir Directory) *string {
	var name string
	switch status {
	case content.StatusDesignReview:
		name = dir.DisplayNameForRole(models.RoleDesigner)
	case content.StatusFinalReview:
		name = dir.DisplayNameForRole(models.RoleApprover)
	case content.StatusDraft:
		if p.CreatedBy != "" {
			name = dir.DisplayName(p.CreatedBy)
		} else {
			name = dir.DisplayNameForRole(models.RoleAuthor)
		}
	default:
		return nil
	}
	return &name
}

// pastGate reports whether status lies downstream of the gate.
func pastGate(status content.Status, g content.Gate) bool {
	switch status {
	case content.StatusApproved, content.StatusScheduled, content.StatusPosted, content.StatusMissed:
		return true
	case content.StatusFinalReview:
		return g == content.GateCreative
	}
	return false
}

func setSlot(p *content.Post, at time.Time, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	date := local.Format("2006-01-02")
	clock := local.Format("15:04")
	utc := at.UTC()
	p.ScheduledDate = &date
	p.ScheduledTime = &clock
	p.ScheduledAt = &utc
}

func sameSlot(current *time.Time, at time.Time) bool {
	return current != nil && current.Equal(at)
}

func requireFuture(at, now time.Time) error {
	if at.IsZero() {
		return &domain.ValidationError{Message: "A date and time are required"}
	}
	if !at.After(now) {
		return &domain.ValidationError{Message: "Scheduled time must be in the future"}
	}
	return nil
}

func invalid(p *content.Post, action string) error {
	return &domain.TransitionError{PostID: p.ID, From: string(p.Status), Action: action}
}
