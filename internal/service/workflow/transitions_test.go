package workflow

import (
	"errors"
	"testing"
	"time"

	"postflow/internal/domain"
	"postflow/internal/domain/models"
	"postflow/internal/domain/models/content"
)

// stubDirectory maps user ids straight to roles.
type stubDirectory map[string]models.RoleKey

func (d stubDirectory) HasRole(userID string, role models.RoleKey) bool {
	return d[userID] == role
}

func (d stubDirectory) DisplayName(userID string) string {
	return "user:" + userID
}

func (d stubDirectory) DisplayNameForRole(role models.RoleKey) string {
	return "role:" + string(role)
}

var stubDir = stubDirectory{
	authorID:   models.RoleAuthor,
	designerID: models.RoleDesigner,
	approverID: models.RoleApprover,
}

func TestTransitions_Table(t *testing.T) {
	future := base.Add(24 * time.Hour)

	tests := []struct {
		name       string
		from       content.Post
		transition Transition
		want       content.Status
		wantErr    error
	}{
		{"submit draft", draft("p"), Submit(stubDir), content.StatusFinalReview, nil},
		{"submit draft with creative", withMedia(draft("p")), Submit(stubDir), content.StatusDesignReview, nil},
		{"submit approved", inStatus(draft("p"), content.StatusApproved), Submit(stubDir), "", domain.ErrInvalidTransition},
		{"approve creative", inStatus(draft("p"), content.StatusDesignReview), ApproveCreative(designerID, stubDir), content.StatusFinalReview, nil},
		{"approve creative on draft", draft("p"), ApproveCreative(designerID, stubDir), "", domain.ErrInvalidTransition},
		{"approve final", inStatus(draft("p"), content.StatusFinalReview), ApproveFinal(approverID, stubDir), content.StatusApproved, nil},
		{"approve final as designer", inStatus(draft("p"), content.StatusFinalReview), ApproveFinal(designerID, stubDir), "", domain.ErrForbidden},
		{"schedule approved", inStatus(draft("p"), content.StatusApproved), Schedule(future, time.UTC), content.StatusScheduled, nil},
		{"schedule in the past", inStatus(draft("p"), content.StatusApproved), Schedule(base.Add(-time.Minute), time.UTC), "", domain.ErrValidation},
		{"schedule now", inStatus(draft("p"), content.StatusApproved), Schedule(base, time.UTC), "", domain.ErrValidation},
		{"schedule draft", draft("p"), Schedule(future, time.UTC), "", domain.ErrInvalidTransition},
		{"reschedule missed", inStatus(draft("p"), content.StatusMissed), Reschedule(future, time.UTC), content.StatusScheduled, nil},
		{"reschedule approved", inStatus(draft("p"), content.StatusApproved), Reschedule(future, time.UTC), "", domain.ErrInvalidTransition},
		{"mark scheduled posted", inStatus(draft("p"), content.StatusScheduled), MarkPosted(nil), content.StatusPosted, nil},
		{"mark missed posted", inStatus(draft("p"), content.StatusMissed), MarkPosted(nil), content.StatusPosted, nil},
		{"mark approved posted", inStatus(draft("p"), content.StatusApproved), MarkPosted(nil), "", domain.ErrInvalidTransition},
		{"missed to draft", inStatus(draft("p"), content.StatusMissed), MoveToDraft(), content.StatusDraft, nil},
		{"scheduled to draft", inStatus(draft("p"), content.StatusScheduled), MoveToDraft(), "", domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.from.Clone()
			changed, err := tt.transition(&p, base)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !changed {
				t.Fatal("transition reported no change")
			}
			if p.Status != tt.want {
				t.Errorf("status = %s, want %s", p.Status, tt.want)
			}
		})
	}
}

func TestTransitions_Idempotent(t *testing.T) {
	approved := inStatus(draft("p"), content.StatusApproved)
	approved.Creative.Approve(designerID, base)
	approved.Final.Approve(approverID, base)
	slot := base.Add(time.Hour)

	tests := []struct {
		name       string
		from       content.Post
		transition Transition
	}{
		{"approve creative again", approved, ApproveCreative(designerID, stubDir)},
		{"approve final again", approved, ApproveFinal(approverID, stubDir)},
		{"submit while in review", inStatus(draft("p"), content.StatusFinalReview), Submit(stubDir)},
		{"mark posted twice", inStatus(draft("p"), content.StatusPosted), MarkPosted(nil)},
		{"schedule same slot", scheduledAt(draft("p"), slot), Schedule(slot, time.UTC)},
		{"sweep a missed post", inStatus(scheduledAt(draft("p"), base.Add(-5*time.Hour)), content.StatusMissed), MarkMissed(time.Hour)},
		{"sweep a post not yet due", scheduledAt(draft("p"), base.Add(-30*time.Minute)), MarkMissed(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.from.Clone()
			changed, err := tt.transition(&p, base)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if changed {
				t.Error("expected a no-op")
			}
			if p.Status != tt.from.Status {
				t.Errorf("status moved from %s to %s", tt.from.Status, p.Status)
			}
		})
	}
}

func TestDeny_AppendsAttributedComment(t *testing.T) {
	p := inStatus(draft("p"), content.StatusDesignReview)
	p.Creative.Approve(designerID, base.Add(-time.Hour))

	changed, err := Deny(Denial{Gate: content.GateCreative, ActorID: designerID, Reason: "  needs contrast "}, stubDir)(&p, base)
	if err != nil || !changed {
		t.Fatalf("Deny() = %v, %v", changed, err)
	}

	if p.Creative.Approved {
		t.Error("denial must withdraw the gate's approval")
	}
	if got := *p.Creative.DenialReason; got != "needs contrast" {
		t.Errorf("reason = %q", got)
	}
	if len(p.Comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(p.Comments))
	}
	c := p.Comments[0]
	if c.Text != "Creative denied: needs contrast" || c.AuthorName != "user:"+designerID || c.PostID != "p" || c.ID == "" {
		t.Errorf("unexpected comment %+v", c)
	}
	if got := *p.WaitingFor; got != "role:designer" {
		t.Errorf("waiting for = %q", got)
	}
}

func TestSchedule_FormatsSlotInLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	at := time.Date(2025, time.March, 12, 8, 30, 0, 0, time.UTC)
	p := inStatus(draft("p"), content.StatusApproved)

	if _, err := Schedule(at, loc)(&p, base); err != nil {
		t.Fatal(err)
	}
	if *p.ScheduledDate != "2025-03-12" || *p.ScheduledTime != "09:30" {
		t.Errorf("slot = %s %s, want 2025-03-12 09:30", *p.ScheduledDate, *p.ScheduledTime)
	}
	if p.ScheduledAt.Location() != time.UTC || !p.ScheduledAt.Equal(at) {
		t.Errorf("scheduled at = %v", p.ScheduledAt)
	}
}

func TestOverdue(t *testing.T) {
	tests := []struct {
		name string
		post content.Post
		want bool
	}{
		{"61 minutes late", scheduledAt(draft("p"), base.Add(-61*time.Minute)), true},
		{"exactly an hour", scheduledAt(draft("p"), base.Add(-time.Hour)), true},
		{"59 minutes late", scheduledAt(draft("p"), base.Add(-59*time.Minute)), false},
		{"in the future", scheduledAt(draft("p"), base.Add(time.Hour)), false},
		{"scheduled without a slot", inStatus(draft("p"), content.StatusScheduled), false},
		{"approved with a past slot", inStatus(scheduledAt(draft("p"), base.Add(-3*time.Hour)), content.StatusApproved), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overdue(&tt.post, base, time.Hour); got != tt.want {
				t.Errorf("Overdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeny_ReturnTo(t *testing.T) {
	tests := []struct {
		name        string
		gate        content.Gate
		returnTo    content.Status
		want        content.Status
		wantWaiting string
		wantErr     error
	}{
		{"creative default", content.GateCreative, "", content.StatusDesignReview, "role:designer", nil},
		{"creative to draft", content.GateCreative, content.StatusDraft, content.StatusDraft, "user:" + authorID, nil},
		{"creative to final review", content.GateCreative, content.StatusFinalReview, "", "", domain.ErrValidation},
		{"final default", content.GateFinal, "", content.StatusDesignReview, "role:designer", nil},
		{"final to draft", content.GateFinal, content.StatusDraft, content.StatusDraft, "user:" + authorID, nil},
		{"final to final review", content.GateFinal, content.StatusFinalReview, content.StatusFinalReview, "role:approver", nil},
		{"final to approved", content.GateFinal, content.StatusApproved, "", "", domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := designerID
			if tt.gate == content.GateFinal {
				actor = approverID
			}
			p := inStatus(draft("p"), tt.gate.ReviewStatus())

			_, err := Deny(Denial{Gate: tt.gate, ActorID: actor, Reason: "again", ReturnTo: tt.returnTo}, stubDir)(&p, base)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Deny() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Deny() error = %v", err)
			}
			if p.Status != tt.want {
				t.Errorf("status = %s, want %s", p.Status, tt.want)
			}
			if p.WaitingFor == nil || *p.WaitingFor != tt.wantWaiting {
				t.Errorf("waiting for = %v, want %q", p.WaitingFor, tt.wantWaiting)
			}
			if p.RevisionCount != 1 {
				t.Errorf("revision count = %d, want 1", p.RevisionCount)
			}
		})
	}
}
