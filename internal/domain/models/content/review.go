package content

import "time"

// Gate is a human-approval checkpoint a post must pass before scheduling.
type Gate string

const (
	GateCreative Gate = "creative"
	GateFinal    Gate = "final"
)

// Valid reports whether g names a known gate.
func (g Gate) Valid() bool {
	return g == GateCreative || g == GateFinal
}

// DenialLabel is the prefix of the synthetic comment recorded when the gate denies a post.
func (g Gate) DenialLabel() string {
	if g == GateCreative {
		return "Creative denied"
	}
	return "Final approval denied"
}

// ReviewStatus returns the status a post sits in while waiting on the gate.
func (g Gate) ReviewStatus() Status {
	if g == GateCreative {
		return StatusDesignReview
	}
	return StatusFinalReview
}

// GateReview is the approval/denial record for one gate. Creative and final
// review share this shape; a post carries one per gate.
type GateReview struct {
	Approved     bool       `json:"approved"`
	ApprovedBy   *string    `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	Denied       bool       `json:"denied"`
	DeniedBy     *string    `json:"denied_by,omitempty"`
	DenialReason *string    `json:"denial_reason,omitempty"`
	DeniedAt     *time.Time `json:"denied_at,omitempty"`
}

// Approve records an approval and clears any stale denial on the same gate.
func (r *GateReview) Approve(actorID string, at time.Time) {
	r.Approved = true
	r.ApprovedBy = &actorID
	r.ApprovedAt = &at
	r.clearDenial()
}

// Deny records a denial. A denied gate is no longer approved.
func (r *GateReview) Deny(actorID, reason string, at time.Time) {
	r.Denied = true
	r.DeniedBy = &actorID
	r.DenialReason = &reason
	r.DeniedAt = &at
	r.Approved = false
	r.ApprovedBy = nil
	r.ApprovedAt = nil
}

func (r *GateReview) clearDenial() {
	r.Denied = false
	r.DeniedBy = nil
	r.DenialReason = nil
	r.DeniedAt = nil
}
