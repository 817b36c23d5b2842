package content

import "time"

// Post is the central aggregate: content, review state, schedule and its
// comment thread and media. Title, Account and Status are always set on a
// persisted post.
type Post struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Platform Platform `json:"platform"`
	Account  string   `json:"account"`
	Theme    *string  `json:"theme,omitempty"`

	// Produced by the external scorer; read-only to the workflow.
	AIScore  int `json:"ai_score"`
	TOVScore int `json:"tov_score"`

	HasCreative bool        `json:"has_creative"`
	Media       []MediaFile `json:"media"`

	Creative GateReview `json:"creative_review"`
	Final    GateReview `json:"final_review"`

	RevisionCount int     `json:"revision_count"`
	WaitingFor    *string `json:"waiting_for"`

	ScheduledDate *string    `json:"scheduled_date,omitempty"` // "2006-01-02"
	ScheduledTime *string    `json:"scheduled_time,omitempty"` // "15:04"
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	PostURL       *string    `json:"post_url,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`

	Status   Status    `json:"status"`
	Comments []Comment `json:"comments"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review returns the review record for a gate.
func (p *Post) Review(g Gate) *GateReview {
	if g == GateCreative {
		return &p.Creative
	}
	return &p.Final
}

// RefreshCreative recomputes HasCreative from the media list.
func (p *Post) RefreshCreative() {
	p.HasCreative = len(p.Media) > 0
}

// ClearSchedule drops every scheduling and publishing field.
func (p *Post) ClearSchedule() {
	p.ScheduledDate = nil
	p.ScheduledTime = nil
	p.ScheduledAt = nil
	p.PostURL = nil
	p.PostedAt = nil
}

// Clone returns a deep copy that shares no pointers or slices with p.
func (p Post) Clone() Post {
	c := p
	c.Theme = cloneString(p.Theme)
	c.WaitingFor = cloneString(p.WaitingFor)
	c.ScheduledDate = cloneString(p.ScheduledDate)
	c.ScheduledTime = cloneString(p.ScheduledTime)
	c.ScheduledAt = cloneTime(p.ScheduledAt)
	c.PostURL = cloneString(p.PostURL)
	c.PostedAt = cloneTime(p.PostedAt)
	c.Creative = p.Creative.clone()
	c.Final = p.Final.clone()

	if p.Media != nil {
		c.Media = make([]MediaFile, len(p.Media))
		for i, m := range p.Media {
			c.Media[i] = m.clone()
		}
	}
	if p.Comments != nil {
		c.Comments = make([]Comment, len(p.Comments))
		copy(c.Comments, p.Comments)
	}
	return c
}

func (r GateReview) clone() GateReview {
	c := r
	c.ApprovedBy = cloneString(r.ApprovedBy)
	c.ApprovedAt = cloneTime(r.ApprovedAt)
	c.DeniedBy = cloneString(r.DeniedBy)
	c.DenialReason = cloneString(r.DenialReason)
	c.DeniedAt = cloneTime(r.DeniedAt)
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Comment is one entry in a post's append-only discussion thread.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
