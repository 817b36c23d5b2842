package content

// Status is a post's position in the review/scheduling workflow.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusDesignReview Status = "design_review"
	StatusFinalReview  Status = "final_review"
	StatusApproved     Status = "approved"
	StatusScheduled    Status = "scheduled"
	StatusPosted       Status = "posted"
	StatusMissed       Status = "missed"
)

// AllStatuses lists every status in board column order.
var AllStatuses = []Status{
	StatusDraft,
	StatusDesignReview,
	StatusFinalReview,
	StatusApproved,
	StatusScheduled,
	StatusPosted,
	StatusMissed,
}

// Valid reports whether s is one of the seven workflow statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s. Missed is recoverable.
func (s Status) Terminal() bool {
	return s == StatusPosted
}

// ParseStatus converts a raw value into a Status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}

// Platform is the social network a post targets.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
)

// AllPlatforms is the closed set of supported platforms.
var AllPlatforms = []Platform{
	PlatformInstagram,
	PlatformLinkedIn,
	PlatformFacebook,
	PlatformTwitter,
	PlatformTikTok,
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}
