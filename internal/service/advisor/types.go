package advisor

import (
	"fmt"
	"strings"
	"time"

	"postflow/internal/domain/models/content"
)

// Tier is how strongly a time slot engages on a platform.
type Tier string

const (
	TierHighest Tier = "highest"
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
)

// Rating is the advice given for a candidate publish instant.
type Rating string

const (
	RatingOptimal Rating = "optimal"
	RatingGood    Rating = "good"
	RatingNeutral Rating = "neutral"
	RatingAvoid   Rating = "avoid"
)

// rank orders ratings best first.
func (r Rating) rank() int {
	switch r {
	case RatingOptimal:
		return 0
	case RatingGood:
		return 1
	case RatingNeutral:
		return 2
	}
	return 3
}

// Recommendation is the advice for one platform and instant.
type Recommendation struct {
	Platform content.Platform `json:"platform"`
	At       time.Time        `json:"at"`
	Rating   Rating           `json:"rating"`
	Tier     Tier             `json:"tier,omitempty"`
	Reason   string           `json:"reason"`
}

// Slot is one rated time-of-day window.
type Slot struct {
	Start string `yaml:"start" json:"start"` // "15:04"
	End   string `yaml:"end" json:"end"`
	Tier  Tier   `yaml:"tier" json:"tier"`

	startMin int
	endMin   int
}

// PlatformTable is the heuristic table of one platform.
type PlatformTable struct {
	BestDays  []string `yaml:"best_days" json:"best_days"`
	AvoidDays []string `yaml:"avoid_days" json:"avoid_days"`
	Slots     []Slot   `yaml:"slots" json:"slots"`

	best  map[time.Weekday]bool
	avoid map[time.Weekday]bool
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// compile parses day names and slot bounds.
func (t *PlatformTable) compile() error {
	var err error
	if t.best, err = daySet(t.BestDays); err != nil {
		return fmt.Errorf("best_days: %w", err)
	}
	if t.avoid, err = daySet(t.AvoidDays); err != nil {
		return fmt.Errorf("avoid_days: %w", err)
	}
	for i := range t.Slots {
		s := &t.Slots[i]
		if s.startMin, err = minuteOfDay(s.Start); err != nil {
			return fmt.Errorf("slot %d start: %w", i, err)
		}
		if s.endMin, err = minuteOfDay(s.End); err != nil {
			return fmt.Errorf("slot %d end: %w", i, err)
		}
		if s.endMin <= s.startMin {
			return fmt.Errorf("slot %d ends before it starts", i)
		}
		switch s.Tier {
		case TierHighest, TierHigh, TierMedium, TierLow:
		default:
			return fmt.Errorf("slot %d: unknown tier %q", i, s.Tier)
		}
	}
	return nil
}

// slotAt returns the slot covering minute m, or nil.
func (t *PlatformTable) slotAt(m int) *Slot {
	for i := range t.Slots {
		if m >= t.Slots[i].startMin && m < t.Slots[i].endMin {
			return &t.Slots[i]
		}
	}
	return nil
}

func daySet(names []string) (map[time.Weekday]bool, error) {
	set := make(map[time.Weekday]bool, len(names))
	for _, n := range names {
		d, ok := weekdays[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		set[d] = true
	}
	return set, nil
}

func minuteOfDay(clock string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
