package advisor

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"postflow/internal/config"
	"postflow/internal/domain/models/content"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Advisor rates candidate publish instants against per-platform engagement
// tables. It has no state beyond the tables it loaded.
type Advisor struct {
	loc *time.Location

	mu     sync.RWMutex
	tables map[content.Platform]*PlatformTable
}

// New creates an advisor from the embedded tables, evaluated in loc.
func New(loc *time.Location) (*Advisor, error) {
	if loc == nil {
		loc = time.UTC
	}
	data, err := configFiles.ReadFile("config/platforms.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded platform tables: %w", err)
	}

	a := &Advisor{loc: loc}
	if err := a.load(data); err != nil {
		return nil, fmt.Errorf("failed to load embedded platform tables: %w", err)
	}
	return a, nil
}

// LoadFile replaces the tables of every platform the file defines.
func (a *Advisor) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := a.load(data); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (a *Advisor) load(data []byte) error {
	var raw map[string]*PlatformTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed := make(map[content.Platform]*PlatformTable, len(raw))
	for name, table := range raw {
		p := content.Platform(strings.ToLower(name))
		if !p.Valid() {
			return fmt.Errorf("unknown platform %q", name)
		}
		if table == nil {
			return fmt.Errorf("%s: empty table", name)
		}
		if err := table.compile(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		parsed[p] = table
	}

	a.mu.Lock()
	if a.tables == nil {
		a.tables = make(map[content.Platform]*PlatformTable, len(parsed))
	}
	for p, t := range parsed {
		a.tables[p] = t
	}
	a.mu.Unlock()
	return nil
}

// Location is the timezone instants are judged in.
func (a *Advisor) Location() *time.Location {
	return a.loc
}

// Table returns the heuristic table for platform.
func (a *Advisor) Table(platform content.Platform) (*PlatformTable, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tables[platform]
	return t, ok
}

// Recommend rates at for platform. An avoid day always wins; otherwise a
// best day in a highest slot is optimal, a best day in a high slot is good,
// any other known slot is neutral and anything else is avoid.
func (a *Advisor) Recommend(platform content.Platform, at time.Time) (Recommendation, error) {
	table, ok := a.Table(platform)
	if !ok {
		return Recommendation{}, fmt.Errorf("unknown platform: %s", platform)
	}
	return rate(platform, table, at.In(a.loc)), nil
}

func rate(platform content.Platform, table *PlatformTable, local time.Time) Recommendation {
	rec := Recommendation{Platform: platform, At: local}
	day := local.Weekday()

	if table.avoid[day] {
		rec.Rating = RatingAvoid
		rec.Reason = fmt.Sprintf("%s is a low-engagement day on %s", day, platform)
		return rec
	}

	slot := table.slotAt(local.Hour()*60 + local.Minute())
	if slot == nil {
		rec.Rating = RatingAvoid
		rec.Reason = fmt.Sprintf("%s is outside every known %s slot", local.Format("15:04"), platform)
		return rec
	}
	rec.Tier = slot.Tier

	best := table.best[day]
	switch {
	case best && slot.Tier == TierHighest:
		rec.Rating = RatingOptimal
		rec.Reason = fmt.Sprintf("peak %s slot on a best day", platform)
	case best && slot.Tier == TierHigh:
		rec.Rating = RatingGood
		rec.Reason = fmt.Sprintf("strong %s slot on a best day", platform)
	default:
		rec.Rating = RatingNeutral
		rec.Reason = fmt.Sprintf("known %s slot (%s)", platform, slot.Tier)
	}
	return rec
}

// NextRecommendedTimes returns up to n slot starts after from, within the
// recommendation horizon, best rated first and then earliest first. Avoid
// candidates are never returned.
func (a *Advisor) NextRecommendedTimes(platform content.Platform, from time.Time, n int) ([]Recommendation, error) {
	table, ok := a.Table(platform)
	if !ok {
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}
	if n <= 0 {
		return []Recommendation{}, nil
	}

	local := from.In(a.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)

	var out []Recommendation
	for d := 0; d < config.RecommendationHorizonDays; d++ {
		day := midnight.AddDate(0, 0, d)
		for _, slot := range table.Slots {
			at := time.Date(day.Year(), day.Month(), day.Day(), slot.startMin/60, slot.startMin%60, 0, 0, a.loc)
			if !at.After(from) {
				continue
			}
			rec := rate(platform, table, at)
			if rec.Rating == RatingAvoid {
				continue
			}
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Rating.rank(), out[j].Rating.rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].At.Before(out[j].At)
	})

	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
