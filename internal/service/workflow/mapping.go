package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

// Tables names the three remote tables that make up the post aggregate.
type Tables struct {
	Posts    string
	Comments string
	Media    string
}

// Column names shared by mapping and the sweeper's batch patch.
const (
	colID        = "id"
	colStatus    = "status"
	colPostID    = "post_id"
	colUpdatedAt = "updated_at"
)

// postFromRow maps a posts row onto a Post. Optional columns that are null,
// absent or of an unexpected type fall back to zero values; a row lacking a
// mandatory column (id, title, account, status) is rejected.
func postFromRow(row repositories.Row, loc *time.Location) (content.Post, error) {
	var p content.Post

	p.ID = str(row, colID)
	if p.ID == "" {
		return p, fmt.Errorf("post row without id")
	}
	p.Title = str(row, "title")
	p.Account = str(row, "account")
	status, ok := content.ParseStatus(str(row, colStatus))
	if p.Title == "" || p.Account == "" || !ok {
		return p, fmt.Errorf("post %s: missing title, account or valid status", p.ID)
	}
	p.Status = status

	p.Content = str(row, "content")
	p.Platform = content.Platform(str(row, "platform"))
	p.Theme = optStr(row, "theme")
	p.AIScore = integer(row, "ai_score")
	p.TOVScore = integer(row, "tov_score")
	p.Creative = reviewFromRow(row, "creative")
	p.Final = reviewFromRow(row, "final")
	p.RevisionCount = integer(row, "revision_count")
	p.WaitingFor = optStr(row, "waiting_for")
	p.ScheduledDate = optStr(row, "scheduled_date")
	p.ScheduledTime = optStr(row, "scheduled_time")
	p.ScheduledAt = optTime(row, "scheduled_iso")
	if p.ScheduledAt == nil && p.ScheduledDate != nil && p.ScheduledTime != nil {
		p.ScheduledAt = parseSlot(*p.ScheduledDate, *p.ScheduledTime, loc)
	}
	p.PostURL = optStr(row, "post_url")
	p.PostedAt = optTime(row, "posted_at")
	p.CreatedBy = str(row, "created_by")
	if t := optTime(row, "created_at"); t != nil {
		p.CreatedAt = *t
	}
	if t := optTime(row, colUpdatedAt); t != nil {
		p.UpdatedAt = *t
	}

	p.Media = []content.MediaFile{}
	p.Comments = []content.Comment{}
	p.RefreshCreative()
	return p, nil
}

func reviewFromRow(row repositories.Row, prefix string) content.GateReview {
	return content.GateReview{
		Approved:     boolean(row, prefix+"_approved"),
		ApprovedBy:   optStr(row, prefix+"_approved_by"),
		ApprovedAt:   optTime(row, prefix+"_approved_at"),
		Denied:       boolean(row, prefix+"_denied"),
		DeniedBy:     optStr(row, prefix+"_denied_by"),
		DenialReason: optStr(row, prefix+"_denial_reason"),
		DeniedAt:     optTime(row, prefix+"_denied_at"),
	}
}

// postToRow is the full column set of a post. Comments and media live in
// their own tables.
func postToRow(p *content.Post) repositories.Row {
	row := postPatch(p)
	row[colID] = p.ID
	row["created_by"] = nullable(p.CreatedBy)
	row["created_at"] = p.CreatedAt
	return row
}

// postPatch is every column a mutation may change. Writing them all keeps the
// remote row equal to the optimistic post.
func postPatch(p *content.Post) repositories.Row {
	row := repositories.Row{
		"title":          p.Title,
		"content":        p.Content,
		"platform":       string(p.Platform),
		"account":        p.Account,
		"theme":          p.Theme,
		"ai_score":       p.AIScore,
		"tov_score":      p.TOVScore,
		"has_creative":   p.HasCreative,
		"revision_count": p.RevisionCount,
		"waiting_for":    p.WaitingFor,
		"scheduled_date": p.ScheduledDate,
		"scheduled_time": p.ScheduledTime,
		"scheduled_iso":  p.ScheduledAt,
		"post_url":       p.PostURL,
		"posted_at":      p.PostedAt,
		colStatus:        string(p.Status),
		colUpdatedAt:     p.UpdatedAt,
	}
	reviewToRow(row, "creative", p.Creative)
	reviewToRow(row, "final", p.Final)
	return row
}

func reviewToRow(row repositories.Row, prefix string, r content.GateReview) {
	row[prefix+"_approved"] = r.Approved
	row[prefix+"_approved_by"] = r.ApprovedBy
	row[prefix+"_approved_at"] = r.ApprovedAt
	row[prefix+"_denied"] = r.Denied
	row[prefix+"_denied_by"] = r.DeniedBy
	row[prefix+"_denial_reason"] = r.DenialReason
	row[prefix+"_denied_at"] = r.DeniedAt
}

func commentFromRow(row repositories.Row) (content.Comment, bool) {
	c := content.Comment{
		ID:         str(row, colID),
		PostID:     str(row, colPostID),
		AuthorID:   str(row, "author_id"),
		AuthorName: str(row, "author_name"),
		Text:       str(row, "text"),
	}
	if t := optTime(row, "created_at"); t != nil {
		c.CreatedAt = *t
	}
	return c, c.ID != "" && c.PostID != ""
}

func commentToRow(c content.Comment) repositories.Row {
	return repositories.Row{
		colID:         c.ID,
		colPostID:     c.PostID,
		"author_id":   nullable(c.AuthorID),
		"author_name": c.AuthorName,
		"text":        c.Text,
		"created_at":  c.CreatedAt,
	}
}

func mediaFromRow(row repositories.Row) (content.MediaFile, bool) {
	m := content.MediaFile{
		ID:           str(row, colID),
		PostID:       str(row, colPostID),
		Type:         content.MediaType(str(row, "type")),
		URL:          str(row, "url"),
		Name:         str(row, "name"),
		Size:         int64(integer(row, "size")),
		Width:        integer(row, "width"),
		Height:       integer(row, "height"),
		Duration:     optFloat(row, "duration"),
		ThumbnailURL: optStr(row, "thumbnail_url"),
	}
	if !m.Type.Valid() {
		m.Type = content.MediaDocument
	}
	if t := optTime(row, "created_at"); t != nil {
		m.CreatedAt = *t
	}
	return m, m.ID != "" && m.PostID != ""
}

func mediaToRow(m content.MediaFile) repositories.Row {
	return repositories.Row{
		colID:           m.ID,
		colPostID:       m.PostID,
		"type":          string(m.Type),
		"url":           m.URL,
		"name":          m.Name,
		"size":          m.Size,
		"width":         m.Width,
		"height":        m.Height,
		"duration":      m.Duration,
		"thumbnail_url": m.ThumbnailURL,
		"created_at":    m.CreatedAt,
	}
}

// parseSlot combines the human-readable date and time columns into an
// instant, for rows written before scheduled_iso existed.
func parseSlot(date, clock string, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func str(row repositories.Row, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case []byte:
		return string(v)
	case [16]byte:
		return uuid.UUID(v).String()
	case uuid.UUID:
		return v.String()
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

func optStr(row repositories.Row, key string) *string {
	s := str(row, key)
	if s == "" {
		return nil
	}
	return &s
}

func integer(row repositories.Row, key string) int {
	switch v := row[key].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func optFloat(row repositories.Row, key string) *float64 {
	var f float64
	switch v := row[key].(type) {
	case *float64:
		if v == nil {
			return nil
		}
		f = *v
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	return &f
}

func boolean(row repositories.Row, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func optTime(row repositories.Row, key string) *time.Time {
	switch v := row[key].(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return &v
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		t := *v
		return &t
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		t, err := dateparse.ParseAny(v)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}
