package content

import "time"

// MediaType classifies an attached file.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	return t == MediaImage || t == MediaVideo || t == MediaDocument
}

// MediaFile is a creative asset attached to a post. Its presence routes the
// post through design review.
type MediaFile struct {
	ID           string    `json:"id"`
	PostID       string    `json:"post_id"`
	Type         MediaType `json:"type"`
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	Duration     *float64  `json:"duration,omitempty"`      // seconds, video only
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"` // video only
	CreatedAt    time.Time `json:"created_at"`
}

func (m MediaFile) clone() MediaFile {
	c := m
	if m.Duration != nil {
		d := *m.Duration
		c.Duration = &d
	}
	c.ThumbnailURL = cloneString(m.ThumbnailURL)
	return c
}
