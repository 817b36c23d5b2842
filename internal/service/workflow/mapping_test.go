package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow/internal/domain/models/content"
	"postflow/internal/domain/repositories"
)

func TestPostFromRow_RoundTrip(t *testing.T) {
	p := scheduledAt(withMedia(draft("p")), base.Add(48*time.Hour))
	p.Theme = strPtr("spring")
	p.Creative.Approve(designerID, base)
	p.Final.Deny(approverID, "typo", base)
	p.RevisionCount = 3
	p.WaitingFor = strPtr("Dana")
	p.Media = []content.MediaFile{}
	p.Comments = []content.Comment{}
	p.RefreshCreative()

	got, err := postFromRow(postToRow(&p), time.UTC)
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPostFromRow_RejectsMissingMandatoryColumns(t *testing.T) {
	complete := repositories.Row{"id": "p", "title": "T", "account": "a", "status": "draft"}

	for _, key := range []string{"id", "title", "account", "status"} {
		t.Run(key, func(t *testing.T) {
			row := repositories.Row{}
			for k, v := range complete {
				if k != key {
					row[k] = v
				}
			}
			_, err := postFromRow(row, time.UTC)
			assert.Error(t, err)
		})
	}

	t.Run("unknown status", func(t *testing.T) {
		row := repositories.Row{"id": "p", "title": "T", "account": "a", "status": "archived"}
		_, err := postFromRow(row, time.UTC)
		assert.Error(t, err)
	})
}

func TestPostFromRow_ToleratesOddOptionalColumns(t *testing.T) {
	id := uuid.New()
	row := repositories.Row{
		"id":                [16]byte(id),
		"title":             "T",
		"account":           "a",
		"status":            "scheduled",
		"ai_score":          json.Number("12"),
		"tov_score":         float64(75),
		"revision_count":    "not a number",
		"creative_approved": "true",
		"final_approved":    1,
		"theme":             nil,
		"scheduled_date":    "2025-03-12",
		"scheduled_time":    "14:30",
		"posted_at":         "garbage",
		"created_at":        "2025-03-01T10:00:00Z",
	}

	p, err := postFromRow(row, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, id.String(), p.ID)
	assert.Equal(t, 12, p.AIScore)
	assert.Equal(t, 75, p.TOVScore)
	assert.Zero(t, p.RevisionCount)
	assert.True(t, p.Creative.Approved)
	assert.False(t, p.Final.Approved)
	assert.Nil(t, p.Theme)
	assert.Nil(t, p.PostedAt)
	assert.NotNil(t, p.Media)
	assert.NotNil(t, p.Comments)
	assert.False(t, p.HasCreative)

	// Legacy rows without scheduled_iso fall back to the date and time columns
	require.NotNil(t, p.ScheduledAt)
	assert.True(t, time.Date(2025, time.March, 12, 14, 30, 0, 0, time.UTC).Equal(*p.ScheduledAt))
	assert.True(t, time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC).Equal(p.CreatedAt))
}

func TestMediaFromRow_DefaultsUnknownType(t *testing.T) {
	m, ok := mediaFromRow(repositories.Row{"id": "m", "post_id": "p", "type": "gif", "duration": 2.5})
	require.True(t, ok)
	assert.Equal(t, content.MediaDocument, m.Type)
	require.NotNil(t, m.Duration)
	assert.Equal(t, 2.5, *m.Duration)

	_, ok = mediaFromRow(repositories.Row{"id": "m"})
	assert.False(t, ok, "media without a post is unusable")
}

func TestCommentFromRow(t *testing.T) {
	c, ok := commentFromRow(repositories.Row{
		"id":          "c",
		"post_id":     "p",
		"author_id":   nil,
		"author_name": "Dana",
		"text":        "hi",
		"created_at":  base,
	})
	require.True(t, ok)
	assert.Equal(t, "", c.AuthorID)
	assert.True(t, base.Equal(c.CreatedAt))

	_, ok = commentFromRow(repositories.Row{"post_id": "p"})
	assert.False(t, ok)
}
