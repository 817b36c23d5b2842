// Package scoring calls the external service that rates a post's text for
// AI-likelihood and tone of voice.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"postflow/internal/domain/models/content"
	contentSvc "postflow/internal/domain/services/content"
)

// Client implements content.Scorer over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ contentSvc.Scorer = (*Client)(nil)

// NewClient creates a scorer client. apiKey may be empty.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ScoreRequest is the payload sent for one post
type ScoreRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Platform string `json:"platform"`
	Account  string `json:"account"`
}

// ScoreResponse carries both scores on a 0-100 scale
type ScoreResponse struct {
	AIScore  *int `json:"ai_score"`
	TOVScore *int `json:"tov_score"`
}

// Score posts the post's text to {baseURL}/score.
func (c *Client) Score(ctx context.Context, post *content.Post) (aiScore, tovScore int, err error) {
	payload, err := json.Marshal(ScoreRequest{
		Title:    post.Title,
		Content:  post.Content,
		Platform: string(post.Platform),
		Account:  post.Account,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(payload))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to call scorer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read scorer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("scorer failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ScoreResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, 0, fmt.Errorf("failed to decode scorer response: %w", err)
	}
	if out.AIScore == nil || out.TOVScore == nil {
		return 0, 0, fmt.Errorf("scorer response is missing a score")
	}
	return *out.AIScore, *out.TOVScore, nil
}
