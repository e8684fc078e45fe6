// Package api talks to the admin quiz API: the service can run as a thin
// session layer in front of it instead of owning the quiz tables.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quiz-session-service/internal/domain"
)

// Client implements both session.QuizProvider and session.SubmissionSink
// against the upstream REST API:
//
//	GET  {base}/api/quizzes/public/{slug}
//	POST {base}/api/quizzes/public/{slug}/responses
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) FetchBySlug(ctx context.Context, slug string) (domain.Quiz, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.publicURL(slug, ""), nil)
	if err != nil {
		return domain.Quiz{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("fetch quiz: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.Quiz{}, domain.ErrQuizNotFound
	case http.StatusGone:
		return domain.Quiz{}, domain.ErrQuizClosed
	default:
		return domain.Quiz{}, fmt.Errorf("quiz api returned status %d", resp.StatusCode)
	}

	var quiz domain.Quiz
	if err := json.NewDecoder(resp.Body).Decode(&quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode quiz: %w", err)
	}
	return quiz, nil
}

func (c *Client) Submit(ctx context.Context, slug string, sub domain.Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.publicURL(slug, "/responses"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("quiz api returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) publicURL(slug, suffix string) string {
	return c.baseURL + "/api/quizzes/public/" + url.PathEscape(slug) + suffix
}
