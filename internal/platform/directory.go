// Package platform adapts the surrounding marketplace's services. The core
// treats these collaborators as authoritative and fails closed when they
// error.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/noah-isme/tutor-booking-api/pkg/config"
)

// Directory answers membership questions owned by the platform: who is
// enrolled in a course and who teaches it.
type Directory interface {
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	IsInstructor(ctx context.Context, userID, courseID string) (bool, error)
}

// Client is the HTTP Directory implementation calling the platform's
// internal API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Directory client from platform config.
func NewClient(cfg config.PlatformConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type membershipResponse struct {
	Member bool `json:"member"`
}

// IsEnrolled reports whether the student is enrolled in the course.
func (c *Client) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/internal/courses/%s/enrollments/%s", c.baseURL, url.PathEscape(courseID), url.PathEscape(studentID))
	return c.checkMembership(ctx, endpoint)
}

// IsInstructor reports whether the user teaches the course.
func (c *Client) IsInstructor(ctx context.Context, userID, courseID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/internal/courses/%s/instructors/%s", c.baseURL, url.PathEscape(courseID), url.PathEscape(userID))
	return c.checkMembership(ctx, endpoint)
}

func (c *Client) checkMembership(ctx context.Context, endpoint string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build directory request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload membershipResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return false, fmt.Errorf("decode directory response: %w", err)
		}
		return payload.Member, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("directory responded %d", resp.StatusCode)
	}
}
