// Package userdir is the client for the external user/profile directory. The
// core treats it as a collaborator: lookups may fail and callers are expected
// to fall back rather than surface the failure.
package userdir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// User is the directory's profile record.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// Directory abstracts the user directory for mocking.
type Directory interface {
	GetUser(ctx context.Context, id int) (User, error)
	BulkUsers(ctx context.Context, ids []int) ([]User, error)
	Search(ctx context.Context, query string, limit int) ([]User, error)
}

// Client talks JSON over HTTP to the user directory.
type Client struct {
	baseURL string
	http    *http.Client
	retry   time.Duration
}

// NewClient constructs a Client. Idempotent GETs are retried with exponential
// backoff for up to the timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		retry:   timeout,
	}
}

// GetUser fetches a single profile.
func (c *Client) GetUser(ctx context.Context, id int) (User, error) {
	var user User
	err := c.getJSON(ctx, fmt.Sprintf("%s/internal/users/%d", c.baseURL, id), &user)
	return user, err
}

// BulkUsers fetches multiple profiles in one call.
func (c *Client) BulkUsers(ctx context.Context, ids []int) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}

	var resp struct {
		Users []User `json:"users"`
	}
	endpoint := c.baseURL + "/internal/users?ids=" + strings.Join(parts, ",")
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Search looks up profiles by name prefix.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	endpoint := fmt.Sprintf("%s/internal/users/search?q=%s&limit=%d",
		c.baseURL, url.QueryEscape(query), limit)
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("user directory: status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("user directory: status %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("user directory: decode: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retry
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
