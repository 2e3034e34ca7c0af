package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const adminDayPath = "/api/v1/admin/day"

// Client talks to the admin and public HTTP API
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	return c.admin(ctx, http.MethodGet, "/status", nil)
}

func (c *Client) Start(ctx context.Context) (map[string]any, error) {
	return c.admin(ctx, http.MethodPost, "/start", nil)
}

func (c *Client) Advance(ctx context.Context) (map[string]any, error) {
	return c.admin(ctx, http.MethodPost, "/advance", nil)
}

func (c *Client) Stop(ctx context.Context) (map[string]any, error) {
	return c.admin(ctx, http.MethodPost, "/stop", nil)
}

func (c *Client) Pause(ctx context.Context) (map[string]any, error) {
	return c.admin(ctx, http.MethodPost, "/pause", nil)
}

func (c *Client) Resume(ctx context.Context) (map[string]any, error) {
	return c.admin(ctx, http.MethodPost, "/resume", nil)
}

func (c *Client) AutoStatus(ctx context.Context) (map[string]any, error) {
	return c.admin(ctx, http.MethodGet, "/auto", nil)
}

// ConfigureAuto leaves the interval unchanged when intervalMinutes is nil
func (c *Client) ConfigureAuto(ctx context.Context, enabled bool, intervalMinutes *float64) (map[string]any, error) {
	body := map[string]any{"enabled": enabled}
	if intervalMinutes != nil {
		body["intervalMinutes"] = *intervalMinutes
	}
	return c.admin(ctx, http.MethodPost, "/auto", body)
}

func (c *Client) Events(ctx context.Context, limit int) (map[string]any, error) {
	return c.admin(ctx, http.MethodGet, "/events?limit="+strconv.Itoa(limit), nil)
}

func (c *Client) Reset(ctx context.Context, confirmation string) (map[string]any, error) {
	return c.admin(ctx, http.MethodPost, "/reset", map[string]any{"confirmation": confirmation})
}

func (c *Client) Leaderboard(ctx context.Context, limit int) (map[string]any, error) {
	var out map[string]any
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/public/leaderboard"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) admin(ctx context.Context, method, path string, in any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, adminDayPath+path, in, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
