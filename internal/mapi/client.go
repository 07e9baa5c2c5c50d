// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

// Package mapi is the REST client for the school's student-information
// system.
package mapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Error codes raised by the client.
const (
	CodeAuth        = "MAPI_AUTH"
	CodeSession     = "MAPI_SESSION"
	CodeUnavailable = "MAPI_UNAVAILABLE"
	CodeDecode      = "MAPI_DECODE"
)

// Token is an authenticated MAPI session handle.
type Token string

// Entry is one leaderboard row.
type Entry struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Client talks to the MAPI HTTP API. Transient failures (network errors and
// 5xx responses) are retried with backoff; auth failures are not.
type Client struct {
	baseURL string
	http    *http.Client

	maxRetries uint64
	retryBase  time.Duration
}

// Option configures a Client during construction.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryPolicy overrides the retry count and base backoff.
func WithRetryPolicy(maxRetries uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBase = base
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code(CodeUnavailable).With("base_url", baseURL).Errorf("invalid MAPI base URL")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 15 * time.Second},
		maxRetries: 3,
		retryBase:  250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login authenticates a student and returns a session token.
func (c *Client) Login(ctx context.Context, username, password string) (Token, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", oops.Code(CodeDecode).Wrap(err)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/login", "", body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", oops.Code(CodeDecode).Errorf("login response carried no token")
	}
	return Token(out.Token), nil
}

// HomeworkCounts returns the student's open homework count per school day,
// Monday through Saturday.
func (c *Client) HomeworkCounts(ctx context.Context, token Token) ([6]int, error) {
	var out struct {
		Counts []int `json:"counts"`
	}
	var counts [6]int
	if err := c.do(ctx, http.MethodGet, "/api/homework", token, nil, &out); err != nil {
		return counts, err
	}
	if len(out.Counts) != len(counts) {
		return counts, oops.Code(CodeDecode).
			With("got", len(out.Counts)).
			Errorf("homework response must carry one count per school day")
	}
	copy(counts[:], out.Counts)
	return counts, nil
}

// Leaderboard returns the class points standing.
func (c *Client) Leaderboard(ctx context.Context, token Token) ([]Entry, error) {
	var out struct {
		Entries []Entry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// do performs one API call with retry. A nil token means the endpoint is
// unauthenticated.
func (c *Client) do(ctx context.Context, method, path string, token Token, body []byte, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return oops.Code(CodeUnavailable).Wrap(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+string(token))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			slog.Warn("MAPI request failed, retrying", "path", path, "error", err)
			return retry.RetryableError(oops.Code(CodeUnavailable).With("path", path).Wrap(err))
		}
		defer resp.Body.Close() //nolint:errcheck // read-only body

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			if path == "/api/login" {
				return oops.Code(CodeAuth).Errorf("username or password rejected")
			}
			return oops.Code(CodeSession).Errorf("session expired")
		case resp.StatusCode >= 500:
			slog.Warn("MAPI responded with server error, retrying", "path", path, "status", resp.StatusCode)
			return retry.RetryableError(oops.Code(CodeUnavailable).
				With("path", path).
				With("status", resp.StatusCode).
				Errorf("MAPI returned %s", resp.Status))
		default:
			return oops.Code(CodeUnavailable).
				With("path", path).
				With("status", resp.StatusCode).
				Errorf("unexpected MAPI response %s", resp.Status)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(oops.Code(CodeUnavailable).With("path", path).Wrap(err))
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return oops.Code(CodeDecode).With("path", path).Wrap(err)
		}
		return nil
	})
}

// Weekday labels matching the HomeworkCounts slots.
var Weekdays = [6]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// FormatCounts renders homework counts as one line per school day.
func FormatCounts(counts [6]int) string {
	var b strings.Builder
	for i, day := range Weekdays {
		fmt.Fprintf(&b, "%s: %d\n", day, counts[i])
	}
	return strings.TrimRight(b.String(), "\n")
}
