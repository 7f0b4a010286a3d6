// Package gotrue is a small client for the hosted auth provider's REST API (GoTrue).
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jwalitptl/consultorio/pkg/circuitbreaker"
	"github.com/rs/zerolog"
)

var ErrNotConfigured = errors.New("auth provider url or anon key missing")

type Config struct {
	URL        string
	AnonKey    string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	// Module is sent as X-App-Module so provider logs can tell tenants apart.
	Module string
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth provider: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth provider: %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	anonKey    string
	module     string
	http       *http.Client
	cb         *circuitbreaker.CircuitBreaker
	retries    int
	retryDelay time.Duration
}

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		module:  cfg.Module,
		http:    &http.Client{Timeout: timeout},
		cb: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "gotrue-" + cfg.Module,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}, logger),
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password",
		map[string]string{"email": email, "password": password}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token",
		map[string]string{"refresh_token": refreshToken}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SignUp creates an account. The returned session is nil when the provider requires email
// confirmation before the first login.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup",
		map[string]string{"email": email, "password": password}, &raw); err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if s.AccessToken == "" || s.RefreshToken == "" {
		return nil, nil
	}
	return &s, nil
}

// Recover asks the provider to mail a password reset link pointing at redirectTo.
func (c *Client) Recover(ctx context.Context, email, redirectTo string) error {
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.do(ctx, http.MethodPost, path, map[string]string{"email": email}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var status int
	var respBody []byte
	err = c.cb.Execute(func() error {
		var reqErr error
		status, respBody, reqErr = c.requestJSON(ctx, method, c.baseURL+path, payload)
		if reqErr != nil {
			return reqErr
		}
		// Only server-side failures count against the breaker.
		if status >= 500 {
			return decodeError(status, respBody)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return decodeError(status, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// requestJSON retries transport errors and 5xx responses.
func (c *Client) requestJSON(ctx context.Context, method, target string, body []byte) (int, []byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
		if c.module != "" {
			req.Header.Set("X-App-Module", c.module)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.retries && sleep(ctx, c.retryDelay) {
				continue
			}
			return 0, nil, err
		}
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt < c.retries && sleep(ctx, c.retryDelay) {
				continue
			}
			return 0, nil, readErr
		}
		if resp.StatusCode >= 500 && attempt < c.retries && sleep(ctx, c.retryDelay) {
			continue
		}
		return resp.StatusCode, respBody, nil
	}
	return 0, nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// decodeError reads the several error shapes the provider uses.
func decodeError(status int, body []byte) *ProviderError {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	pe := &ProviderError{Status: status, Code: payload.ErrorCode}
	if pe.Code == "" {
		pe.Code = payload.Error
	}
	for _, m := range []string{payload.ErrorDescription, payload.Msg, payload.Message, payload.Error} {
		if m != "" {
			pe.Message = m
			break
		}
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}
