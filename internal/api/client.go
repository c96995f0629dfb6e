// Package api implements the single outbound gateway to the remote wallet
// API. The bearer token is an explicit argument on every call so the client
// itself carries no per-user state and can be shared across sessions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/themaden/copperx-telegram-bot/core/logger"
	"log/slog"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 30 * time.Second
	defaultResponseTimeout = 10 * time.Second
)

// Client talks to the wallet API. Failures are translated into *Failure and
// propagate to the caller immediately: this layer never retries.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given base URL. The timeout bounds the whole
// request at the transport level; there is no application-level deadline.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: defaultResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Get performs a GET request with optional query parameters.
func (c *Client) Get(ctx context.Context, token, path string, query url.Values, out any) error {
	return c.do(ctx, token, http.MethodGet, path, query, nil, out)
}

// Post performs a POST request with a JSON payload.
func (c *Client) Post(ctx context.Context, token, path string, payload, out any) error {
	return c.do(ctx, token, http.MethodPost, path, nil, payload, out)
}

// Put performs a PUT request with a JSON payload.
func (c *Client) Put(ctx context.Context, token, path string, payload, out any) error {
	return c.do(ctx, token, http.MethodPut, path, nil, payload, out)
}

// Delete performs a DELETE request with optional query parameters.
func (c *Client) Delete(ctx context.Context, token, path string, query url.Values, out any) error {
	return c.do(ctx, token, http.MethodDelete, path, query, nil, out)
}

// errorBody is the error shape the wallet API returns for non-2xx answers.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, payload, out any) error {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return genericFailure(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return genericFailure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error(ctx, "api", "request.fail",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return genericFailure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return genericFailure(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := translate(resp.StatusCode, data)
		logger.Warn(ctx, "api", "request.error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_code", resp.StatusCode),
			slog.String("err_code", failure.ErrCode),
			slog.Duration("duration", logger.Took(start)),
		)
		return failure
	}

	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "api", "request.ok",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.Took(start)),
		)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return genericFailure(err)
	}
	return nil
}

func translate(status int, body []byte) *Failure {
	parsed := errorBody{}
	_ = json.Unmarshal(body, &parsed)
	message := strings.TrimSpace(parsed.Message)
	if message == "" {
		message = "An error occurred"
	}
	return &Failure{
		Message:    message,
		HTTPStatus: status,
		ErrCode:    strings.TrimSpace(parsed.Error),
	}
}
