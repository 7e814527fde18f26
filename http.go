package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cdr.dev/slog"

	"github.com/mcpbridge/mcpbridge/config"
	"github.com/mcpbridge/mcpbridge/wire"
)

const (
	headerSessionID = "Mcp-Session-Id"
	acceptMedia     = "application/json, text/event-stream"

	// maxBodyBytes bounds how much of a response body is read. Servers are
	// untrusted input here.
	maxBodyBytes = 8 << 20
)

// verifyHTTP performs a single initialize POST against the configured
// endpoint. A deadline is inconclusive and reported as pending, not failed:
// some servers are merely slow to start.
func (b *Bridge) verifyHTTP(ctx context.Context, name string, cfg config.ServerConfig) ServerStatus {
	status := ServerStatus{Name: name, Status: StatusPending}
	call := b.newHTTPCall("http-verify", name, cfg)

	ctx, cancel := context.WithTimeout(ctx, b.settings.HTTPVerifyTimeout)
	defer cancel()

	resp, err := call.post(ctx, wire.NewInitializeRequest(1))
	if err != nil {
		var statusErr *httpStatusError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			call.logger.Debug(ctx, "verification timed out, reporting pending")
		case errors.As(err, &statusErr) && statusErr.authChallenge():
			status.Status = StatusNeedsAuth
			status.Error = err.Error()
		default:
			status.Status = StatusFailed
			status.Error = err.Error()
		}
		return status
	}
	if resp.Error != nil {
		status.Status = StatusFailed
		status.Error = resp.Error.Error()
		return status
	}

	// serverInfo is optional in the wild, so its absence does not fail the
	// verification.
	status.Status = StatusConnected
	var result wire.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err == nil {
		status.ServerInfo = result.ServerInfo
	}
	return status
}

// httpCall carries the connection details shared by every request within one
// verify or tools-fetch call, including the captured session id.
type httpCall struct {
	bridge    *Bridge
	logger    slog.Logger
	url       string
	headers   map[string]string
	sessionID string
}

func (b *Bridge) newHTTPCall(scope, name string, cfg config.ServerConfig) *httpCall {
	url, authHeaders := wire.ExtractAuthFromQuery(cfg.URL)
	headers := make(map[string]string, len(cfg.Headers)+len(authHeaders))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return &httpCall{
		bridge:  b,
		logger:  b.callLogger(scope, name),
		url:     url,
		headers: headers,
	}
}

func (c *httpCall) newRequest(ctx context.Context, req wire.Request) (*http.Request, error) {
	body, err := req.Encode()
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", acceptMedia)
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if c.sessionID != "" {
		httpReq.Header.Set(headerSessionID, c.sessionID)
	}
	return httpReq, nil
}

// post sends one JSON-RPC request and decodes the reply, capturing the
// session id header from the first response that carries one.
func (c *httpCall) post(ctx context.Context, req wire.Request) (*wire.Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if c.bridge.settings.Debug {
		c.logger.Debug(ctx, "sending request", slog.F("method", req.Method))
	}
	httpResp, err := c.bridge.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if sid := httpResp.Header.Get(headerSessionID); sid != "" && c.sessionID == "" {
		c.sessionID = sid
		c.logger.Debug(ctx, "captured session id")
	}
	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{status: httpResp.StatusCode}
	}
	return decodeRPCBody(data, req.ID)
}

// notify fires a JSON-RPC notification. No response is expected and delivery
// failures are logged, not returned.
func (c *httpCall) notify(ctx context.Context, req wire.Request) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		c.logger.Debug(ctx, "skipping notification", slog.Error(err))
		return
	}
	httpResp, err := c.bridge.client.Do(httpReq)
	if err != nil {
		c.logger.Debug(ctx, "notification not delivered", slog.Error(err))
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxBodyBytes))
	httpResp.Body.Close()
}

// decodeRPCBody accepts either an SSE-framed body or plain JSON. SSE is
// tried first; with no well-formed SSE event the whole body is decoded as a
// single JSON-RPC response.
func decodeRPCBody(data []byte, id int64) (*wire.Response, error) {
	for _, ev := range wire.ParseSSE(data) {
		var resp wire.Response
		if err := json.Unmarshal(ev.Data, &resp); err != nil || resp.JSONRPC != "2.0" {
			continue
		}
		if resp.ID == id || resp.Error != nil {
			return &resp, nil
		}
	}
	var resp wire.Response
	if err := json.Unmarshal(data, &resp); err != nil || resp.JSONRPC != "2.0" {
		return nil, errors.New("response body is neither SSE nor JSON-RPC")
	}
	return &resp, nil
}

// httpStatusError reports a non-2xx response status.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected response status %d", e.status)
}

func (e *httpStatusError) authChallenge() bool {
	return e.status == http.StatusUnauthorized || e.status == http.StatusForbidden
}
