// Package api is the authenticated transport to the Task Sphere
// server: a JSON request layer that attaches the bearer token,
// silently refreshes it on 403 needsRefresh, and aborts in-flight
// work when the session is lost.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apierrors "github.com/tasksphere/sphere-client/internal/errors"
	"github.com/tasksphere/sphere-client/internal/store"
)

// AuthLossHandler is notified when the server rejects the session.
// Reason is "unauthorized" for a 401 and "expired" for a failed
// reactive refresh.
type AuthLossHandler func(reason string)

// Client is the bearer-token HTTP client. It is safe for concurrent
// use; the cancellation handle covers the current logical request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *store.Store

	mu            sync.Mutex
	onAuthLoss    AuthLossHandler
	cancelPending context.CancelFunc
	pendingSeq    uint64
}

// NewClient creates a client rooted at baseURL, reading and writing
// tokens through the given store.
func NewClient(baseURL string, st *store.Store) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      st,
	}
}

// OnAuthLoss registers the session-loss callback.
func (c *Client) OnAuthLoss(fn AuthLossHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuthLoss = fn
}

// CancelPending aborts the in-flight request, if any. Called on auth
// loss so a stale success cannot re-authenticate a logged-out UI.
func (c *Client) CancelPending() {
	c.mu.Lock()
	cancel := c.cancelPending
	c.cancelPending = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) notifyAuthLoss(reason string) {
	c.mu.Lock()
	fn := c.onAuthLoss
	c.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

// encodeBody JSON-serialises object bodies and passes pre-serialised
// strings through untouched.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		return data, nil
	}
}

// Request performs one logical API call and returns the raw JSON
// response. A 403 carrying needsRefresh is retried exactly once after
// a silent token refresh; the caller observes a single resolution.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.pendingSeq++
	seq := c.pendingSeq
	c.cancelPending = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		// Only the request that installed the handle may clear it; a
		// later request may have replaced it already.
		if c.pendingSeq == seq {
			c.cancelPending = nil
		}
		c.mu.Unlock()
	}()

	access, refresh := c.store.Tokens()

	status, respBody, err := c.do(reqCtx, method, path, payload, access)
	if err != nil {
		return nil, err
	}

	if status == http.StatusForbidden && apierrors.NeedsRefresh(status, respBody) && refresh != "" {
		newAccess, refreshErr := c.refreshTokens(reqCtx, refresh)
		if refreshErr != nil {
			c.notifyAuthLoss("expired")
			return nil, apierrors.ErrAuthRequired
		}
		// Exactly one retry; a second 403 surfaces as forbidden.
		status, respBody, err = c.do(reqCtx, method, path, payload, newAccess)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case status >= 200 && status < 300:
		return respBody, nil
	case status == http.StatusUnauthorized:
		c.notifyAuthLoss("unauthorized")
		return nil, apierrors.ErrAuthRequired
	default:
		return nil, apierrors.FromResponse(status, respBody)
	}
}

// do performs a single HTTP exchange.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, access string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return 0, nil, apierrors.ErrCancelled
		}
		return 0, nil, apierrors.Transport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apierrors.Transport(err)
	}
	return resp.StatusCode, respBody, nil
}

// refreshTokens exchanges the refresh token and stores the new pair.
func (c *Client) refreshTokens(ctx context.Context, refresh string) (string, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refresh})
	if err != nil {
		return "", err
	}

	status, body, err := c.do(ctx, http.MethodPost, "/auth/refresh", payload, "")
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", apierrors.FromResponse(status, body)
	}

	var tokens struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(body, &tokens); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if err := c.store.SetTokens(tokens.Token, tokens.RefreshToken); err != nil {
		return "", err
	}
	return tokens.Token, nil
}

// get/post/put/del are the verb helpers the typed wrappers build on.

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.call(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.call(ctx, http.MethodPost, path, body, result)
}

func (c *Client) put(ctx context.Context, path string, body, result any) error {
	return c.call(ctx, http.MethodPut, path, body, result)
}

func (c *Client) del(ctx context.Context, path string) error {
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	raw, err := c.Request(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return apierrors.Transport(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
