// Package session owns the auth lifecycle: login, registration,
// logout, hydration from stored tokens, and the background validity
// check that keeps the access token fresh.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tasksphere/sphere-client/internal/api"
	"github.com/tasksphere/sphere-client/internal/dto"
	"github.com/tasksphere/sphere-client/internal/models"
	"github.com/tasksphere/sphere-client/internal/store"
	"github.com/tasksphere/sphere-client/internal/token"
	"github.com/tasksphere/sphere-client/internal/utils"
)

type State string

const (
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// RefreshWindow is how close to expiry the controller refreshes
// proactively instead of waiting for a 403.
const RefreshWindow = 2 * time.Minute

// DefaultCheckInterval is the background validity check period.
const DefaultCheckInterval = 60 * time.Second

// StateListener observes session transitions. Reason is "manual",
// "expired" or "unauthorized".
type StateListener func(state State, reason string)

// SessionHint lets a login re-open the list and task the user was
// last looking at.
type SessionHint struct {
	ListID uint64 `json:"list"`
	TaskID uint64 `json:"taskId,omitempty"`
}

// Controller drives the anonymous -> authenticated -> anonymous state
// machine. Transitions are one-shot per event.
type Controller struct {
	api   *api.Client
	store *store.Store

	mu        sync.Mutex
	state     State
	user      *models.User
	listeners []StateListener
	stopCheck chan struct{}

	checkInterval time.Duration
}

// NewController wires the controller to the transport and store, and
// registers itself as the transport's auth-loss handler.
func NewController(client *api.Client, st *store.Store) *Controller {
	c := &Controller{
		api:           client,
		store:         st,
		state:         StateAnonymous,
		checkInterval: DefaultCheckInterval,
	}
	client.OnAuthLoss(func(reason string) {
		c.Logout(reason)
	})
	return c
}

// OnStateChange registers a transition listener.
func (c *Controller) OnStateChange(fn StateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the current user, or nil when anonymous.
func (c *Controller) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Controller) notify(state State, reason string) {
	c.mu.Lock()
	listeners := make([]StateListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(state, reason)
	}
}

// Hydrate restores a session from stored tokens. Expired access
// tokens are refreshed once; tokens expiring inside the refresh
// window are refreshed preemptively. Missing tokens leave the
// controller anonymous without error.
func (c *Controller) Hydrate(ctx context.Context) error {
	access, refresh := c.store.Tokens()
	if access == "" || refresh == "" {
		return nil
	}

	status := token.Validate(access)
	switch {
	case !status.Valid && status.Reason != token.ReasonExpired:
		// Malformed storage; start clean.
		c.store.ClearTokens()
		return nil
	case status.Reason == token.ReasonExpired:
		if err := c.api.Refresh(ctx); err != nil {
			c.store.ClearTokens()
			return fmt.Errorf("failed to refresh expired session: %w", err)
		}
	case token.ExpiresWithin(access, RefreshWindow):
		if err := c.api.Refresh(ctx); err != nil {
			// Token is still valid; keep going.
			log.Printf("session: proactive refresh failed: %v", err)
		}
	}

	user, err := c.api.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	c.becomeAuthenticated(user)
	return nil
}

// Login authenticates with credentials.
func (c *Controller) Login(ctx context.Context, email, password string) (*models.User, error) {
	resp, err := c.api.Login(ctx, dto.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if err := c.store.SetTokens(resp.Token, resp.RefreshToken); err != nil {
		return nil, err
	}
	c.becomeAuthenticated(resp.User)
	return resp.User, nil
}

// Register creates an account after local policy checks; the password
// never leaves the client unless it passes.
func (c *Controller) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	resp, err := c.api.Register(ctx, dto.RegisterRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return nil, err
	}
	if err := c.store.SetTokens(resp.Token, resp.RefreshToken); err != nil {
		return nil, err
	}
	c.becomeAuthenticated(resp.User)
	return resp.User, nil
}

func (c *Controller) becomeAuthenticated(user *models.User) {
	c.mu.Lock()
	if c.stopCheck != nil {
		close(c.stopCheck)
	}
	stop := make(chan struct{})
	c.stopCheck = stop
	c.state = StateAuthenticated
	c.user = user
	c.mu.Unlock()

	go c.checkLoop(stop)
	c.notify(StateAuthenticated, "")
}

// Logout tears the session down. Reason "manual" additionally forgets
// the selected list and any saved session hint. Calling it while
// anonymous is a no-op, which makes auth-loss propagation one-shot.
func (c *Controller) Logout(reason string) {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return
	}
	c.state = StateAnonymous
	c.user = nil
	if c.stopCheck != nil {
		close(c.stopCheck)
		c.stopCheck = nil
	}
	c.mu.Unlock()

	c.api.CancelPending()
	if err := c.store.ClearTokens(); err != nil {
		log.Printf("session: failed to clear tokens: %v", err)
	}
	if reason == "manual" {
		c.store.Delete(store.KeySelectedList)
		c.store.DeleteTransient(store.KeySavedSession)
		c.store.DeleteTransient(store.KeyAutoSelectList)
	}
	c.notify(StateAnonymous, reason)
}

// checkLoop re-validates the access token every check interval. An
// expired token ends the session; a near-expiry token is refreshed,
// and that refresh failing is swallowed because the token still works.
func (c *Controller) checkLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			access, _ := c.store.Tokens()
			if access == "" {
				return
			}
			if token.Expired(access) {
				c.Logout("expired")
				return
			}
			if token.ExpiresWithin(access, RefreshWindow) {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				if err := c.api.Refresh(ctx); err != nil {
					log.Printf("session: proactive refresh failed: %v", err)
				}
				cancel()
			}
		}
	}
}

// SaveSessionState stores a hint so the next login can re-open the
// same list and highlight the same task.
func (c *Controller) SaveSessionState(hint SessionHint) {
	data, err := json.Marshal(hint)
	if err != nil {
		return
	}
	c.store.SetTransient(store.KeySavedSession, string(data), store.SessionHintTTL)
}

// RestoreSessionState consumes the saved hint, if still alive.
func (c *Controller) RestoreSessionState() (SessionHint, bool) {
	raw, ok := c.store.GetTransient(store.KeySavedSession)
	if !ok {
		return SessionHint{}, false
	}
	c.store.DeleteTransient(store.KeySavedSession)
	var hint SessionHint
	if err := json.Unmarshal([]byte(raw), &hint); err != nil {
		return SessionHint{}, false
	}
	return hint, true
}
