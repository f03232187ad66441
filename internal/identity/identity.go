// Package identity resolves the identity every storefront API request is
// scoped by: a bearer credential when signed in, or a locally generated
// anonymous session identifier otherwise. Never both.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Persisted state keys. These mirror what the storefront keeps in durable
// client storage.
const (
	KeyAuthToken   = "authToken"
	KeySessionID   = "anonymousCartSessionId"
	KeyLastOrderID = "lastOrderId"
)

// Store is the durable key-value storage behind the provider. A missing key
// reads as the empty string; all stored values are opaque non-empty strings.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Context is the identity a single request is annotated with. Exactly one of
// Token and SessionID is set.
type Context struct {
	Token     string
	SessionID string
}

// Authenticated reports whether this identity carries a bearer credential.
func (c Context) Authenticated() bool {
	return c.Token != ""
}

// Apply annotates the request with the identity headers.
func (c Context) Apply(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
		return
	}
	if c.SessionID != "" {
		req.Header.Set("X-Session-Id", c.SessionID)
	}
}

// Provider is the single owner of the persisted credential and anonymous
// session identifier. Callers resolve a fresh Context per request instead of
// caching one: a login may land between any two calls.
type Provider struct {
	mu     sync.Mutex
	store  Store
	logger *slog.Logger
}

// NewProvider creates a new identity provider backed by the given store.
func NewProvider(store Store, logger *slog.Logger) *Provider {
	return &Provider{
		store:  store,
		logger: logger,
	}
}

// Resolve returns the identity for the next request. If no credential is
// stored and no anonymous session identifier exists yet, one is generated and
// persisted; the same identifier is then reused until it is consumed by a
// cart merge.
func (p *Provider) Resolve(ctx context.Context) (Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return Context{}, fmt.Errorf("read auth token: %w", err)
	}
	if token != "" {
		return Context{Token: token}, nil
	}

	sessionID, err := p.store.Get(ctx, KeySessionID)
	if err != nil {
		return Context{}, fmt.Errorf("read session id: %w", err)
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
		if err := p.store.Set(ctx, KeySessionID, sessionID); err != nil {
			return Context{}, fmt.Errorf("persist session id: %w", err)
		}
		p.logger.InfoContext(ctx, "anonymous session created",
			slog.String("session_id", sessionID),
		)
	}

	return Context{SessionID: sessionID}, nil
}

// SetToken stores the bearer credential. The login flow is the only caller.
func (p *Provider) SetToken(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Set(ctx, KeyAuthToken, token); err != nil {
		return fmt.Errorf("persist auth token: %w", err)
	}
	return nil
}

// PurgeToken removes the stored credential. Called when any endpoint rejects
// it with a 401.
func (p *Provider) PurgeToken(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Delete(ctx, KeyAuthToken); err != nil {
		return fmt.Errorf("purge auth token: %w", err)
	}
	p.logger.InfoContext(ctx, "auth token purged")
	return nil
}

// SessionID returns the persisted anonymous session identifier without
// generating one. Empty if none exists.
func (p *Provider) SessionID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.store.Get(ctx, KeySessionID)
}

// ConsumeSessionID returns the anonymous session identifier and discards it.
// Called once the session cart has been folded into the account cart. Returns
// the empty string when no identifier exists.
func (p *Provider) ConsumeSessionID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sessionID, err := p.store.Get(ctx, KeySessionID)
	if err != nil {
		return "", fmt.Errorf("read session id: %w", err)
	}
	if sessionID == "" {
		return "", nil
	}
	if err := p.store.Delete(ctx, KeySessionID); err != nil {
		return "", fmt.Errorf("discard session id: %w", err)
	}
	return sessionID, nil
}

// SetLastOrderID persists the most recently placed order id so tracking can
// resume after a reload.
func (p *Provider) SetLastOrderID(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.store.Set(ctx, KeyLastOrderID, orderID)
}

// LastOrderID returns the persisted last order id, empty if none.
func (p *Provider) LastOrderID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.store.Get(ctx, KeyLastOrderID)
}
