// Package cart owns the canonical local cart state and keeps it synchronized
// with the remote cart record. The server's snapshot is always ground truth:
// every successful mutation replaces local state wholesale, so racing
// mutations resolve by last-write-wins instead of client-side merging.
package cart

import (
	"context"
	"log/slog"
	"sync"

	apperrors "github.com/laenvidiadelsur/storefront/pkg/errors"

	"github.com/laenvidiadelsur/storefront/internal/api"
	"github.com/laenvidiadelsur/storefront/internal/domain"
	"github.com/laenvidiadelsur/storefront/internal/identity"
)

// Store owns the canonical cart state.
type Store struct {
	mu       sync.Mutex
	client   *api.Client
	identity *identity.Provider
	logger   *slog.Logger

	cart    domain.Cart
	loading bool
	lastErr error
}

// NewStore creates an empty cart store.
func NewStore(client *api.Client, provider *identity.Provider, logger *slog.Logger) *Store {
	return &Store{
		client:   client,
		identity: provider,
		logger:   logger,
		cart:     domain.Cart{Items: []domain.CartItem{}},
	}
}

// Snapshot returns a copy of the current cart. Callers may hold it across
// suspension points without seeing later mutations.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Err returns the error recorded by the last failed Load, nil otherwise.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Load fetches the cart for the active identity. A failure is recorded on
// the store rather than returned: the previous (stale or empty) cart stays
// visible and the error flag tells the UI to say so.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	cart, err := s.client.GetCart(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.logger.ErrorContext(ctx, "failed to load cart",
			slog.String("error", err.Error()),
		)
		return
	}
	s.cart = cart
	s.lastErr = nil
}

// AddItem adds quantity units of a product. On success the server snapshot
// replaces local state; on failure local state is untouched so the prior
// cart view stays consistent.
func (s *Store) AddItem(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return apperrors.Validation("product id is required")
	}
	if quantity < 1 {
		return apperrors.Validation("quantity must be at least 1")
	}

	cart, err := s.client.AddItem(ctx, productID, quantity)
	if err != nil {
		return err
	}

	s.replace(cart)
	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return nil
}

// SetQuantity sets the quantity of a cart item. A quantity below 1 removes
// the item: the cart never stores a non-positive quantity.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return apperrors.Validation("product id is required")
	}
	if quantity < 1 {
		return s.RemoveItem(ctx, productID)
	}

	cart, err := s.client.UpdateQuantity(ctx, productID, quantity)
	if err != nil {
		return err
	}

	s.replace(cart)
	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return nil
}

// RemoveItem removes a product from the cart. The local item is dropped only
// after the server acknowledges the delete.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	if productID == "" {
		return apperrors.Validation("product id is required")
	}

	if err := s.client.RemoveItem(ctx, productID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.cart.FindItemIndex(productID); i >= 0 {
		s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
	}
	s.lastErr = nil

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("product_id", productID),
	)
	return nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.ClearCart(ctx); err != nil {
		return err
	}

	s.replace(domain.Cart{Items: []domain.CartItem{}})
	s.logger.InfoContext(ctx, "cart cleared")
	return nil
}

// MergeSessionCart folds the anonymous session's cart into the authenticated
// user's cart. Called once after login. Idempotent: with no session id left
// it is a no-op success without a network call. The session identifier is
// discarded only after the server accepts the merge.
func (s *Store) MergeSessionCart(ctx context.Context) error {
	sessionID, err := s.identity.SessionID(ctx)
	if err != nil {
		return err
	}
	if sessionID == "" {
		return nil
	}

	cart, err := s.client.MergeSessionCart(ctx, sessionID)
	if err != nil {
		return err
	}

	if _, err := s.identity.ConsumeSessionID(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to discard merged session id",
			slog.String("error", err.Error()),
		)
	}

	s.replace(cart)
	s.logger.InfoContext(ctx, "session cart merged",
		slog.String("session_id", sessionID),
		slog.Int("item_count", cart.ItemCount()),
	)
	return nil
}

// replace installs a new authoritative snapshot and clears the error flag.
func (s *Store) replace(cart domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cart
	s.lastErr = nil
}
