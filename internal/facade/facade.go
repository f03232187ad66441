// Package facade wraps the cart store with the ephemeral UI concerns the
// panel needs: toast notifications, open/closed state, and totals derived
// from the store on every read.
package facade

import (
	"context"
	"log/slog"
	"sync"

	apperrors "github.com/laenvidiadelsur/storefront/pkg/errors"

	"github.com/laenvidiadelsur/storefront/internal/cart"
	"github.com/laenvidiadelsur/storefront/internal/domain"
)

// Facade is the UI-level view over the cart store.
type Facade struct {
	store   *cart.Store
	notices *NotificationQueue
	pricing Pricing
	logger  *slog.Logger

	mu        sync.Mutex
	panelOpen bool
}

// New creates a cart facade.
func New(store *cart.Store, notices *NotificationQueue, pricing Pricing, logger *slog.Logger) *Facade {
	return &Facade{
		store:   store,
		notices: notices,
		pricing: pricing,
		logger:  logger,
	}
}

// Cart returns the current cart snapshot.
func (f *Facade) Cart() domain.Cart {
	return f.store.Snapshot()
}

// Totals derives the checkout summary from the current cart state.
func (f *Facade) Totals() Totals {
	return ComputeTotals(f.store.Snapshot(), f.pricing)
}

// Notifications returns the currently visible toasts.
func (f *Facade) Notifications() []Notification {
	return f.notices.Active()
}

// OpenPanel opens the cart panel.
func (f *Facade) OpenPanel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panelOpen = true
}

// ClosePanel closes the cart panel.
func (f *Facade) ClosePanel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panelOpen = false
}

// PanelOpen reports whether the cart panel is open. Not persisted across
// restarts.
func (f *Facade) PanelOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.panelOpen
}

// AddItem adds a product to the cart and surfaces the outcome as a toast.
func (f *Facade) AddItem(ctx context.Context, productID string, quantity int) error {
	err := f.store.AddItem(ctx, productID, quantity)
	f.notify(err, "added to cart")
	return err
}

// SetQuantity updates an item quantity and surfaces the outcome as a toast.
func (f *Facade) SetQuantity(ctx context.Context, productID string, quantity int) error {
	err := f.store.SetQuantity(ctx, productID, quantity)
	f.notify(err, "cart updated")
	return err
}

// RemoveItem removes a product and surfaces the outcome as a toast.
func (f *Facade) RemoveItem(ctx context.Context, productID string) error {
	err := f.store.RemoveItem(ctx, productID)
	f.notify(err, "removed from cart")
	return err
}

// Clear empties the cart and surfaces the outcome as a toast.
func (f *Facade) Clear(ctx context.Context) error {
	err := f.store.Clear(ctx)
	f.notify(err, "cart emptied")
	return err
}

// notify pushes a success toast with the given text, or an error toast with
// the failure's user message. Every mutation surfaces somewhere.
func (f *Facade) notify(err error, successText string) {
	if err != nil {
		f.notices.Push(apperrors.UserMessage(err), KindError)
		return
	}
	f.notices.Push(successText, KindSuccess)
}
