// Package checkout drives the linear Info -> Payment -> Success state
// machine that converts a cart into a paid order.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	apperrors "github.com/laenvidiadelsur/storefront/pkg/errors"
	"github.com/laenvidiadelsur/storefront/pkg/validator"

	"github.com/laenvidiadelsur/storefront/internal/api"
	"github.com/laenvidiadelsur/storefront/internal/domain"
	"github.com/laenvidiadelsur/storefront/internal/identity"
)

// ErrTransitionInFlight is returned when a state transition is attempted
// while another is still resolving. The machine never allows two transitions
// in flight.
var ErrTransitionInFlight = errors.New("a checkout transition is already in progress")

// PaymentAPI is the slice of the commerce API the orchestrator needs.
// *api.Client satisfies this.
type PaymentAPI interface {
	CreatePayment(ctx context.Context, info domain.ShippingInfo) (api.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, orderID, paymentIntentID string) (domain.Order, error)
}

// CartReloader re-fetches the cart after an order is placed. *cart.Store
// satisfies this.
type CartReloader interface {
	Load(ctx context.Context)
}

// Orchestrator owns the checkout draft and walks it through the steps. A
// torn-down orchestrator (Close, or after success) holds no draft at all.
type Orchestrator struct {
	client    PaymentAPI
	gateway   PaymentGateway
	cartStore CartReloader
	identity  *identity.Provider
	logger    *slog.Logger

	mu           sync.Mutex
	step         string
	info         domain.ShippingInfo
	clientSecret string
	orderID      string
	busy         bool
	fieldErrors  map[string]string
}

// NewOrchestrator creates a checkout orchestrator. The machine starts
// closed; Open begins a new draft.
func NewOrchestrator(client PaymentAPI, gateway PaymentGateway, cartStore CartReloader, provider *identity.Provider, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		gateway:   gateway,
		cartStore: cartStore,
		identity:  provider,
		logger:    logger,
	}
}

// Open starts a fresh checkout draft on the Info step.
func (o *Orchestrator) Open() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reset()
	o.step = domain.StepInfo
}

// Close tears the draft down. Shipping data, the client secret and the
// provisional order id are all discarded.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reset()
}

// reset clears the draft. Caller holds the lock.
func (o *Orchestrator) reset() {
	o.step = ""
	o.info = domain.ShippingInfo{}
	o.clientSecret = ""
	o.orderID = ""
	o.busy = false
	o.fieldErrors = nil
}

// Step returns the current step, empty when the machine is closed.
func (o *Orchestrator) Step() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// ShippingInfo returns the draft's shipping details.
func (o *Orchestrator) ShippingInfo() domain.ShippingInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.info
}

// FieldErrors returns the per-field messages from the last failed shipping
// submission, for inline display. Nil after a successful submission.
func (o *Orchestrator) FieldErrors() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fieldErrors
}

// SubmitShippingInfo validates the shipping form and, when complete,
// advances Info -> Payment. Missing fields keep the machine on Info and are
// reported per field; no network call is made either way.
func (o *Orchestrator) SubmitShippingInfo(info domain.ShippingInfo) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.step != domain.StepInfo {
		return apperrors.Validation("shipping details can only be submitted on the info step")
	}

	if err := validator.Validate(info); err != nil {
		var vErr *validator.ValidationError
		if errors.As(err, &vErr) {
			o.fieldErrors = vErr.Fields()
		}
		return apperrors.Validation(err.Error())
	}

	o.info = info
	o.fieldErrors = nil
	o.step = domain.StepPayment
	return nil
}

// Back returns from Payment to Info. Always permitted; shipping data is kept.
func (o *Orchestrator) Back() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step == domain.StepPayment {
		o.step = domain.StepInfo
	}
}

// SubmitPayment runs the Payment step end to end: create a payment intent if
// none exists yet, have the widget charge against the client secret, then
// confirm the charge server-side. Every failure keeps the machine on Payment.
//
// A confirm failure after a successful charge is the one failure the user
// must not answer by paying again: money may have moved, so the returned
// error directs them to order history instead. Only a successful confirm
// advances to Success, after which the machine is torn down and the placed
// order returned for tracking.
func (o *Orchestrator) SubmitPayment(ctx context.Context) (domain.Order, error) {
	o.mu.Lock()
	if o.step != domain.StepPayment {
		o.mu.Unlock()
		return domain.Order{}, apperrors.Validation("payment can only be submitted on the payment step")
	}
	if o.busy {
		o.mu.Unlock()
		return domain.Order{}, ErrTransitionInFlight
	}
	o.busy = true
	info := o.info
	clientSecret := o.clientSecret
	orderID := o.orderID
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	if clientSecret == "" {
		intent, err := o.client.CreatePayment(ctx, info)
		if err != nil {
			o.logger.ErrorContext(ctx, "failed to create payment intent",
				slog.String("error", err.Error()),
			)
			return domain.Order{}, err
		}
		clientSecret = intent.ClientSecret
		orderID = intent.OrderID

		o.mu.Lock()
		o.clientSecret = clientSecret
		o.orderID = orderID
		o.mu.Unlock()

		o.logger.InfoContext(ctx, "payment intent created",
			slog.String("order_id", orderID),
		)
	}

	charge, err := o.gateway.ConfirmCharge(ctx, clientSecret)
	if err != nil {
		o.logger.WarnContext(ctx, "payment widget reported a failed charge",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return domain.Order{}, apperrors.Gateway(err.Error())
	}

	order, err := o.client.ConfirmPayment(ctx, orderID, charge.PaymentIntentID)
	if err != nil {
		// The charge went through but the server never agreed the order is
		// placed. Conservative policy: stay on Payment and send the user to
		// order history rather than let them pay twice.
		o.logger.ErrorContext(ctx, "payment confirmed by gateway but order confirmation failed",
			slog.String("order_id", orderID),
			slog.String("payment_intent_id", charge.PaymentIntentID),
			slog.String("error", err.Error()),
		)
		return domain.Order{}, apperrors.ConfirmationPending(orderID)
	}

	if err := o.identity.SetLastOrderID(ctx, order.ID); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist last order id",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	// The server empties the cart when the order is placed; re-fetch so the
	// local snapshot agrees.
	o.cartStore.Load(ctx)

	o.logger.InfoContext(ctx, "checkout completed",
		slog.String("order_id", order.ID),
		slog.Int64("total_amount", order.TotalAmount),
	)

	// Success is terminal: the draft's secrets are gone, only the step
	// remains so the UI can show the confirmation screen until Close.
	o.mu.Lock()
	o.step = domain.StepSuccess
	o.info = domain.ShippingInfo{}
	o.clientSecret = ""
	o.orderID = ""
	o.fieldErrors = nil
	o.mu.Unlock()

	return order, nil
}
