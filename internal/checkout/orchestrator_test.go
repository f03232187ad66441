package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/laenvidiadelsur/storefront/pkg/errors"

	"github.com/laenvidiadelsur/storefront/internal/api"
	"github.com/laenvidiadelsur/storefront/internal/domain"
	"github.com/laenvidiadelsur/storefront/internal/identity"
)

type mockPaymentAPI struct {
	mock.Mock
}

func (m *mockPaymentAPI) CreatePayment(ctx context.Context, info domain.ShippingInfo) (api.PaymentIntent, error) {
	args := m.Called(ctx, info)
	return args.Get(0).(api.PaymentIntent), args.Error(1)
}

func (m *mockPaymentAPI) ConfirmPayment(ctx context.Context, orderID, paymentIntentID string) (domain.Order, error) {
	args := m.Called(ctx, orderID, paymentIntentID)
	return args.Get(0).(domain.Order), args.Error(1)
}

// stubGateway answers ConfirmCharge from fields, optionally blocking until
// released so in-flight behavior can be observed.
type stubGateway struct {
	mu        sync.Mutex
	charge    Charge
	err       error
	entered   chan struct{}
	enterOnce sync.Once
	release   chan struct{}
}

func (g *stubGateway) ConfirmCharge(ctx context.Context, clientSecret string) (Charge, error) {
	if g.entered != nil {
		g.enterOnce.Do(func() { close(g.entered) })
	}
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charge, g.err
}

// recordingReloader counts cart reloads.
type recordingReloader struct {
	mu    sync.Mutex
	loads int
}

func (r *recordingReloader) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
}

func (r *recordingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

func setupOrchestrator(t *testing.T, client PaymentAPI, gateway PaymentGateway) (*Orchestrator, *identity.Provider, *recordingReloader) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	provider := identity.NewProvider(identity.NewRedisStore(rdb), log)
	reloader := &recordingReloader{}

	return NewOrchestrator(client, gateway, reloader, provider, log), provider, reloader
}

func validInfo() domain.ShippingInfo {
	return domain.ShippingInfo{
		Name:       "Ana Torres",
		Email:      "ana@example.com",
		Phone:      "5551234567",
		Street:     "Av. Siempre Viva 742",
		City:       "Springfield",
		Region:     "CDMX",
		PostalCode: "01234",
	}
}

func TestOrchestrator_OpenAndClose(t *testing.T) {
	o, _, _ := setupOrchestrator(t, &mockPaymentAPI{}, &stubGateway{})

	assert.Empty(t, o.Step())

	o.Open()
	assert.Equal(t, domain.StepInfo, o.Step())

	o.Close()
	assert.Empty(t, o.Step())
}

func TestSubmitShippingInfo_MissingFieldsStayOnInfo(t *testing.T) {
	client := &mockPaymentAPI{}
	o, _, _ := setupOrchestrator(t, client, &stubGateway{})
	o.Open()

	err := o.SubmitShippingInfo(domain.ShippingInfo{Email: "not-an-email"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, domain.StepInfo, o.Step())

	fields := o.FieldErrors()
	assert.Equal(t, "is required", fields["Name"])
	assert.Equal(t, "must be a valid email address", fields["Email"])
	assert.Equal(t, "is required", fields["PostalCode"])

	client.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestSubmitShippingInfo_AdvancesToPayment(t *testing.T) {
	o, _, _ := setupOrchestrator(t, &mockPaymentAPI{}, &stubGateway{})
	o.Open()

	require.NoError(t, o.SubmitShippingInfo(validInfo()))
	assert.Equal(t, domain.StepPayment, o.Step())
	assert.Nil(t, o.FieldErrors())
}

func TestBack_KeepsShippingData(t *testing.T) {
	o, _, _ := setupOrchestrator(t, &mockPaymentAPI{}, &stubGateway{})
	o.Open()
	require.NoError(t, o.SubmitShippingInfo(validInfo()))

	o.Back()
	assert.Equal(t, domain.StepInfo, o.Step())
	assert.Equal(t, validInfo(), o.ShippingInfo())
}

func TestSubmitPayment_WrongStep(t *testing.T) {
	o, _, _ := setupOrchestrator(t, &mockPaymentAPI{}, &stubGateway{})
	o.Open()

	_, err := o.SubmitPayment(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSubmitPayment_HappyPath(t *testing.T) {
	ctx := context.Background()

	client := &mockPaymentAPI{}
	client.On("CreatePayment", mock.Anything, validInfo()).
		Return(api.PaymentIntent{ClientSecret: "cs_1", OrderID: "ord-1"}, nil).Once()
	client.On("ConfirmPayment", mock.Anything, "ord-1", "pi_1").
		Return(domain.Order{ID: "ord-1", TotalAmount: 69600, PaymentStatus: domain.PaymentPagado}, nil).Once()

	gateway := &stubGateway{charge: Charge{PaymentIntentID: "pi_1"}}
	o, provider, reloader := setupOrchestrator(t, client, gateway)

	o.Open()
	require.NoError(t, o.SubmitShippingInfo(validInfo()))

	order, err := o.SubmitPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, domain.StepSuccess, o.Step())

	// Tracking can resume from the persisted order id.
	lastID, err := provider.LastOrderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", lastID)

	// The server emptied the cart; the local snapshot was refreshed.
	assert.Equal(t, 1, reloader.count())

	client.AssertExpectations(t)
}

func TestSubmitPayment_GatewayFailureReusesIntent(t *testing.T) {
	ctx := context.Background()

	client := &mockPaymentAPI{}
	client.On("CreatePayment", mock.Anything, mock.Anything).
		Return(api.PaymentIntent{ClientSecret: "cs_1", OrderID: "ord-1"}, nil).Once()
	client.On("ConfirmPayment", mock.Anything, "ord-1", "pi_1").
		Return(domain.Order{ID: "ord-1"}, nil).Once()

	gateway := &stubGateway{err: errors.New("card declined")}
	o, _, _ := setupOrchestrator(t, client, gateway)

	o.Open()
	require.NoError(t, o.SubmitShippingInfo(validInfo()))

	_, err := o.SubmitPayment(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGateway)
	assert.Equal(t, "card declined", apperrors.UserMessage(err))
	assert.Equal(t, domain.StepPayment, o.Step())

	// Retry succeeds without creating a second intent.
	gateway.mu.Lock()
	gateway.err = nil
	gateway.charge = Charge{PaymentIntentID: "pi_1"}
	gateway.mu.Unlock()

	_, err = o.SubmitPayment(ctx)
	require.NoError(t, err)

	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "CreatePayment", 1)
}

func TestSubmitPayment_ConfirmFailureIsPending(t *testing.T) {
	ctx := context.Background()

	client := &mockPaymentAPI{}
	client.On("CreatePayment", mock.Anything, mock.Anything).
		Return(api.PaymentIntent{ClientSecret: "cs_1", OrderID: "ord-1"}, nil).Once()
	client.On("ConfirmPayment", mock.Anything, "ord-1", "pi_1").
		Return(domain.Order{}, apperrors.Server(500, "confirm failed")).Once()

	gateway := &stubGateway{charge: Charge{PaymentIntentID: "pi_1"}}
	o, _, reloader := setupOrchestrator(t, client, gateway)

	o.Open()
	require.NoError(t, o.SubmitShippingInfo(validInfo()))

	_, err := o.SubmitPayment(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfirmationPending(err))
	assert.Contains(t, apperrors.UserMessage(err), "ord-1")

	// The machine stays on Payment and the cart is not touched: the user is
	// sent to order history, not charged again.
	assert.Equal(t, domain.StepPayment, o.Step())
	assert.Zero(t, reloader.count())
}

func TestSubmitPayment_RejectsConcurrentSubmission(t *testing.T) {
	ctx := context.Background()

	client := &mockPaymentAPI{}
	client.On("CreatePayment", mock.Anything, mock.Anything).
		Return(api.PaymentIntent{ClientSecret: "cs_1", OrderID: "ord-1"}, nil).Once()
	client.On("ConfirmPayment", mock.Anything, "ord-1", "pi_1").
		Return(domain.Order{ID: "ord-1"}, nil).Once()

	gateway := &stubGateway{
		charge:  Charge{PaymentIntentID: "pi_1"},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	o, _, _ := setupOrchestrator(t, client, gateway)

	o.Open()
	require.NoError(t, o.SubmitShippingInfo(validInfo()))

	done := make(chan error, 1)
	go func() {
		_, err := o.SubmitPayment(ctx)
		done <- err
	}()

	// Wait until the first submission is inside the gateway call, holding the
	// busy flag, then try a second one.
	select {
	case <-gateway.entered:
	case <-time.After(time.Second):
		t.Fatal("first submission never reached the gateway")
	}

	_, err := o.SubmitPayment(ctx)
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	close(gateway.release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.StepSuccess, o.Step())
}

func TestClose_AfterSuccessResetsEverything(t *testing.T) {
	ctx := context.Background()

	client := &mockPaymentAPI{}
	client.On("CreatePayment", mock.Anything, mock.Anything).
		Return(api.PaymentIntent{ClientSecret: "cs_1", OrderID: "ord-1"}, nil)
	client.On("ConfirmPayment", mock.Anything, "ord-1", "pi_1").
		Return(domain.Order{ID: "ord-1"}, nil)

	gateway := &stubGateway{charge: Charge{PaymentIntentID: "pi_1"}}
	o, _, _ := setupOrchestrator(t, client, gateway)

	o.Open()
	require.NoError(t, o.SubmitShippingInfo(validInfo()))
	_, err := o.SubmitPayment(ctx)
	require.NoError(t, err)

	o.Close()
	assert.Empty(t, o.Step())
	assert.Equal(t, domain.ShippingInfo{}, o.ShippingInfo())
}
