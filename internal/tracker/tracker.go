// Package tracker polls a placed order and reconciles the server's snapshot
// into local display state.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/laenvidiadelsur/storefront/pkg/errors"

	"github.com/laenvidiadelsur/storefront/internal/domain"
)

// DefaultPollInterval is how often the tracker silently re-fetches.
const DefaultPollInterval = 30 * time.Second

// silentFailureThreshold is how many consecutive silent poll failures are
// tolerated before the tracker surfaces a persistent error banner.
const silentFailureThreshold = 3

// Tracker states.
const (
	StateLoading = "loading"
	StateReady   = "ready"
	StateFailed  = "failed"
)

var statusRegressionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "storefront_order_status_regressions_total",
		Help: "Times a poll returned a shipping status earlier than the one already displayed",
	},
)

func init() {
	prometheus.MustRegister(statusRegressionsTotal)
}

// OrderFetcher fetches a single order snapshot. *api.Client satisfies this.
type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// Tracker owns the polling loop for one order. Start arms it, Stop cancels
// it; a fetch that outlives its generation is discarded, never applied.
type Tracker struct {
	fetcher      OrderFetcher
	logger       *slog.Logger
	pollInterval time.Duration

	mu               sync.Mutex
	orderID          string
	state            string
	order            *domain.Order
	lastErr          error
	banner           bool
	autoRefresh      bool
	generation       uint64
	consecutiveFails int
	cancel           context.CancelFunc
}

// New creates a tracker. interval <= 0 falls back to DefaultPollInterval.
func New(fetcher OrderFetcher, interval time.Duration, logger *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tracker{
		fetcher:      fetcher,
		logger:       logger,
		pollInterval: interval,
		autoRefresh:  true,
	}
}

// Start begins tracking the given order: one visible fetch, then silent
// re-fetches on the poll interval until Stop. Starting again replaces any
// previous tracking; in-flight results from the old order are discarded by
// the generation bump.
func (t *Tracker) Start(ctx context.Context, orderID string) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.generation++
	gen := t.generation
	t.orderID = orderID
	t.order = nil
	t.state = StateLoading
	t.lastErr = nil
	t.banner = false
	t.consecutiveFails = 0

	pollCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(pollCtx, gen, orderID)
}

// Stop cancels polling. An in-flight fetch is not aborted, but its result
// will be discarded.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.generation++
}

// run performs the initial visible fetch, then re-arms the silent poll while
// the tracker is mounted.
func (t *Tracker) run(ctx context.Context, gen uint64, orderID string) {
	t.fetch(ctx, gen, orderID, true)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.AutoRefresh() {
				continue
			}
			t.fetch(ctx, gen, orderID, false)
		}
	}
}

// Refresh forces a fetch with visible loading, regardless of the timer or
// the auto-refresh flag. Also used to retry out of the failed state.
func (t *Tracker) Refresh(ctx context.Context) {
	t.mu.Lock()
	gen := t.generation
	orderID := t.orderID
	if orderID == "" {
		t.mu.Unlock()
		return
	}
	t.state = StateLoading
	t.mu.Unlock()

	t.fetch(ctx, gen, orderID, true)
}

// SetAutoRefresh toggles the silent polling. The timer keeps running but
// skips fetches while the flag is off.
func (t *Tracker) SetAutoRefresh(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.autoRefresh = enabled
}

// AutoRefresh reports whether silent polling is enabled.
func (t *Tracker) AutoRefresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.autoRefresh
}

// State returns the tracker state.
func (t *Tracker) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Order returns the displayed snapshot, nil before the first successful fetch.
func (t *Tracker) Order() *domain.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.order == nil {
		return nil
	}
	cpy := *t.order
	return &cpy
}

// Err returns the failure shown to the user, nil when none.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Banner reports whether the persistent error banner is up: three or more
// consecutive silent polls have failed.
func (t *Tracker) Banner() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.banner
}

// fetch retrieves the order and applies the result unless this fetch has
// been superseded (Stop, or a Start for another order).
func (t *Tracker) fetch(ctx context.Context, gen uint64, orderID string, visible bool) {
	order, err := t.fetcher.GetOrder(ctx, orderID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation || orderID != t.orderID {
		t.logger.DebugContext(ctx, "discarding stale order fetch",
			slog.String("order_id", orderID),
		)
		return
	}

	if err != nil {
		t.applyFailure(ctx, err, visible)
		return
	}

	if t.order != nil {
		prevStep := t.order.ShippingStep()
		if order.ShippingStep() < prevStep {
			// The server contract is assumed monotonic; a regression is a
			// data-integrity warning but the latest response still wins.
			statusRegressionsTotal.Inc()
			t.logger.WarnContext(ctx, "shipping status regressed",
				slog.String("order_id", orderID),
				slog.String("previous", t.order.ShippingStatus),
				slog.String("received", order.ShippingStatus),
			)
		}
	}

	t.order = &order
	t.state = StateReady
	t.lastErr = nil
	t.banner = false
	t.consecutiveFails = 0
}

// applyFailure records a fetch failure. Caller holds the lock.
//
// Visible fetches fail loudly. Silent polls stay quiet until three in a row
// have failed, then raise the banner. An authentication failure is never
// silent: the credential is already purged and the user must sign in.
func (t *Tracker) applyFailure(ctx context.Context, err error, visible bool) {
	if apperrors.IsUnauthenticated(err) {
		t.state = StateFailed
		t.lastErr = err
		t.logger.WarnContext(ctx, "order fetch rejected, sign-in required",
			slog.String("order_id", t.orderID),
		)
		return
	}

	if visible {
		t.state = StateFailed
		t.lastErr = err
		t.logger.ErrorContext(ctx, "order fetch failed",
			slog.String("order_id", t.orderID),
			slog.String("error", err.Error()),
		)
		return
	}

	t.consecutiveFails++
	t.logger.DebugContext(ctx, "silent poll failed",
		slog.String("order_id", t.orderID),
		slog.Int("consecutive", t.consecutiveFails),
	)
	if t.consecutiveFails >= silentFailureThreshold {
		t.banner = true
		t.lastErr = err
	}
}
