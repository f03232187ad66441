// Package api is the storefront's only boundary with the remote commerce
// API. All failures leave it as one of the closed error variants in
// pkg/errors, so callers match exhaustively instead of inspecting transport
// details.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	apperrors "github.com/laenvidiadelsur/storefront/pkg/errors"

	"github.com/laenvidiadelsur/storefront/internal/domain"
	"github.com/laenvidiadelsur/storefront/internal/identity"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is a typed client for the remote commerce API.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	identity   *identity.Provider
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(baseURL string, httpClient HTTPDoer, provider *identity.Provider, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		identity:   provider,
		logger:     logger,
	}
}

// PaymentIntent is the server's answer to a create-payment call: an opaque
// token for the payment widget and the id of the provisional order.
type PaymentIntent struct {
	ClientSecret string `json:"clientSecret"`
	OrderID      string `json:"orderId"`
}

// do issues one request. The identity is resolved fresh on every call (a
// login may have happened since the previous one) and annotates the request
// with either the bearer credential or the anonymous session id, never both.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ident, err := c.identity.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	ident.Apply(req)

	timer := startRequestTimer(metricPath(path))
	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		timer.observe("error")
		return nil, apperrors.Connectivity(err)
	}
	timer.observe(fmt.Sprintf("%dxx", resp.StatusCode/100))

	if resp.StatusCode == http.StatusUnauthorized {
		defer func() { _ = resp.Body.Close() }()
		// The credential was rejected; drop it so the next resolve falls
		// back to an anonymous session.
		if purgeErr := c.identity.PurgeToken(ctx); purgeErr != nil {
			c.logger.ErrorContext(ctx, "failed to purge rejected credential",
				slog.String("error", purgeErr.Error()),
			)
		}
		return nil, apperrors.Unauthenticated("your session has expired, please sign in again")
	}

	return resp, nil
}

// decode unmarshals a 2xx response body into dst and closes the body.
func decode(resp *http.Response, dst any) error {
	defer func() { _ = resp.Body.Close() }()
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperrors.Server(resp.StatusCode, "malformed response body")
	}
	return nil
}

// wireCart is the cart representation the API sends. The wire total is
// advisory only: the domain cart recomputes totals from the items.
type wireCart struct {
	Items []domain.CartItem `json:"items"`
	Total int64             `json:"total"`
}

// toDomain converts the wire cart into a domain cart, enforcing the
// non-positive-quantity invariant and flagging total drift.
func (c *Client) toDomain(ctx context.Context, wc wireCart) domain.Cart {
	cart := domain.Cart{Items: wc.Items}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	cart.Normalize()
	if wc.Total != 0 && wc.Total != cart.Total() {
		c.logger.WarnContext(ctx, "server cart total disagrees with items",
			slog.Int64("server_total", wc.Total),
			slog.Int64("computed_total", cart.Total()),
		)
	}
	return cart
}

// GetCart fetches the cart for the active identity.
func (c *Client) GetCart(ctx context.Context) (domain.Cart, error) {
	resp, err := c.do(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return domain.Cart{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Cart{}, normalizeResponseError(resp)
	}

	var wc wireCart
	if err := decode(resp, &wc); err != nil {
		return domain.Cart{}, err
	}
	return c.toDomain(ctx, wc), nil
}

// AddItem adds quantity units of a product to the cart and returns the
// server's authoritative snapshot.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	payload := struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}{ProductID: productID, Quantity: quantity}

	resp, err := c.do(ctx, http.MethodPost, "/cart/add", payload)
	if err != nil {
		return domain.Cart{}, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.Cart{}, normalizeResponseError(resp)
	}

	var out struct {
		Cart wireCart `json:"cart"`
	}
	if err := decode(resp, &out); err != nil {
		return domain.Cart{}, err
	}
	return c.toDomain(ctx, out.Cart), nil
}

// UpdateQuantity sets the quantity of a cart item and returns the server's
// authoritative snapshot.
func (c *Client) UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	payload := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}

	resp, err := c.do(ctx, http.MethodPut, "/cart/update/"+productID, payload)
	if err != nil {
		return domain.Cart{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Cart{}, normalizeResponseError(resp)
	}

	var out struct {
		Cart wireCart `json:"cart"`
	}
	if err := decode(resp, &out); err != nil {
		return domain.Cart{}, err
	}
	return c.toDomain(ctx, out.Cart), nil
}

// RemoveItem removes a product from the cart.
func (c *Client) RemoveItem(ctx context.Context, productID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/cart/remove/"+productID, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return normalizeResponseError(resp)
	}
	return decode(resp, nil)
}

// ClearCart empties the cart for the active identity.
func (c *Client) ClearCart(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/cart/clear", nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return normalizeResponseError(resp)
	}
	return decode(resp, nil)
}

// MergeSessionCart folds the given anonymous session's cart into the
// authenticated user's cart and returns the merged snapshot.
func (c *Client) MergeSessionCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	payload := struct {
		SessionID string `json:"sessionId"`
	}{SessionID: sessionID}

	resp, err := c.do(ctx, http.MethodPost, "/cart/merge-session", payload)
	if err != nil {
		return domain.Cart{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Cart{}, normalizeResponseError(resp)
	}

	var out struct {
		Cart wireCart `json:"cart"`
	}
	if err := decode(resp, &out); err != nil {
		return domain.Cart{}, err
	}
	return c.toDomain(ctx, out.Cart), nil
}

// CreatePayment asks the server to create a payment intent scoped to the
// current cart and the given shipping details.
func (c *Client) CreatePayment(ctx context.Context, info domain.ShippingInfo) (PaymentIntent, error) {
	payload := struct {
		ShippingAddress struct {
			Street     string  `json:"street"`
			City       string  `json:"city"`
			Region     string  `json:"region"`
			PostalCode string  `json:"postalCode"`
			Lat        float64 `json:"lat,omitempty"`
			Lon        float64 `json:"lon,omitempty"`
		} `json:"shippingAddress"`
		Contact struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Phone string `json:"phone"`
		} `json:"contact"`
	}{}
	payload.ShippingAddress.Street = info.Street
	payload.ShippingAddress.City = info.City
	payload.ShippingAddress.Region = info.Region
	payload.ShippingAddress.PostalCode = info.PostalCode
	payload.ShippingAddress.Lat = info.Lat
	payload.ShippingAddress.Lon = info.Lon
	payload.Contact.Name = info.Name
	payload.Contact.Email = info.Email
	payload.Contact.Phone = info.Phone

	resp, err := c.do(ctx, http.MethodPost, "/checkout/create-payment", payload)
	if err != nil {
		return PaymentIntent{}, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return PaymentIntent{}, normalizeResponseError(resp)
	}

	var intent PaymentIntent
	if err := decode(resp, &intent); err != nil {
		return PaymentIntent{}, err
	}
	if intent.ClientSecret == "" || intent.OrderID == "" {
		return PaymentIntent{}, apperrors.Server(resp.StatusCode, "payment intent response missing client secret or order id")
	}
	return intent, nil
}

// ConfirmPayment binds a completed charge to its provisional order. Only a
// successful confirmation makes the order real.
func (c *Client) ConfirmPayment(ctx context.Context, orderID, paymentIntentID string) (domain.Order, error) {
	payload := struct {
		OrderID         string `json:"orderId"`
		PaymentIntentID string `json:"paymentIntentId"`
	}{OrderID: orderID, PaymentIntentID: paymentIntentID}

	resp, err := c.do(ctx, http.MethodPost, "/checkout/confirm-payment", payload)
	if err != nil {
		return domain.Order{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Order{}, normalizeResponseError(resp)
	}

	var out struct {
		Order domain.Order `json:"order"`
	}
	if err := decode(resp, &out); err != nil {
		return domain.Order{}, err
	}
	return out.Order, nil
}

// GetOrder fetches a single order snapshot. The endpoint must answer with
// JSON; an HTML error page or proxy interstitial is treated as a server
// error, not parsed.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	resp, err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil)
	if err != nil {
		return domain.Order{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Order{}, normalizeResponseError(resp)
	}

	mediaType, _, parseErr := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if parseErr != nil || mediaType != "application/json" {
		_ = resp.Body.Close()
		return domain.Order{}, apperrors.Server(resp.StatusCode, "order endpoint returned a non-JSON response")
	}

	var out struct {
		Order domain.Order `json:"order"`
	}
	if err := decode(resp, &out); err != nil {
		return domain.Order{}, err
	}
	return out.Order, nil
}

// ListMyOrders fetches the authenticated user's order history.
func (c *Client) ListMyOrders(ctx context.Context) ([]domain.Order, error) {
	resp, err := c.do(ctx, http.MethodGet, "/orders/mine", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, normalizeResponseError(resp)
	}

	var out struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}
