package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPDoer is the interface for executing HTTP requests.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ProcessorGateway confirms charges against the payment processor's
// client-side endpoint. It only ever handles the opaque client secret; card
// collection happens inside the processor's own surface.
type ProcessorGateway struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewProcessorGateway creates a gateway against the given processor URL.
func NewProcessorGateway(baseURL string, httpClient HTTPDoer) *ProcessorGateway {
	return &ProcessorGateway{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// ConfirmCharge asks the processor to complete the charge authorized by the
// client secret. Failure messages come back verbatim for display.
func (g *ProcessorGateway) ConfirmCharge(ctx context.Context, clientSecret string) (Charge, error) {
	payload := struct {
		ClientSecret string `json:"clientSecret"`
	}{ClientSecret: clientSecret}

	body, err := json.Marshal(payload)
	if err != nil {
		return Charge{}, fmt.Errorf("marshal confirm charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/charges/confirm", bytes.NewReader(body))
	if err != nil {
		return Charge{}, fmt.Errorf("create confirm charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(ctx, req)
	if err != nil {
		return Charge{}, fmt.Errorf("call payment processor: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&failure) == nil && failure.Error != "" {
			return Charge{}, errors.New(failure.Error)
		}
		return Charge{}, fmt.Errorf("payment processor returned status %d", resp.StatusCode)
	}

	var out struct {
		PaymentIntentID string `json:"paymentIntentId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Charge{}, fmt.Errorf("decode confirm charge response: %w", err)
	}
	if out.PaymentIntentID == "" {
		return Charge{}, errors.New("payment processor response missing payment intent id")
	}

	return Charge{PaymentIntentID: out.PaymentIntentID}, nil
}
