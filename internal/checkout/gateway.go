package checkout

import "context"

// Charge is the payment widget's proof of a completed client-side charge.
type Charge struct {
	PaymentIntentID string
}

// PaymentGateway is the boundary to the payment processor's client-side
// widget. The orchestrator hands it a client secret and gets back either a
// completed charge or a structured failure; card data never crosses this
// boundary.
type PaymentGateway interface {
	ConfirmCharge(ctx context.Context, clientSecret string) (Charge, error)
}
