package domain

// Checkout step constants. Closed is implicit: a torn-down orchestrator has
// no step at all.
const (
	StepInfo    = "info"
	StepPayment = "payment"
	StepSuccess = "success"
)

// ShippingInfo holds the customer contact and delivery address collected on
// the first checkout step. All fields except the coordinates are required
// before the Payment step can be entered.
type ShippingInfo struct {
	Name       string  `json:"name" validate:"required"`
	Email      string  `json:"email" validate:"required,email"`
	Phone      string  `json:"phone" validate:"required"`
	Street     string  `json:"street" validate:"required"`
	City       string  `json:"city" validate:"required"`
	Region     string  `json:"region" validate:"required"`
	PostalCode string  `json:"postalCode" validate:"required"`
	Lat        float64 `json:"lat,omitempty"`
	Lon        float64 `json:"lon,omitempty"`
}
