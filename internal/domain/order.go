package domain

import "time"

// Shipping status values as the API sends them.
const (
	ShippingPendiente  = "pendiente"
	ShippingProcesando = "procesando"
	ShippingEnviado    = "enviado"
	ShippingEntregado  = "entregado"
)

// Payment status values as the API sends them.
const (
	PaymentPendiente = "pendiente"
	PaymentPagado    = "pagado"
	PaymentFallido   = "fallido"
)

// Order is the immutable-at-creation record of a completed purchase. The
// client only ever holds a snapshot obtained by polling; payment and shipping
// status evolve server-side.
type Order struct {
	ID              string       `json:"id"`
	Items           []OrderItem  `json:"items"`
	TotalAmount     int64        `json:"totalAmount"`
	PaymentStatus   string       `json:"paymentStatus"`
	ShippingStatus  string       `json:"shippingStatus"`
	ShippingAddress ShippingInfo `json:"shippingAddress"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// OrderItem is a frozen projection of a cart item at checkout time.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// shippingSteps is the fixed total order of shipping statuses. English
// aliases are accepted alongside the canonical Spanish wire values.
var shippingSteps = map[string]int{
	ShippingPendiente:  0,
	ShippingProcesando: 1,
	ShippingEnviado:    2,
	ShippingEntregado:  3,
	"pending":          0,
	"processing":       1,
	"shipped":          2,
	"delivered":        3,
}

// StatusStep maps a shipping status to its step in the delivery progression:
// pendiente(0) < procesando(1) < enviado(2) < entregado(3). Unknown or
// missing statuses map to step 0.
func StatusStep(status string) int {
	if step, ok := shippingSteps[status]; ok {
		return step
	}
	return 0
}

// ShippingStep returns the delivery step of the order's current status.
func (o *Order) ShippingStep() int {
	return StatusStep(o.ShippingStatus)
}

// IsPaid reports whether the order's payment has settled.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPagado || o.PaymentStatus == "paid"
}
