package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusStep(t *testing.T) {
	tests := []struct {
		status string
		step   int
	}{
		{"pendiente", 0},
		{"procesando", 1},
		{"enviado", 2},
		{"entregado", 3},
		{"pending", 0},
		{"processing", 1},
		{"shipped", 2},
		{"delivered", 3},
		{"", 0},
		{"algo-raro", 0},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.step, StatusStep(tt.status))
		})
	}
}

func TestOrder_ShippingStep(t *testing.T) {
	order := Order{ShippingStatus: ShippingEnviado}
	assert.Equal(t, 2, order.ShippingStep())
}

func TestOrder_IsPaid(t *testing.T) {
	assert.True(t, (&Order{PaymentStatus: PaymentPagado}).IsPaid())
	assert.True(t, (&Order{PaymentStatus: "paid"}).IsPaid())
	assert.False(t, (&Order{PaymentStatus: PaymentPendiente}).IsPaid())
	assert.False(t, (&Order{PaymentStatus: PaymentFallido}).IsPaid())
}
