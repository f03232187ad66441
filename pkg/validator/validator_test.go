package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactForm struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
	Phone string `validate:"required,min=7"`
}

func TestValidate_Valid(t *testing.T) {
	err := Validate(contactForm{
		Name:  "Ana Torres",
		Email: "ana@example.com",
		Phone: "5551234567",
	})
	assert.NoError(t, err)
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	err := Validate(contactForm{Email: "not-an-email", Phone: "123"})
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))

	fields := vErr.Fields()
	assert.Equal(t, "is required", fields["Name"])
	assert.Equal(t, "must be a valid email address", fields["Email"])
	assert.Equal(t, "must be at least 7 characters", fields["Phone"])
}

func TestValidationError_Message(t *testing.T) {
	err := Validate(contactForm{Name: "Ana", Email: "ana@example.com", Phone: ""})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "field 'Phone' is required")
}
