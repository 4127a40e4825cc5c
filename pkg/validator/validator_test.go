package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reserveRequest struct {
	ProductID string `validate:"required,uuid"`
	Size      string `validate:"required,oneof=S M L XL XXL"`
	Quantity  int    `validate:"required,gte=1"`
}

func TestValidate_Success(t *testing.T) {
	req := reserveRequest{
		ProductID: "6f1c63f5-64a1-4a3e-9f4e-1f2d3c4b5a69",
		Size:      "M",
		Quantity:  2,
	}
	assert.NoError(t, Validate(req))
}

func TestValidate_Failure(t *testing.T) {
	req := reserveRequest{
		ProductID: "not-a-uuid",
		Size:      "XS",
	}

	err := Validate(req)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	fields := valErr.Fields()
	assert.Equal(t, "must be a valid UUID", fields["ProductID"])
	assert.Equal(t, "must be one of: S M L XL XXL", fields["Size"])
	assert.Equal(t, "is required", fields["Quantity"])
	assert.Contains(t, err.Error(), "field 'ProductID'")
}
