package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ipscope/internal/i18n"
)

type addressInput struct {
	Contract string `validate:"required,hexaddr"`
	Limit    int    `validate:"min=1,max=100"`
}

func TestHexAddressValidation(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"0x1234567890abcdef1234567890abcdef12345678", true},
		{"0x1234567890ABCDEF1234567890ABCDEF12345678", true},
		{"1234567890abcdef1234567890abcdef12345678", false},
		{"0x1234", false},
		{"0xzz34567890abcdef1234567890abcdef12345678", false},
	}
	for _, tt := range tests {
		err := ValidateStruct(addressInput{Contract: tt.address, Limit: 1})
		assert.Equal(t, tt.valid, err == nil, tt.address)
	}
}

func TestGetValidationErrors(t *testing.T) {
	require.NoError(t, i18n.Initialize())

	err := ValidateStruct(addressInput{Contract: "nope", Limit: 0})
	require.Error(t, err)

	details := GetValidationErrors(err, "en")
	require.Len(t, details, 2)
	assert.Equal(t, "contract", details[0].Field)
	assert.Equal(t, "hexaddr", details[0].Tag)
	assert.Equal(t, i18n.T("en", i18n.KeyValidationAddress, "contract"), details[0].Message)
	assert.Equal(t, "limit", details[1].Field)
	assert.Equal(t, i18n.T("en", i18n.KeyValidationRange, "limit"), details[1].Message)

	assert.Empty(t, GetValidationErrors(assert.AnError, "en"))
}

func TestPageQueryWindow(t *testing.T) {
	limit, offset := PageQuery{}.Window()
	assert.Equal(t, DefaultPageLimit, limit)
	assert.Equal(t, 0, offset)

	l, o := 5, 40
	limit, offset = PageQuery{Limit: &l, Offset: &o}.Window()
	assert.Equal(t, 5, limit)
	assert.Equal(t, 40, offset)

	assert.Equal(t, DefaultTransactionLimit, TransactionQuery{}.LimitOrDefault())
}
