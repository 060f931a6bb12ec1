package payment

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderErrorMapping(t *testing.T) {
	tests := []struct {
		kind   ErrorKind
		status int
	}{
		{kind: ErrCardDeclined, status: http.StatusBadRequest},
		{kind: ErrInvalidRequest, status: http.StatusBadRequest},
		{kind: ErrAuthFailure, status: http.StatusBadGateway},
		{kind: ErrNetwork, status: http.StatusServiceUnavailable},
		{kind: ErrUnknown, status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			cause := errors.New("boom")
			err := &ProviderError{Kind: tt.kind, Err: cause}

			assert.Equal(t, tt.status, err.HTTPStatus())
			assert.NotEmpty(t, err.PublicMessage())
			assert.NotContains(t, err.PublicMessage(), "boom")
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestMoneyConversion(t *testing.T) {
	assert.Equal(t, "3.6", MoneyFromMinor(360).String())
	assert.Equal(t, int64(360), MinorUnits(MoneyFromMinor(360)))
	assert.Equal(t, int64(1), MinorUnits(MoneyFromMinor(1)))
	assert.Error(t, validateMoney(MoneyFromMinor(0)))
	assert.NoError(t, validateMoney(MoneyFromMinor(MaxMinorUnits)))
	assert.Error(t, validateMoney(MoneyFromMinor(100_000_000)))
}
