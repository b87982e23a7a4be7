package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchByKind(t *testing.T) {
	err := fmt.Errorf("join order-1: %w", New(KindFull, "order %s is full", "order-1"))

	assert.True(t, errors.Is(err, ErrFull))
	assert.False(t, errors.Is(err, ErrAlreadyJoined))
	assert.Equal(t, KindFull, KindOf(err))
	assert.Equal(t, "join order-1: order order-1 is full", err.Error())
}

func TestBelowMinimumCarriesAmounts(t *testing.T) {
	err := fmt.Errorf("confirm: %w", &BelowMinimumError{Current: 300, Required: 500})

	assert.True(t, errors.Is(err, ErrBelowMinimum))
	assert.Equal(t, KindBelowMinimum, KindOf(err))

	var bm *BelowMinimumError
	assert.True(t, errors.As(err, &bm))
	assert.Equal(t, 300.0, bm.Current)
	assert.Equal(t, 500.0, bm.Required)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrUnauthenticated:                  http.StatusUnauthorized,
		ErrNotFound:                         http.StatusNotFound,
		ErrForbidden:                        http.StatusForbidden,
		ErrFull:                             http.StatusConflict,
		ErrDeadlinePassed:                   http.StatusGone,
		ErrEmptyCart:                        http.StatusUnprocessableEntity,
		&BelowMinimumError{1, 2}:            http.StatusUnprocessableEntity,
		errors.New("connection reset"):      http.StatusInternalServerError,
		fmt.Errorf("x: %w", ErrInvalidState): http.StatusConflict,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
