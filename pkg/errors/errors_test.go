package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	cause := stderrors.New("write conflict")
	err := ErrConcurrentModification("stock-out").Wrap(cause)

	assert.Equal(t, CodeConcurrentModification, err.Code)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "CONCURRENT_MODIFICATION: stock-out conflicted with a concurrent update: write conflict", err.Error())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"validation", ErrValidation("bad"), CodeValidationError, http.StatusBadRequest},
		{"not found", ErrNotFound("drug D9"), CodeNotFound, http.StatusNotFound},
		{"insufficient stock", ErrInsufficientStock(5, 2), CodeInsufficientStock, http.StatusUnprocessableEntity},
		{"no-op adjustment", ErrNoOpAdjustment(3, 3), CodeNoOpAdjustment, http.StatusUnprocessableEntity},
		{"partial failure", ErrPartialFailure("transfer-stock", []string{"a", "b"}), CodePartialFailure, http.StatusInternalServerError},
		{"unavailable", ErrServiceUnavailable("drug catalog"), CodeServiceUnavailable, http.StatusServiceUnavailable},
		{"internal", ErrInternal(""), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}

	assert.Equal(t, map[string]string{"required": "5", "available": "2"}, ErrInsufficientStock(5, 2).Details)
	assert.Equal(t, "a,b", ErrPartialFailure("transfer-stock", []string{"a", "b"}).Details["committed"])
	assert.Equal(t, "an internal error occurred", ErrInternal("").Message)
}

type transferRequest struct {
	DrugID   string `validate:"required"`
	Quantity int64  `validate:"gt=0"`
	Reason   string `validate:"omitempty,oneof=sale return"`
}

func TestFromValidationErrors(t *testing.T) {
	err := validator.New().Struct(transferRequest{Reason: "gift"})
	require.Error(t, err)

	appErr := FromValidationErrors(err)

	assert.Equal(t, CodeValidationError, appErr.Code)
	assert.Equal(t, "drugID is required", appErr.Details["drugID"])
	assert.Equal(t, "quantity must be greater than 0", appErr.Details["quantity"])
	assert.Equal(t, "reason must be one of: sale return", appErr.Details["reason"])
}

func TestFromValidationErrors_NonValidatorError(t *testing.T) {
	appErr := FromValidationErrors(stderrors.New("payload too large"))

	assert.Equal(t, CodeBadRequest, appErr.Code)
	assert.Equal(t, "payload too large", appErr.Message)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	notFound := ErrNotFound("item")
	assert.Same(t, notFound, FromError(notFound))

	internal := FromError(stderrors.New("boom"))
	assert.Equal(t, CodeInternalError, internal.Code)
	assert.True(t, IsAppError(internal))
}
