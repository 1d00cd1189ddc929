package service

import (
	"errors"

	orderRepo "github.com/lakshya1282/genAi-project-sub000/internal/order/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/gateway"
	"github.com/lakshya1282/genAi-project-sub000/internal/payment/repository"
)

// CodeForError maps payment errors to the stable machine codes clients
// branch on. Anything unmapped is INTERNAL.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, ErrSignatureMismatch):
		return "SIGNATURE_MISMATCH"
	case errors.Is(err, ErrPaymentRejected):
		return "PAYMENT_REJECTED"
	case errors.Is(err, ErrRetryWindowClosed):
		return "RETRY_WINDOW_CLOSED"
	case errors.Is(err, ErrNotRefundable):
		return "NOT_REFUNDABLE"
	case errors.Is(err, ErrOrderNotPayable):
		return "INVALID_STATUS"
	case errors.Is(err, ErrPaymentInitFailed), errors.Is(err, gateway.ErrGatewayUnavailable):
		return "GATEWAY_UNAVAILABLE"
	case errors.Is(err, repository.ErrPaymentOrderNotFound), errors.Is(err, orderRepo.ErrOrderNotFound):
		return "ORDER_NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
