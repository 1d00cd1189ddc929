package service

import (
	"errors"

	invRepo "github.com/lakshya1282/genAi-project-sub000/internal/inventory/repository"
	"github.com/lakshya1282/genAi-project-sub000/internal/order/repository"
)

// CodeForError maps service errors to the stable machine-readable codes the
// API contract promises. Free-text messages may change; these may not.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, invRepo.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, invRepo.ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, invRepo.ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, invRepo.ErrProductInactive):
		return "PRODUCT_INACTIVE"
	case errors.Is(err, repository.ErrOrderNotFound):
		return "ORDER_NOT_FOUND"
	case errors.Is(err, ErrAlreadyCancelled):
		return "ALREADY_CANCELLED"
	case errors.Is(err, ErrCancelForbidden), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotAwaitingPayment):
		return "INVALID_STATUS"
	case errors.Is(err, ErrReviewNotAllowed), errors.Is(err, ErrAlreadyReviewed), errors.Is(err, ErrProductNotInOrder):
		return "REVIEW_NOT_ALLOWED"
	case errors.Is(err, ErrEmptyOrder):
		return "INVALID_REQUEST"
	default:
		return "INTERNAL"
	}
}
