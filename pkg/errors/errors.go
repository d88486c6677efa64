package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidInput        = errors.New("invalid calculation input")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrApplicationLocked   = errors.New("application is locked: fee already paid")
	ErrIllegalFeePayment   = errors.New("fee can only be paid for an approved application")
	ErrForbiddenRole       = errors.New("role is not allowed to change application status")
	ErrApplicationNotFound = errors.New("loan application not found")
	ErrProductNotFound     = errors.New("loan product not found")
	ErrCancellationRefused = errors.New("only pending applications can be cancelled")
	ErrAmountExceedsLimit  = errors.New("requested amount exceeds product loan limit")
	ErrPaymentNotApproved  = errors.New("payment is not approved by the provider")
	ErrTransport           = errors.New("remote update failed")
	ErrUnknownState        = errors.New("unknown status or fee status value")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeApplicationLocked   = "APPLICATION_LOCKED"
	ErrCodeIllegalFeePayment   = "ILLEGAL_FEE_PAYMENT"
	ErrCodeForbiddenRole       = "FORBIDDEN_ROLE"
	ErrCodeApplicationNotFound = "APPLICATION_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeCancellationRefused = "CANCELLATION_REFUSED"
	ErrCodeAmountExceedsLimit  = "AMOUNT_EXCEEDS_LIMIT"
	ErrCodePaymentNotApproved  = "PAYMENT_NOT_APPROVED"
	ErrCodeTransportError      = "TRANSPORT_ERROR"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeCacheError          = "CACHE_ERROR"
	ErrCodeUnknownState        = "UNKNOWN_STATE"
)

// Wrap common errors with business context
func WrapInvalidInput(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidInput,
		reason,
		ErrInvalidInput,
	)
}

func WrapApplicationLocked(applicationID string) *BusinessError {
	return NewBusinessError(
		ErrCodeApplicationLocked,
		fmt.Sprintf("Application %s has a paid fee and its status is frozen", applicationID),
		ErrApplicationLocked,
	)
}

func WrapIllegalFeePayment(applicationID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeIllegalFeePayment,
		fmt.Sprintf("Fee for application %s cannot be paid while status is %s", applicationID, status),
		ErrIllegalFeePayment,
	)
}

func WrapForbiddenRole(role string) *BusinessError {
	return NewBusinessError(
		ErrCodeForbiddenRole,
		fmt.Sprintf("Role %s cannot change application status", role),
		ErrForbiddenRole,
	)
}

func WrapInvalidTransition(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot move application from %s to %s", from, to),
		ErrInvalidTransition,
	)
}

func WrapApplicationNotFound(applicationID string) *BusinessError {
	return NewBusinessError(
		ErrCodeApplicationNotFound,
		fmt.Sprintf("Loan application %s not found", applicationID),
		ErrApplicationNotFound,
	)
}

func WrapProductNotFound(productID string) *BusinessError {
	return NewBusinessError(
		ErrCodeProductNotFound,
		fmt.Sprintf("Loan product %s not found", productID),
		ErrProductNotFound,
	)
}

func WrapCancellationRefused(applicationID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeCancellationRefused,
		fmt.Sprintf("Application %s cannot be cancelled while status is %s", applicationID, status),
		ErrCancellationRefused,
	)
}

func WrapAmountExceedsLimit(requested, limit string) *BusinessError {
	return NewBusinessError(
		ErrCodeAmountExceedsLimit,
		fmt.Sprintf("Requested amount %s exceeds product limit %s", requested, limit),
		ErrAmountExceedsLimit,
	)
}

func WrapPaymentNotApproved(paymentID, providerStatus string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotApproved,
		fmt.Sprintf("Payment %s has provider status %s", paymentID, providerStatus),
		ErrPaymentNotApproved,
	)
}

func WrapTransportError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeTransportError,
		"remote update failed",
		errors.Join(ErrTransport, err),
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

func WrapUnknownState(status, feeStatus string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnknownState,
		fmt.Sprintf("No presentation mapping for status %q with fee status %q", status, feeStatus),
		ErrUnknownState,
	)
}
