package ledger

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the domain, the stores and the transports.
var (
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrZeroDelta           = errors.New("zero delta")
	ErrDuplicateSource     = errors.New("duplicate source")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrUnavailable         = errors.New("storage unavailable")
	ErrCatalogInconsistent = errors.New("catalog inconsistent")
)

// Input and lookup errors.
var (
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrInvalidCurrencyKey    = errors.New("invalid currency key")
	ErrInvalidEntryID        = errors.New("invalid entry id")
	ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")
	ErrInvalidDrillID        = errors.New("invalid drill id")
	ErrInvalidSeriesID       = errors.New("invalid series id")
	ErrInvalidActorID        = errors.New("invalid actor id")
	ErrInvalidBadgeID        = errors.New("invalid badge id")
	ErrInvalidMetadataJSON   = errors.New("invalid metadata json")
	ErrInvalidSourceType     = errors.New("invalid source type")
	ErrInvalidEventKind      = errors.New("invalid event kind")
	ErrInvalidReason         = errors.New("invalid reason")
	ErrInvalidPageSize       = errors.New("invalid page size")
	ErrInvalidServiceConfig  = errors.New("invalid service config")
	ErrEntryNotFound         = errors.New("entry not found")
	ErrEventNotFound         = errors.New("event not found")
	ErrNoRank                = errors.New("no rank")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// IsRetriable reports whether the caller may safely resubmit the same event.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrConstraintViolation)
}

// catalogError builds a CatalogInconsistent failure with a stable code.
func catalogError(subject string, code string, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	return WrapError("catalog", subject, code, fmt.Errorf("%w: %s", ErrCatalogInconsistent, detail))
}
