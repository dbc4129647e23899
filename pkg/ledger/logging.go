package ledger

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing operation.
type OperationLog struct {
	Operation      string
	UserID         UserID
	CurrencyKey    CurrencyKey
	Delta          Delta
	BadgeID        BadgeID
	RankOrder      int
	IdempotencyKey IdempotencyKey
	Drift          int64
	Status         string
	Error          error
	Duration       time.Duration
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithUserLocker replaces the in-process per-user locker.
func WithUserLocker(locker UserLocker) ServiceOption {
	return func(service *Service) {
		if locker != nil {
			service.locker = locker
		}
	}
}

// WithIDGenerator replaces the entry id generator.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(service *Service) {
		if newID != nil {
			service.newID = newID
		}
	}
}

// WithConstraintRetries bounds how often an event that lost a uniqueness race is replayed.
func WithConstraintRetries(limit int) ServiceOption {
	return func(service *Service) {
		if limit > 0 {
			service.retryLimit = limit
		}
	}
}
