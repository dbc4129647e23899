package ledger

import (
	"context"
	"fmt"
)

// ReconcileResult reports a projection repair.
type ReconcileResult struct {
	Before WalletBalance
	After  WalletBalance
	Drift  int64
}

// Projector is the only writer of wallet balances.
type Projector struct {
	catalog *Catalog
	journal *Journal
}

// NewProjector wires a projector.
func NewProjector(catalog *Catalog, journal *Journal) (*Projector, error) {
	if catalog == nil || journal == nil {
		return nil, fmt.Errorf("%w: projector dependencies are nil", ErrInvalidServiceConfig)
	}
	return &Projector{catalog: catalog, journal: journal}, nil
}

// ApplyDelta adds delta to the projection. Callers run it on the same txStore as the journal append.
func (projector *Projector) ApplyDelta(ctx context.Context, store Store, userID UserID, currency CurrencyKey, delta Delta, nowUnixUTC int64) (WalletBalance, error) {
	if err := projector.checkCurrency(currency); err != nil {
		return WalletBalance{}, err
	}
	if delta == 0 {
		return WalletBalance{}, WrapError("wallet", "delta", "zero", ErrZeroDelta)
	}
	return store.ApplyWalletDelta(ctx, userID, currency, delta, nowUnixUTC)
}

// GetBalance returns the projected balance, zero for an unseen pair.
func (projector *Projector) GetBalance(ctx context.Context, store Store, userID UserID, currency CurrencyKey) (WalletBalance, error) {
	if err := projector.checkCurrency(currency); err != nil {
		return WalletBalance{}, err
	}
	return store.GetWalletBalance(ctx, userID, currency)
}

// Reconcile recomputes the balance from a full ledger scan and overwrites the projection.
func (projector *Projector) Reconcile(ctx context.Context, store Store, userID UserID, currency CurrencyKey, nowUnixUTC int64) (ReconcileResult, error) {
	if err := projector.checkCurrency(currency); err != nil {
		return ReconcileResult{}, err
	}
	before, err := store.GetWalletBalance(ctx, userID, currency)
	if err != nil {
		return ReconcileResult{}, err
	}
	var total int64
	for entry, err := range projector.journal.Entries(ctx, store, userID, &currency, maxPageSize) {
		if err != nil {
			return ReconcileResult{}, err
		}
		total += entry.Delta.Int64()
	}
	after, err := store.SetWalletBalance(ctx, userID, currency, total, nowUnixUTC)
	if err != nil {
		return ReconcileResult{}, err
	}
	return ReconcileResult{Before: before, After: after, Drift: total - before.Balance}, nil
}

func (projector *Projector) checkCurrency(currency CurrencyKey) error {
	if projector.catalog.HasCurrency(currency) {
		return nil
	}
	return WrapError("wallet", "currency", "unknown", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency.String()))
}
