package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// AppendResult is the outcome of a journal append. Duplicate marks a replayed idempotency key.
type AppendResult struct {
	Entry     Entry
	Duplicate bool
}

// Journal is the append-only ledger over a Store.
type Journal struct {
	catalog *Catalog
	newID   func() string
}

// NewJournal wires a journal that validates currencies against the catalog.
func NewJournal(catalog *Catalog, newID func() string) (*Journal, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog dependency is nil", ErrInvalidServiceConfig)
	}
	if newID == nil {
		return nil, fmt.Errorf("%w: id generator is nil", ErrInvalidServiceConfig)
	}
	return &Journal{catalog: catalog, newID: newID}, nil
}

// Append persists one entry. A known idempotency key returns the original entry instead.
func (journal *Journal) Append(ctx context.Context, store Store, input EntryInput, nowUnixUTC int64) (AppendResult, error) {
	if input.UserID.IsZero() {
		return AppendResult{}, WrapError(operationAppend, "user", "invalid", ErrInvalidUserID)
	}
	if !journal.catalog.HasCurrency(input.CurrencyKey) {
		return AppendResult{}, WrapError(operationAppend, "currency", "unknown", fmt.Errorf("%w: %q", ErrInvalidCurrency, input.CurrencyKey.String()))
	}
	if input.Delta == 0 {
		return AppendResult{}, WrapError(operationAppend, "delta", "zero", ErrZeroDelta)
	}
	if input.SourceType == "" {
		return AppendResult{}, WrapError(operationAppend, "source", "invalid", ErrInvalidSourceType)
	}
	if strings.TrimSpace(input.SourceID) == "" {
		return AppendResult{}, WrapError(operationAppend, "source", "invalid", fmt.Errorf("%w: empty source id", ErrInvalidSourceType))
	}
	idempotencyKey := input.IdempotencyKey
	if idempotencyKey.IsZero() {
		derived, err := deriveIdempotencyKey(input.SourceType, input.SourceID, input.CurrencyKey)
		if err != nil {
			return AppendResult{}, err
		}
		idempotencyKey = derived
	}

	existing, err := store.GetEntryByIdempotencyKey(ctx, input.UserID, idempotencyKey)
	if err == nil {
		return AppendResult{Entry: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, ErrEntryNotFound) {
		return AppendResult{}, err
	}

	entryID, err := NewEntryID(journal.newID())
	if err != nil {
		return AppendResult{}, err
	}
	eventKey := input.EventKey
	if eventKey.IsZero() {
		eventKey = idempotencyKey
	}
	stored, err := store.InsertEntry(ctx, Entry{
		EntryID:        entryID,
		UserID:         input.UserID,
		CurrencyKey:    input.CurrencyKey,
		Delta:          input.Delta,
		Reason:         input.Reason,
		SourceType:     input.SourceType,
		SourceID:       input.SourceID,
		IdempotencyKey: idempotencyKey,
		EventKey:       eventKey,
		Metadata:       input.Metadata,
		CreatedUnixUTC: nowUnixUTC,
	})
	if err != nil {
		return AppendResult{}, err
	}
	return AppendResult{Entry: stored}, nil
}

// Entries lazily scans a user's entries in (created, sequence) order, one page at a time.
// Every range over the returned sequence starts a fresh scan.
func (journal *Journal) Entries(ctx context.Context, store Store, userID UserID, currency *CurrencyKey, pageSize int) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		limit, err := normalizePageSize(pageSize)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		query := EntryQuery{UserID: userID, CurrencyKey: currency, Limit: limit}
		for {
			page, err := store.ListEntries(ctx, query)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			for _, entry := range page {
				if !yield(entry, nil) {
					return
				}
			}
			if len(page) < limit {
				return
			}
			last := page[len(page)-1]
			query.AfterUnixUTC = last.CreatedUnixUTC
			query.AfterSequence = last.Sequence
		}
	}
}

func normalizePageSize(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidPageSize, limit)
	case limit == 0:
		return defaultPageSize, nil
	case limit > maxPageSize:
		return maxPageSize, nil
	default:
		return limit, nil
	}
}
