package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
)

type walletKey struct {
	user     string
	currency string
}

type eventRef struct {
	user string
	key  string
}

type progressKey struct {
	user  string
	badge BadgeID
}

type stubState struct {
	entries     []Entry
	balances    map[walletKey]WalletBalance
	receipts    map[eventRef]EventReceipt
	progress    map[progressKey]BadgeProgress
	awards      []BadgeAward
	rankStates  map[walletKey]RankState
	transitions []RankTransition
	streaks     map[string]StreakState
	sequence    int64
}

func (state stubState) clone() stubState {
	cloned := stubState{
		entries:     append([]Entry(nil), state.entries...),
		balances:    make(map[walletKey]WalletBalance, len(state.balances)),
		receipts:    make(map[eventRef]EventReceipt, len(state.receipts)),
		progress:    make(map[progressKey]BadgeProgress, len(state.progress)),
		awards:      append([]BadgeAward(nil), state.awards...),
		rankStates:  make(map[walletKey]RankState, len(state.rankStates)),
		transitions: append([]RankTransition(nil), state.transitions...),
		streaks:     make(map[string]StreakState, len(state.streaks)),
		sequence:    state.sequence,
	}
	for key, value := range state.streaks {
		cloned.streaks[key] = value
	}
	for key, value := range state.balances {
		cloned.balances[key] = value
	}
	for key, value := range state.receipts {
		cloned.receipts[key] = value
	}
	for key, value := range state.progress {
		cloned.progress[key] = value
	}
	for key, value := range state.rankStates {
		cloned.rankStates[key] = value
	}
	return cloned
}

// stubStore is an in-memory Store. Transactions are serialized and rolled back on error.
type stubStore struct {
	txMutex sync.Mutex
	mutex   sync.Mutex
	state   stubState

	transactions int

	lockUserError      error
	getReceiptError    error
	insertEntryError   error
	applyWalletError   error
	insertAwardError   error
	listEntriesError   error
	listAwardsError    error
	rankStateError     error
	streakError        error
	receiptConstraints int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{state: stubState{
		balances:   make(map[walletKey]WalletBalance),
		receipts:   make(map[eventRef]EventReceipt),
		progress:   make(map[progressKey]BadgeProgress),
		rankStates: make(map[walletKey]RankState),
		streaks:    make(map[string]StreakState),
	}}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.txMutex.Lock()
	defer store.txMutex.Unlock()
	store.mutex.Lock()
	store.transactions++
	snapshot := store.state.clone()
	store.mutex.Unlock()
	if err := fn(ctx, store); err != nil {
		store.mutex.Lock()
		store.state = snapshot
		store.mutex.Unlock()
		return err
	}
	return nil
}

func (store *stubStore) LockUser(ctx context.Context, userID UserID) error {
	return store.lockUserError
}

func (store *stubStore) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.insertEntryError != nil {
		return Entry{}, store.insertEntryError
	}
	for _, existing := range store.state.entries {
		if existing.UserID == entry.UserID && existing.IdempotencyKey == entry.IdempotencyKey {
			return Entry{}, ErrConstraintViolation
		}
	}
	store.state.sequence++
	entry.Sequence = store.state.sequence
	store.state.entries = append(store.state.entries, entry)
	return entry, nil
}

func (store *stubStore) GetEntryByIdempotencyKey(ctx context.Context, userID UserID, idempotencyKey IdempotencyKey) (Entry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, entry := range store.state.entries {
		if entry.UserID == userID && entry.IdempotencyKey == idempotencyKey {
			return entry, nil
		}
	}
	return Entry{}, ErrEntryNotFound
}

func (store *stubStore) ListEntries(ctx context.Context, query EntryQuery) ([]Entry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.listEntriesError != nil {
		return nil, store.listEntriesError
	}
	matched := make([]Entry, 0)
	for _, entry := range store.state.entries {
		if entry.UserID != query.UserID {
			continue
		}
		if query.CurrencyKey != nil && entry.CurrencyKey != *query.CurrencyKey {
			continue
		}
		afterCursor := entry.CreatedUnixUTC > query.AfterUnixUTC ||
			(entry.CreatedUnixUTC == query.AfterUnixUTC && entry.Sequence > query.AfterSequence)
		if query.HasCursor() && !afterCursor {
			continue
		}
		matched = append(matched, entry)
	}
	sort.Slice(matched, func(left, right int) bool {
		if matched[left].CreatedUnixUTC != matched[right].CreatedUnixUTC {
			return matched[left].CreatedUnixUTC < matched[right].CreatedUnixUTC
		}
		return matched[left].Sequence < matched[right].Sequence
	})
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, nil
}

func (store *stubStore) ListEntriesByEvent(ctx context.Context, userID UserID, eventKey IdempotencyKey) ([]Entry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	matched := make([]Entry, 0)
	for _, entry := range store.state.entries {
		if entry.UserID == userID && entry.EventKey == eventKey {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

func (store *stubStore) GetWalletBalance(ctx context.Context, userID UserID, currency CurrencyKey) (WalletBalance, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	balance, ok := store.state.balances[walletKey{user: userID.String(), currency: currency.String()}]
	if !ok {
		return WalletBalance{UserID: userID, CurrencyKey: currency}, nil
	}
	return balance, nil
}

func (store *stubStore) ApplyWalletDelta(ctx context.Context, userID UserID, currency CurrencyKey, delta Delta, nowUnixUTC int64) (WalletBalance, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.applyWalletError != nil {
		return WalletBalance{}, store.applyWalletError
	}
	key := walletKey{user: userID.String(), currency: currency.String()}
	balance := store.state.balances[key]
	balance.UserID = userID
	balance.CurrencyKey = currency
	balance.Balance += delta.Int64()
	balance.UpdatedUnixUTC = nowUnixUTC
	store.state.balances[key] = balance
	return balance, nil
}

func (store *stubStore) SetWalletBalance(ctx context.Context, userID UserID, currency CurrencyKey, value int64, nowUnixUTC int64) (WalletBalance, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	balance := WalletBalance{UserID: userID, CurrencyKey: currency, Balance: value, UpdatedUnixUTC: nowUnixUTC}
	store.state.balances[walletKey{user: userID.String(), currency: currency.String()}] = balance
	return balance, nil
}

func (store *stubStore) ListWalletBalances(ctx context.Context, userID UserID) ([]WalletBalance, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	balances := make([]WalletBalance, 0)
	for key, balance := range store.state.balances {
		if key.user == userID.String() {
			balances = append(balances, balance)
		}
	}
	return balances, nil
}

func (store *stubStore) TopWalletBalances(ctx context.Context, currency CurrencyKey, limit int) ([]WalletBalance, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	balances := make([]WalletBalance, 0)
	for key, balance := range store.state.balances {
		if key.currency == currency.String() {
			balances = append(balances, balance)
		}
	}
	sort.Slice(balances, func(left, right int) bool {
		if balances[left].Balance != balances[right].Balance {
			return balances[left].Balance > balances[right].Balance
		}
		return balances[left].UserID.String() < balances[right].UserID.String()
	})
	if len(balances) > limit {
		balances = balances[:limit]
	}
	return balances, nil
}

func (store *stubStore) CountWalletBalancesAtLeast(ctx context.Context, currency CurrencyKey, minimum int64) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var count int64
	for key, balance := range store.state.balances {
		if key.currency == currency.String() && balance.Balance >= minimum {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) InsertEventReceipt(ctx context.Context, receipt EventReceipt) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.receiptConstraints > 0 {
		store.receiptConstraints--
		return ErrConstraintViolation
	}
	ref := eventRef{user: receipt.UserID.String(), key: receipt.EventKey.String()}
	if _, exists := store.state.receipts[ref]; exists {
		return ErrConstraintViolation
	}
	store.state.receipts[ref] = receipt
	return nil
}

func (store *stubStore) GetEventReceipt(ctx context.Context, userID UserID, eventKey IdempotencyKey) (EventReceipt, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.getReceiptError != nil {
		return EventReceipt{}, store.getReceiptError
	}
	receipt, ok := store.state.receipts[eventRef{user: userID.String(), key: eventKey.String()}]
	if !ok {
		return EventReceipt{}, ErrEventNotFound
	}
	return receipt, nil
}

func (store *stubStore) IncrementBadgeProgress(ctx context.Context, userID UserID, badgeID BadgeID, nowUnixUTC int64) (BadgeProgress, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := progressKey{user: userID.String(), badge: badgeID}
	progress := store.state.progress[key]
	progress.UserID = userID
	progress.BadgeID = badgeID
	progress.DrillsCompleted++
	progress.UpdatedUnixUTC = nowUnixUTC
	store.state.progress[key] = progress
	return progress, nil
}

func (store *stubStore) ListBadgeProgress(ctx context.Context, userID UserID) ([]BadgeProgress, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	rows := make([]BadgeProgress, 0)
	for key, progress := range store.state.progress {
		if key.user == userID.String() {
			rows = append(rows, progress)
		}
	}
	return rows, nil
}

func (store *stubStore) InsertBadgeAward(ctx context.Context, award BadgeAward) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.insertAwardError != nil {
		return store.insertAwardError
	}
	for _, existing := range store.state.awards {
		if existing.UserID == award.UserID && existing.BadgeID == award.BadgeID && existing.Earning == award.Earning {
			return ErrConstraintViolation
		}
	}
	store.state.awards = append(store.state.awards, award)
	return nil
}

func (store *stubStore) ListBadgeAwards(ctx context.Context, userID UserID) ([]BadgeAward, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.listAwardsError != nil {
		return nil, store.listAwardsError
	}
	awards := make([]BadgeAward, 0)
	for _, award := range store.state.awards {
		if award.UserID == userID {
			awards = append(awards, award)
		}
	}
	return awards, nil
}

func (store *stubStore) ListBadgeAwardsByEvent(ctx context.Context, userID UserID, eventKey IdempotencyKey) ([]BadgeAward, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	awards := make([]BadgeAward, 0)
	for _, award := range store.state.awards {
		if award.UserID == userID && award.EventKey == eventKey {
			awards = append(awards, award)
		}
	}
	return awards, nil
}

func (store *stubStore) GetRankState(ctx context.Context, userID UserID, currency CurrencyKey) (RankState, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.rankStateError != nil {
		return RankState{}, store.rankStateError
	}
	state, ok := store.state.rankStates[walletKey{user: userID.String(), currency: currency.String()}]
	if !ok {
		return RankState{UserID: userID, CurrencyKey: currency}, nil
	}
	return state, nil
}

func (store *stubStore) UpsertRankState(ctx context.Context, state RankState) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state.rankStates[walletKey{user: state.UserID.String(), currency: state.CurrencyKey.String()}] = state
	return nil
}

func (store *stubStore) InsertRankTransition(ctx context.Context, transition RankTransition) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state.transitions = append(store.state.transitions, transition)
	return nil
}

func (store *stubStore) ListRankTransitionsByEvent(ctx context.Context, userID UserID, eventKey IdempotencyKey) ([]RankTransition, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	transitions := make([]RankTransition, 0)
	for _, transition := range store.state.transitions {
		if transition.UserID == userID && transition.EventKey == eventKey {
			transitions = append(transitions, transition)
		}
	}
	return transitions, nil
}

func (store *stubStore) GetStreak(ctx context.Context, userID UserID) (StreakState, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.streakError != nil {
		return StreakState{}, store.streakError
	}
	streak, ok := store.state.streaks[userID.String()]
	if !ok {
		return StreakState{UserID: userID}, nil
	}
	return streak, nil
}

func (store *stubStore) UpsertStreak(ctx context.Context, state StreakState) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state.streaks[state.UserID.String()] = state
	return nil
}

func (store *stubStore) seedStreak(state StreakState) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state.streaks[state.UserID.String()] = state
}

func (store *stubStore) entryCount() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return len(store.state.entries)
}

func (store *stubStore) ledgerSum(userID UserID, currency CurrencyKey) int64 {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var total int64
	for _, entry := range store.state.entries {
		if entry.UserID == userID && entry.CurrencyKey == currency {
			total += entry.Delta.Int64()
		}
	}
	return total
}

func (store *stubStore) seedAward(userID UserID, badgeID BadgeID) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state.awards = append(store.state.awards, BadgeAward{UserID: userID, BadgeID: badgeID, Earning: 1})
}

func (store *stubStore) seedBalance(userID UserID, currency CurrencyKey, value int64) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state.balances[walletKey{user: userID.String(), currency: currency.String()}] = WalletBalance{
		UserID:      userID,
		CurrencyKey: currency,
		Balance:     value,
	}
}

func mustNewService(test *testing.T, store Store, catalog *Catalog, options ...ServiceOption) *Service {
	test.Helper()
	clock := int64(1_700_000_000)
	var clockMutex sync.Mutex
	now := func() int64 {
		clockMutex.Lock()
		defer clockMutex.Unlock()
		clock++
		return clock
	}
	counter := 0
	var counterMutex sync.Mutex
	newID := func() string {
		counterMutex.Lock()
		defer counterMutex.Unlock()
		counter++
		return fmt.Sprintf("entry-%04d", counter)
	}
	options = append([]ServiceOption{WithIDGenerator(newID)}, options...)
	service, err := NewService(store, catalog, now, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	value, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("invalid user id: %v", err)
	}
	return value
}

func mustCurrency(test *testing.T, raw string) CurrencyKey {
	test.Helper()
	value, err := NewCurrencyKey(raw)
	if err != nil {
		test.Fatalf("invalid currency key: %v", err)
	}
	return value
}

func mustIdempotencyKey(test *testing.T, raw string) IdempotencyKey {
	test.Helper()
	value, err := NewIdempotencyKey(raw)
	if err != nil {
		test.Fatalf("invalid idempotency key: %v", err)
	}
	return value
}

func mustSeries(test *testing.T, raw string) SeriesID {
	test.Helper()
	value, err := NewSeriesID(raw)
	if err != nil {
		test.Fatalf("invalid series id: %v", err)
	}
	return value
}

func mustDrill(test *testing.T, raw string) DrillID {
	test.Helper()
	value, err := NewDrillID(raw)
	if err != nil {
		test.Fatalf("invalid drill id: %v", err)
	}
	return value
}

func mustActor(test *testing.T, raw string) ActorID {
	test.Helper()
	value, err := NewActorID(raw)
	if err != nil {
		test.Fatalf("invalid actor id: %v", err)
	}
	return value
}

func mustCatalog(test *testing.T, spec CatalogSpec) *Catalog {
	test.Helper()
	catalog, err := NewCatalog(spec)
	if err != nil {
		test.Fatalf("catalog rejected: %v", err)
	}
	return catalog
}

func seriesRef(test *testing.T, raw string) *SeriesID {
	test.Helper()
	series := mustSeries(test, raw)
	return &series
}

func completion(test *testing.T, user UserID, series string, key string) CompletionEvent {
	test.Helper()
	return CompletionEvent{
		UserID:           user,
		DrillID:          mustDrill(test, "drill-"+series),
		SeriesID:         mustSeries(test, series),
		CompletedUnixUTC: 1_700_000_000,
		IdempotencyKey:   mustIdempotencyKey(test, key),
	}
}

func manualCredit(test *testing.T, user UserID, currency CurrencyKey, delta int64, key string) ManualCreditEvent {
	test.Helper()
	return ManualCreditEvent{
		UserID:         user,
		CurrencyKey:    currency,
		Delta:          Delta(delta),
		Reason:         "coach adjustment",
		ActorID:        mustActor(test, "coach-1"),
		IdempotencyKey: mustIdempotencyKey(test, key),
	}
}
