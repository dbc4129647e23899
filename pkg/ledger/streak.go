package ledger

// StreakState tracks consecutive UTC days with at least one completed drill.
// CurrentDays is zero until the first completion.
type StreakState struct {
	UserID         UserID
	CurrentDays    int
	LongestDays    int
	LastActiveDay  int64
	UpdatedUnixUTC int64
}

// activityDay converts a unix timestamp to a UTC day number, flooring times before the epoch.
func activityDay(unixUTC int64) int64 {
	day := unixUTC / secondsPerDay
	if unixUTC%secondsPerDay < 0 {
		day--
	}
	return day
}

// advance folds an active day into the streak. The second result is false when the day was already counted.
func (state StreakState) advance(day int64, nowUnixUTC int64) (StreakState, bool) {
	next := state
	switch {
	case state.CurrentDays == 0:
		next.CurrentDays = 1
	case day <= state.LastActiveDay:
		return state, false
	case day == state.LastActiveDay+1:
		next.CurrentDays++
	default:
		next.CurrentDays = 1
	}
	next.LastActiveDay = day
	next.LongestDays = max(next.LongestDays, next.CurrentDays)
	next.UpdatedUnixUTC = nowUnixUTC
	return next, true
}

// asOf reports the streak as seen on day. A streak not extended yesterday or today has lapsed.
func (state StreakState) asOf(day int64) StreakState {
	if state.CurrentDays > 0 && day-state.LastActiveDay > 1 {
		state.CurrentDays = 0
	}
	return state
}

// shapeAmount raises a positive amount by percent, rounding down.
func shapeAmount(amount Delta, percent int) Delta {
	if percent <= 0 || amount <= 0 {
		return amount
	}
	return amount * Delta(100+percent) / 100
}
