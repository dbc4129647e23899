package awardsv1

import "github.com/MarkoPoloResearchLab/gamification/pkg/ledger"

// FromAwardResult converts an orchestrator result. Badge titles come from catalog.
func FromAwardResult(result ledger.AwardResult, catalog *ledger.Catalog) *AwardResponse {
	response := &AwardResponse{
		CreditsGranted: make([]*Entry, 0, len(result.CreditsGranted)),
		BadgesAwarded:  make([]*BadgeAward, 0, len(result.BadgesAwarded)),
		RankChanges:    make([]*RankChange, 0, len(result.RankChanges)),
		Duplicate:      result.Duplicate,
	}
	for _, entry := range result.CreditsGranted {
		response.CreditsGranted = append(response.CreditsGranted, FromEntry(entry))
	}
	for _, award := range result.BadgesAwarded {
		response.BadgesAwarded = append(response.BadgesAwarded, FromBadgeAward(award, catalog))
	}
	for _, change := range result.RankChanges {
		response.RankChanges = append(response.RankChanges, &RankChange{
			CurrencyKey: change.CurrencyKey.String(),
			From:        FromRank(change.From),
			To:          FromRank(change.To),
		})
	}
	return response
}

func FromEntry(entry ledger.Entry) *Entry {
	return &Entry{
		EntryId:        entry.EntryID.String(),
		Sequence:       entry.Sequence,
		UserId:         entry.UserID.String(),
		CurrencyKey:    entry.CurrencyKey.String(),
		Delta:          entry.Delta.Int64(),
		Reason:         entry.Reason,
		SourceType:     entry.SourceType.String(),
		SourceId:       entry.SourceID,
		IdempotencyKey: entry.IdempotencyKey.String(),
		EventKey:       entry.EventKey.String(),
		MetadataJson:   entry.Metadata.String(),
		CreatedUnixUtc: entry.CreatedUnixUTC,
	}
}

func FromEntries(entries []ledger.Entry) []*Entry {
	converted := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		converted = append(converted, FromEntry(entry))
	}
	return converted
}

func FromBadgeAward(award ledger.BadgeAward, catalog *ledger.Catalog) *BadgeAward {
	converted := &BadgeAward{
		BadgeId:        award.BadgeID.Int64(),
		Earning:        int32(award.Earning),
		EventKey:       award.EventKey.String(),
		AwardedUnixUtc: award.AwardedUnixUTC,
	}
	if catalog != nil {
		if badge, ok := catalog.Badge(award.BadgeID); ok {
			converted.Title = badge.Title
		}
	}
	if award.SourceEntryID != nil {
		converted.SourceEntryId = award.SourceEntryID.String()
	}
	return converted
}

// FromRank returns nil for a nil rank.
func FromRank(rank *ledger.Rank) *Rank {
	if rank == nil {
		return nil
	}
	return &Rank{
		Order:           int32(rank.Order),
		Title:           rank.Title,
		CurrencyKey:     rank.CurrencyKey.String(),
		CreditsRequired: rank.CreditsRequired,
	}
}

func FromRankProgress(progress ledger.RankProgress) *RankProgressResponse {
	return &RankProgressResponse{
		CurrencyKey:   progress.CurrencyKey.String(),
		Balance:       progress.Balance,
		Current:       FromRank(progress.Current),
		Next:          FromRank(progress.Next),
		CreditsToNext: progress.CreditsToNext,
		Percentage:    progress.Percentage,
	}
}

func FromLeaderboard(board []ledger.LeaderboardEntry) *LeaderboardResponse {
	response := &LeaderboardResponse{Entries: make([]*LeaderboardEntry, 0, len(board))}
	for _, row := range board {
		response.Entries = append(response.Entries, &LeaderboardEntry{
			Position: int32(row.Position),
			UserId:   row.UserID.String(),
			Balance:  row.Balance,
			Rank:     FromRank(row.Rank),
		})
	}
	return response
}

func FromStreak(streak ledger.StreakState) *StreakResponse {
	return &StreakResponse{
		CurrentDays:   int32(streak.CurrentDays),
		LongestDays:   int32(streak.LongestDays),
		LastActiveDay: streak.LastActiveDay,
	}
}

func FromRankDistribution(buckets []ledger.RankBucket) *RankDistributionResponse {
	response := &RankDistributionResponse{Buckets: make([]*RankBucket, 0, len(buckets))}
	for _, bucket := range buckets {
		response.Buckets = append(response.Buckets, &RankBucket{
			Rank:       FromRank(bucket.Rank),
			Users:      bucket.Users,
			Percentage: int32(bucket.Percentage),
		})
	}
	return response
}
