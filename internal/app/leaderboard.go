package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"quiztap-service/internal/domain"
)

// LeaderboardProtocol runs the end-of-session write sequence: persist session
// totals, upsert the participant's ranked entry (last attempt replaces any
// prior one), read back the capped top-10 view and compute placement. Each
// step carries its own failure policy; only the upsert and the read are fatal.
type LeaderboardProtocol struct {
	store GameStore
	now   func() time.Time
}

func NewLeaderboardProtocol(store GameStore) *LeaderboardProtocol {
	return &LeaderboardProtocol{store: store, now: time.Now}
}

// Finalize records a finished session and returns the ranked view plus the
// participant's placement. On error the returned RankedResult still carries
// the final score and duration so the caller can show them.
func (p *LeaderboardProtocol) Finalize(ctx context.Context, sessionID int64, finalScore int, duration time.Duration, participant domain.Participant) (domain.RankedResult, error) {
	result := domain.RankedResult{
		FinalScore:      finalScore,
		DurationSeconds: int(duration.Seconds()),
	}

	// Session bookkeeping is secondary to the leaderboard; log and move on.
	if err := p.store.UpdateSessionTotals(ctx, sessionID, finalScore, result.DurationSeconds); err != nil {
		log.Printf("session %d totals update failed: %v", sessionID, err)
	}

	entry := domain.LeaderboardEntry{
		Username:   participant.Username,
		Name:       participant.Name,
		Phone:      participant.Phone,
		Score:      finalScore,
		AchievedAt: p.now(),
	}
	if err := p.store.UpsertEntry(ctx, entry); err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrLeaderboardUpsert, err)
	}

	top, err := p.store.TopEntries(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrLeaderboardRead, err)
	}
	result.Top10 = top
	result.LeaderboardOK = true

	for i, e := range top {
		if e.Username == participant.Username {
			result.Rank = i + 1
			result.Ranked = true
			break
		}
	}

	// Advisory only: a count above the cap means trimming misbehaved. Surface
	// it for operators, never to the participant.
	if count, err := p.store.CountEntries(ctx); err == nil && count > MaxLeaderboardSize {
		log.Printf("leaderboard health check failed: %d rows, max %d", count, MaxLeaderboardSize)
	}

	return result, nil
}
