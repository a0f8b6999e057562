package app

import (
	"context"
	"time"

	"quiztap-service/internal/domain"
)

// MaxLeaderboardSize caps the ranked table; the store must never let a read
// observe more rows than this after a successful upsert.
const MaxLeaderboardSize = 10

// CatalogRepository supplies the question catalog (from cache/backing store).
type CatalogRepository interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// GameStore abstracts the relational backend the quiz writes through.
type GameStore interface {
	// RegisterPlayer upserts the participant's contact row.
	RegisterPlayer(ctx context.Context, p domain.Participant) error
	// CreateSession inserts a session row and returns its assigned ID.
	CreateSession(ctx context.Context, username string, startedAt time.Time) (int64, error)
	// UpdateSessionTotals writes the final score and duration onto the session row.
	UpdateSessionTotals(ctx context.Context, sessionID int64, totalScore, durationSeconds int) error
	// RecordAnswer appends one audit-trail fact. Callers treat it as best-effort.
	RecordAnswer(ctx context.Context, rec domain.AnswerRecord) error
	// UpsertEntry inserts or replaces the participant's leaderboard row and
	// trims the table so a subsequent read sees at most MaxLeaderboardSize rows.
	UpsertEntry(ctx context.Context, entry domain.LeaderboardEntry) error
	// TopEntries returns up to MaxLeaderboardSize rows ordered by score
	// descending, achieved_at ascending.
	TopEntries(ctx context.Context) ([]domain.LeaderboardEntry, error)
	// CountEntries reports the total number of leaderboard rows.
	CountEntries(ctx context.Context) (int, error)
}

// SessionRegistry tracks which participants have a live session, so a second
// connection cannot start a concurrent attempt under the same username.
type SessionRegistry interface {
	// Register claims a live slot; it reports false if one is already held.
	Register(username string, lc *Lifecycle) bool
	Unregister(username string)
}
