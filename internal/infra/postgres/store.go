package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiztap-service/internal/app"
	"quiztap-service/internal/domain"
)

type playerRow struct {
	bun.BaseModel `bun:"table:players"`

	Username string `bun:"username,pk"`
	Name     string `bun:"name"`
	Phone    string `bun:"phone"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions"`

	ID              int64     `bun:"id,pk,autoincrement"`
	Username        string    `bun:"username"`
	StartTime       time.Time `bun:"start_time"`
	TotalScore      int       `bun:"total_score"`
	DurationSeconds int       `bun:"duration_seconds"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:player_answers"`

	ID                int64         `bun:"id,pk,autoincrement"`
	SessionID         int64         `bun:"session_id"`
	QuestionID        int64         `bun:"question_id"`
	SelectedOption    sql.NullInt32 `bun:"selected_option"`
	Correct           bool          `bun:"correct"`
	AnswerTimeSeconds float64       `bun:"answer_time_seconds"`
	Passed            bool          `bun:"passed"`
}

type leaderboardRow struct {
	bun.BaseModel `bun:"table:leaderboard"`

	Username   string    `bun:"username,pk"`
	Name       string    `bun:"name"`
	Phone      string    `bun:"phone"`
	Score      int       `bun:"score"`
	AchievedAt time.Time `bun:"achieved_at"`
}

// GameStore is the bun-backed implementation of app.GameStore.
type GameStore struct {
	db *bun.DB
}

func NewGameStore(db *bun.DB) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) RegisterPlayer(ctx context.Context, p domain.Participant) error {
	row := &playerRow{Username: p.Username, Name: p.Name, Phone: p.Phone}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (username) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("phone = EXCLUDED.phone").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

func (s *GameStore) CreateSession(ctx context.Context, username string, startedAt time.Time) (int64, error) {
	row := &sessionRow{Username: username, StartTime: startedAt}
	_, err := s.db.NewInsert().
		Model(row).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return row.ID, nil
}

func (s *GameStore) UpdateSessionTotals(ctx context.Context, sessionID int64, totalScore, durationSeconds int) error {
	_, err := s.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("total_score = ?", totalScore).
		Set("duration_seconds = ?", durationSeconds).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session totals: %w", err)
	}
	return nil
}

func (s *GameStore) RecordAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	row := &answerRow{
		SessionID:         rec.SessionID,
		QuestionID:        rec.QuestionID,
		Correct:           rec.Correct,
		AnswerTimeSeconds: rec.AnswerTime.Seconds(),
		Passed:            rec.Passed,
	}
	if !rec.Passed {
		row.SelectedOption = sql.NullInt32{Int32: int32(rec.SelectedOption), Valid: true}
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert answer record: %w", err)
	}
	return nil
}

// UpsertEntry replaces the participant's row and trims everything past rank
// 10 in the same transaction, so no read after commit can see more than the
// cap even with concurrent finishers.
func (s *GameStore) UpsertEntry(ctx context.Context, entry domain.LeaderboardEntry) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := &leaderboardRow{
			Username:   entry.Username,
			Name:       entry.Name,
			Phone:      entry.Phone,
			Score:      entry.Score,
			AchievedAt: entry.AchievedAt,
		}
		if _, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (username) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("phone = EXCLUDED.phone").
			Set("score = EXCLUDED.score").
			Set("achieved_at = EXCLUDED.achieved_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert leaderboard entry: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*leaderboardRow)(nil)).
			Where("username IN (SELECT username FROM leaderboard ORDER BY score DESC, achieved_at ASC OFFSET ?)", app.MaxLeaderboardSize).
			Exec(ctx); err != nil {
			return fmt.Errorf("trim leaderboard: %w", err)
		}
		return nil
	})
}

func (s *GameStore) TopEntries(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var rows []leaderboardRow
	err := s.db.NewSelect().
		Model(&rows).
		Order("score DESC").
		Order("achieved_at ASC").
		Limit(app.MaxLeaderboardSize).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			Username:   row.Username,
			Name:       row.Name,
			Phone:      row.Phone,
			Score:      row.Score,
			AchievedAt: row.AchievedAt,
		})
	}
	return entries, nil
}

func (s *GameStore) CountEntries(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*leaderboardRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count leaderboard: %w", err)
	}
	return count, nil
}
