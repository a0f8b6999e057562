package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiztap-service/internal/app"
	"quiztap-service/internal/domain"
	"quiztap-service/internal/infra/memory"
)

func TestFinalizeReportsPlacement(t *testing.T) {
	ctx := context.Background()
	store := memory.NewGameStore()
	seedEntries(t, store, 3, 50) // scores 50, 40, 30

	protocol := app.NewLeaderboardProtocol(store)
	sessionID, _ := store.CreateSession(ctx, "alice", time.Now())

	result, err := protocol.Finalize(ctx, sessionID, 45, 72*time.Second, participant())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !result.LeaderboardOK || !result.Ranked || result.Rank != 2 {
		t.Fatalf("expected rank 2, got %+v", result)
	}
	if result.FinalScore != 45 || result.DurationSeconds != 72 {
		t.Fatalf("expected score/duration carried through, got %+v", result)
	}

	session, _ := store.Session(sessionID)
	if session.TotalScore != 45 || session.DurationSeconds != 72 {
		t.Fatalf("session totals not persisted: %+v", session)
	}
}

func TestFinalizeSurvivesSessionUpdateFailure(t *testing.T) {
	store := &failingStore{GameStore: memory.NewGameStore(), failUpdate: true}
	protocol := app.NewLeaderboardProtocol(store)

	result, err := protocol.Finalize(context.Background(), 99, 20, 30*time.Second, participant())
	if err != nil {
		t.Fatalf("session update failure must not fail the protocol: %v", err)
	}
	if !result.LeaderboardOK || !result.Ranked {
		t.Fatalf("expected a ranked result despite session failure, got %+v", result)
	}
}

func TestFinalizeUpsertFailureIsFatal(t *testing.T) {
	store := &failingStore{GameStore: memory.NewGameStore(), failUpsert: true}
	protocol := app.NewLeaderboardProtocol(store)

	result, err := protocol.Finalize(context.Background(), 1, 20, 30*time.Second, participant())
	if !errors.Is(err, domain.ErrLeaderboardUpsert) {
		t.Fatalf("expected upsert error, got %v", err)
	}
	// The local score is still the fallback of record.
	if result.FinalScore != 20 || result.LeaderboardOK {
		t.Fatalf("expected local score with no confirmed leaderboard, got %+v", result)
	}
}

func TestFinalizeReadFailureDegradesToScoreOnly(t *testing.T) {
	store := &failingStore{GameStore: memory.NewGameStore(), failRead: true}
	protocol := app.NewLeaderboardProtocol(store)

	result, err := protocol.Finalize(context.Background(), 1, 20, 30*time.Second, participant())
	if !errors.Is(err, domain.ErrLeaderboardRead) {
		t.Fatalf("expected read error, got %v", err)
	}
	if result.FinalScore != 20 || result.Top10 != nil || result.LeaderboardOK {
		t.Fatalf("expected score-only result, got %+v", result)
	}
}

func TestResubmissionReplacesEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewGameStore()
	protocol := app.NewLeaderboardProtocol(store)

	if _, err := protocol.Finalize(ctx, 1, 40, time.Minute, participant()); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	// Second attempt scores lower; latest attempt still replaces the entry.
	result, err := protocol.Finalize(ctx, 2, 25, time.Minute, participant())
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}

	if len(result.Top10) != 1 {
		t.Fatalf("expected exactly one row after replaying, got %d", len(result.Top10))
	}
	if result.Top10[0].Score != 25 {
		t.Fatalf("expected the later score to win, got %d", result.Top10[0].Score)
	}
}

func TestLowScoreDoesNotDisplaceFullTable(t *testing.T) {
	ctx := context.Background()
	store := memory.NewGameStore()
	seedEntries(t, store, 10, 100) // scores 100..10

	protocol := app.NewLeaderboardProtocol(store)
	result, err := protocol.Finalize(ctx, 1, 5, time.Minute, participant())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Ranked {
		t.Fatalf("score 5 must not rank against 100..10, got rank %d", result.Rank)
	}
	if len(result.Top10) != 10 || result.Top10[9].Score != 10 {
		t.Fatalf("expected the original top 10 untouched, got %+v", result.Top10)
	}
	count, _ := store.CountEntries(ctx)
	if count > app.MaxLeaderboardSize {
		t.Fatalf("cap violated: %d rows", count)
	}
}

func TestConcurrentFinishersKeepCap(t *testing.T) {
	ctx := context.Background()
	store := memory.NewGameStore()
	protocol := app.NewLeaderboardProtocol(store)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.Participant{Username: fmt.Sprintf("user-%02d", i), Name: fmt.Sprintf("User %d", i)}
			if _, err := protocol.Finalize(ctx, int64(i), i*3, time.Minute, p); err != nil {
				t.Errorf("finalize %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	top, err := store.TopEntries(ctx)
	if err != nil {
		t.Fatalf("top entries: %v", err)
	}
	if len(top) > app.MaxLeaderboardSize {
		t.Fatalf("read observed %d rows, cap is %d", len(top), app.MaxLeaderboardSize)
	}
	for i := 1; i < len(top); i++ {
		if top[i].Score > top[i-1].Score {
			t.Fatalf("ordering violated at %d: %+v", i, top)
		}
	}
	count, _ := store.CountEntries(ctx)
	if count > app.MaxLeaderboardSize {
		t.Fatalf("cap violated after settle: %d rows", count)
	}
}

func TestEarlierAchieverWinsTies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewGameStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	later := domain.LeaderboardEntry{Username: "late", Name: "Late", Score: 40, AchievedAt: base.Add(time.Hour)}
	earlier := domain.LeaderboardEntry{Username: "early", Name: "Early", Score: 40, AchievedAt: base}
	if err := store.UpsertEntry(ctx, later); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertEntry(ctx, earlier); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	top, _ := store.TopEntries(ctx)
	if top[0].Username != "early" || top[1].Username != "late" {
		t.Fatalf("expected earlier achiever first on equal score, got %+v", top)
	}
}

// seedEntries fills the table with n entries scoring topScore, topScore-10, ...
func seedEntries(t *testing.T, store *memory.GameStore, n, topScore int) {
	t.Helper()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		entry := domain.LeaderboardEntry{
			Username:   fmt.Sprintf("seed-%02d", i),
			Name:       fmt.Sprintf("Seed %d", i),
			Score:      topScore - i*10,
			AchievedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.UpsertEntry(context.Background(), entry); err != nil {
			t.Fatalf("seed entry %d: %v", i, err)
		}
	}
}

// failingStore fails selected operations to exercise per-step policies.
type failingStore struct {
	app.GameStore
	failUpdate bool
	failUpsert bool
	failRead   bool
}

func (s *failingStore) UpdateSessionTotals(ctx context.Context, sessionID int64, totalScore, durationSeconds int) error {
	if s.failUpdate {
		return errors.New("session table down")
	}
	return s.GameStore.UpdateSessionTotals(ctx, sessionID, totalScore, durationSeconds)
}

func (s *failingStore) UpsertEntry(ctx context.Context, entry domain.LeaderboardEntry) error {
	if s.failUpsert {
		return errors.New("leaderboard down")
	}
	return s.GameStore.UpsertEntry(ctx, entry)
}

func (s *failingStore) TopEntries(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if s.failRead {
		return nil, errors.New("leaderboard down")
	}
	return s.GameStore.TopEntries(ctx)
}
