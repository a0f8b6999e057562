package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiztap-service/internal/app"
	"quiztap-service/internal/domain"
)

// GameStore is an in-memory implementation of app.GameStore, used by tests
// and by demo mode when no postgres is configured. The top-10 trim happens
// under the same lock as the upsert, so reads never observe more than the cap.
type GameStore struct {
	mu            sync.Mutex
	nextSessionID int64
	players       map[string]domain.Participant
	sessions      map[int64]*domain.Session
	answers       []domain.AnswerRecord
	entries       map[string]domain.LeaderboardEntry
}

func NewGameStore() *GameStore {
	return &GameStore{
		players:  make(map[string]domain.Participant),
		sessions: make(map[int64]*domain.Session),
		entries:  make(map[string]domain.LeaderboardEntry),
	}
}

func (s *GameStore) RegisterPlayer(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.Username] = p
	return nil
}

func (s *GameStore) CreateSession(_ context.Context, username string, startedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSessionID++
	id := s.nextSessionID
	s.sessions[id] = &domain.Session{
		ID:        id,
		Username:  username,
		StartTime: startedAt,
	}
	return id, nil
}

func (s *GameStore) UpdateSessionTotals(_ context.Context, sessionID int64, totalScore, durationSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionFinished
	}
	session.TotalScore = totalScore
	session.DurationSeconds = durationSeconds
	return nil
}

func (s *GameStore) RecordAnswer(_ context.Context, rec domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, rec)
	return nil
}

func (s *GameStore) UpsertEntry(_ context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Username] = entry

	if len(s.entries) > app.MaxLeaderboardSize {
		ranked := s.rankedLocked()
		for _, e := range ranked[app.MaxLeaderboardSize:] {
			delete(s.entries, e.Username)
		}
	}
	return nil
}

func (s *GameStore) TopEntries(_ context.Context) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranked := s.rankedLocked()
	if len(ranked) > app.MaxLeaderboardSize {
		ranked = ranked[:app.MaxLeaderboardSize]
	}
	return ranked, nil
}

func (s *GameStore) CountEntries(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// rankedLocked orders entries by score descending, then earlier achiever,
// then username for a stable total order.
func (s *GameStore) rankedLocked() []domain.LeaderboardEntry {
	ranked := make([]domain.LeaderboardEntry, 0, len(s.entries))
	for _, e := range s.entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if !ranked[i].AchievedAt.Equal(ranked[j].AchievedAt) {
			return ranked[i].AchievedAt.Before(ranked[j].AchievedAt)
		}
		return ranked[i].Username < ranked[j].Username
	})
	return ranked
}

// Answers returns a copy of the audit trail, for assertions.
func (s *GameStore) Answers() []domain.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AnswerRecord, len(s.answers))
	copy(out, s.answers)
	return out
}

// Session returns the stored session row, for assertions.
func (s *GameStore) Session(id int64) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return *session, true
}

// Player returns the registered contact row, for assertions.
func (s *GameStore) Player(username string) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[username]
	return p, ok
}
