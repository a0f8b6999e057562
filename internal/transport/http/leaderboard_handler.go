package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"quiztap-service/internal/app"
	"quiztap-service/internal/domain"
)

// LeaderboardHandler serves the current top-10 view as JSON, in the same
// canonical ordering the termination protocol uses.
type LeaderboardHandler struct {
	store app.GameStore
}

func NewLeaderboardHandler(store app.GameStore) *LeaderboardHandler {
	return &LeaderboardHandler{store: store}
}

type leaderboardResponse struct {
	Entries   []domain.LeaderboardEntry `json:"entries"`
	FetchedAt time.Time                 `json:"fetchedAt"`
}

func (h *LeaderboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := h.store.TopEntries(r.Context())
	if err != nil {
		log.Printf("leaderboard fetch failed: %v", err)
		http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(leaderboardResponse{Entries: entries, FetchedAt: time.Now()}); err != nil {
		log.Printf("leaderboard encode failed: %v", err)
	}
}
