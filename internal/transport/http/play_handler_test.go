package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiztap-service/internal/app"
	"quiztap-service/internal/domain"
	"quiztap-service/internal/infra/memory"
)

func TestWebSocketPlayToCompletion(t *testing.T) {
	server, _ := newTestServer(t, app.WithCountdown(time.Hour, time.Hour))
	defer server.Close()

	conn := dial(t, server, "alice")
	defer conn.Close()

	msgType, payload := readNext(conn, t, "question")
	if payload["text"] == "" {
		t.Fatalf("expected question text, got %v", payload)
	}

	// The only question's correct option is 2; answering promptly earns 20.
	writeJSON(conn, t, map[string]any{
		"type":    "answer",
		"payload": map[string]any{"option": 2},
	})

	msgType, payload = readUntil(conn, t, "answerResult")
	if correct, _ := payload["correct"].(bool); !correct {
		t.Fatalf("expected a correct answer, got %v", payload)
	}
	if total, _ := payload["totalScore"].(float64); total != 20 {
		t.Fatalf("expected total 20, got %v", payload["totalScore"])
	}

	msgType, payload = readUntil(conn, t, "finished")
	if msgType != "finished" {
		t.Fatalf("expected finished frame, got %s", msgType)
	}
	if score, _ := payload["finalScore"].(float64); score != 20 {
		t.Fatalf("expected final score 20, got %v", payload["finalScore"])
	}
	if ranked, _ := payload["ranked"].(bool); !ranked {
		t.Fatalf("expected the only finisher to rank, got %v", payload)
	}
}

func TestWebSocketTimeoutDeliversFinished(t *testing.T) {
	server, _ := newTestServer(t, app.WithCountdown(80*time.Millisecond, 10*time.Millisecond))
	defer server.Close()

	conn := dial(t, server, "bob")
	defer conn.Close()

	readNext(conn, t, "question")

	// Never answer; the countdown must push the finished frame on its own.
	_, payload := readUntil(conn, t, "finished")
	if score, _ := payload["finalScore"].(float64); score != 0 {
		t.Fatalf("expected zero score on timeout, got %v", payload["finalScore"])
	}
}

func TestSecondSessionForSameUsernameRefused(t *testing.T) {
	server, _ := newTestServer(t, app.WithCountdown(time.Hour, time.Hour))
	defer server.Close()

	first := dial(t, server, "carol")
	defer first.Close()
	readNext(first, t, "question")

	second := dial(t, server, "carol")
	defer second.Close()
	msgType, _ := readNext(second, t, "error")
	if msgType != "error" {
		t.Fatalf("expected error frame for duplicate session, got %s", msgType)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	server, store := newTestServer(t)
	defer server.Close()

	entry := domain.LeaderboardEntry{Username: "dave", Name: "Dave", Score: 33, AchievedAt: time.Now()}
	if err := store.UpsertEntry(context.Background(), entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	resp, err := http.Get(server.URL + "/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Entries []domain.LeaderboardEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Username != "dave" {
		t.Fatalf("unexpected leaderboard: %+v", body.Entries)
	}
}

// --- helpers ---

func newTestServer(t *testing.T, opts ...app.Option) (*httptest.Server, *memory.GameStore) {
	t.Helper()
	store := memory.NewGameStore()
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader([]domain.Question{
		{ID: 1, Text: "What is 2 + 2?", Options: [4]string{"3", "4", "5", "6"}, CorrectOption: 2},
	}), time.Minute)
	registry := memory.NewSessionRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/play", NewPlayHandler(store, catalog, registry, opts...).ServeWS)
	mux.Handle("/leaderboard", NewLeaderboardHandler(store))
	return httptest.NewServer(mux), store
}

func dial(t *testing.T, server *httptest.Server, username string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/play?username=" + username + "&name=" + username + "&phone=555-0100"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func writeJSON(conn *websocket.Conn, t *testing.T, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// readUntil skips frames (such as ticks) until the wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, want string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 50; i++ {
		msgType, payload := readNext(conn, t, "")
		if msgType == want {
			return msgType, payload
		}
	}
	t.Fatalf("never received a %s frame", want)
	return "", nil
}
