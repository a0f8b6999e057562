package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quiztap-service/internal/app"
	"quiztap-service/internal/domain"
)

// PlayHandler drives one full quiz attempt over a websocket: it pushes
// question, tick and answerResult frames to the client and accepts answer and
// pass frames back. When the session terminates (last question or countdown
// expiry) it pushes a finished frame and closes the connection.
type PlayHandler struct {
	store    app.GameStore
	catalog  app.CatalogRepository
	registry app.SessionRegistry
	opts     []app.Option
	upgrader websocket.Upgrader
}

func NewPlayHandler(store app.GameStore, catalog app.CatalogRepository, registry app.SessionRegistry, opts ...app.Option) *PlayHandler {
	return &PlayHandler{
		store:    store,
		catalog:  catalog,
		registry: registry,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option int `json:"option"`
}

type questionPayload struct {
	Index   int       `json:"index"`
	Total   int       `json:"total"`
	Text    string    `json:"text"`
	Options [4]string `json:"options"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades the request and plays a session to completion.
func (h *PlayHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	name := r.URL.Query().Get("name")
	phone := r.URL.Query().Get("phone")
	if username == "" || name == "" {
		http.Error(w, "missing username or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	participant := domain.Participant{Username: username, Name: name, Phone: phone}
	lifecycle := app.NewLifecycle(h.store, h.catalog, participant, h.opts...)

	if !h.registry.Register(username, lifecycle) {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: "a session is already in progress for this username"}})
		return
	}
	defer h.registry.Unregister(username)

	if err := lifecycle.Start(r.Context()); err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: startErrorMessage(err)}})
		return
	}
	defer lifecycle.Drain()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
			if msg.Type == "finished" {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
				return
			}
		}
	}()

	push := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-closeSignals:
		case <-writerDone: // writer gave up on this connection
		}
	}

	// Countdown ticks for display; the expiry itself is handled inside the
	// lifecycle, not here.
	go func() {
		ticks := lifecycle.Ticks()
		for {
			select {
			case remaining := <-ticks:
				push(outboundMessage{Type: "tick", Payload: tickPayload{Remaining: remaining}})
			case <-lifecycle.Terminated():
				return
			case <-closeSignals:
				return
			}
		}
	}()

	// The reader is blocked in ReadJSON when the countdown expires; nudge it
	// out with a deadline so the finished frame can be written in order.
	go func() {
		select {
		case <-lifecycle.Terminated():
			_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		case <-closeSignals:
		}
	}()

	pushQuestion(push, lifecycle)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var outcome app.AnswerOutcome
		var submitErr error
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			outcome, submitErr = lifecycle.Submit(r.Context(), payload.Option)
		case "pass":
			outcome, submitErr = lifecycle.Pass(r.Context())
		default:
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
			continue
		}

		if submitErr != nil {
			if errors.Is(submitErr, domain.ErrSessionFinished) {
				break
			}
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: submitErr.Error()}})
			continue
		}

		push(outboundMessage{Type: "answerResult", Payload: outcome})
		if outcome.Final {
			break
		}
		pushQuestion(push, lifecycle)
	}

	// A dropped connection settles the attempt with the score so far; the
	// termination guard makes this a no-op when the session already ended.
	// Background context: the finalize writes must outlive the request.
	lifecycle.Expire(context.Background())
	<-lifecycle.Terminated()

	result, err := lifecycle.Result()
	if err != nil {
		log.Printf("session finalize for %s: %v", username, err)
	}
	push(outboundMessage{Type: "finished", Payload: result})

	// send is never closed: the writer exits by itself after the finished
	// frame, and the tick pump may still be holding a push.
	close(closeSignals)
	<-writerDone
}

// pushQuestion sends the current question without its correct-option index.
func pushQuestion(push func(outboundMessage), lifecycle *app.Lifecycle) {
	q, index, total, ok := lifecycle.Current()
	if !ok {
		return
	}
	push(outboundMessage{Type: "question", Payload: questionPayload{
		Index:   index,
		Total:   total,
		Text:    q.Text,
		Options: q.Options,
	}})
}

func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCatalog):
		return "no questions available, please contact the administrator"
	case errors.Is(err, domain.ErrSessionCreate):
		return "could not start the quiz, please try again"
	default:
		return err.Error()
	}
}
