package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"quiztap-service/internal/domain"
)

// DefaultCountdown is the session-wide deadline; it runs independently of
// per-question pace.
const DefaultCountdown = 90 * time.Second

// State tracks where a session is in its lifecycle.
type State int

const (
	StateInitializing State = iota
	StateInProgress
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateInProgress:
		return "in_progress"
	case StateTerminating:
		return "terminating"
	default:
		return "terminated"
	}
}

// Lifecycle drives one quiz attempt for one participant:
// Initializing -> InProgress -> Terminating -> Terminated. It owns the
// running score and the elapsed time; termination runs exactly once no
// matter whether the last answer or the countdown expiry triggers it.
type Lifecycle struct {
	store    GameStore
	catalog  CatalogRepository
	protocol *LeaderboardProtocol

	countdownTotal time.Duration
	tickEvery      time.Duration
	now            func() time.Time
	rnd            *rand.Rand

	mu          sync.Mutex
	state       State
	participant domain.Participant
	sessionID   int64
	questions   []domain.Question
	index       int
	score       int
	startedAt   time.Time
	shownAt     time.Time
	result      domain.RankedResult
	resultErr   error

	countdown *Countdown
	finishing atomic.Bool
	done      chan struct{}
	audit     sync.WaitGroup
}

// Option tweaks a Lifecycle; the defaults are production values.
type Option func(*Lifecycle)

// WithClock injects a deterministic time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// WithCountdown overrides the session deadline and tick interval.
func WithCountdown(total, tick time.Duration) Option {
	return func(l *Lifecycle) {
		l.countdownTotal = total
		l.tickEvery = tick
	}
}

// WithRand injects the shuffle source for deterministic question order.
func WithRand(rnd *rand.Rand) Option {
	return func(l *Lifecycle) { l.rnd = rnd }
}

func NewLifecycle(store GameStore, catalog CatalogRepository, participant domain.Participant, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:          store,
		catalog:        catalog,
		protocol:       NewLeaderboardProtocol(store),
		participant:    participant,
		countdownTotal: DefaultCountdown,
		tickEvery:      time.Second,
		now:            time.Now,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
		state:          StateInitializing,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start registers the player, loads and shuffles the catalog, creates the
// session row and arms the countdown. On failure the state machine does not
// advance and the caller is told; there is no retry here.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateInitializing {
		return domain.ErrSessionFinished
	}

	// Contact-row bookkeeping; not worth failing the whole attempt over.
	if err := l.store.RegisterPlayer(ctx, l.participant); err != nil {
		log.Printf("player upsert failed for %s: %v", l.participant.Username, err)
	}

	questions, err := l.catalog.Questions(ctx)
	if err != nil {
		return fmt.Errorf("load question catalog: %w", err)
	}
	if len(questions) == 0 {
		return domain.ErrEmptyCatalog
	}

	shuffled := make([]domain.Question, len(questions))
	copy(shuffled, questions)
	l.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	start := l.now()
	sessionID, err := l.store.CreateSession(ctx, l.participant.Username, start)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSessionCreate, err)
	}

	l.sessionID = sessionID
	l.questions = shuffled
	l.startedAt = start
	l.shownAt = start
	l.state = StateInProgress
	l.countdown = startCountdown(l.countdownTotal, l.tickEvery)

	go func() {
		select {
		case <-l.countdown.Expired():
			l.Expire(context.Background())
		case <-l.done:
		}
	}()
	return nil
}

// Current returns the question being presented plus its 0-based index and the
// total count.
func (l *Lifecycle) Current() (domain.Question, int, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateInProgress || l.index >= len(l.questions) {
		return domain.Question{}, 0, len(l.questions), false
	}
	return l.questions[l.index], l.index, len(l.questions), true
}

// AnswerOutcome summarizes one scored event for the caller.
type AnswerOutcome struct {
	QuestionID int64 `json:"questionId"`
	Correct    bool  `json:"correct"`
	Passed     bool  `json:"passed"`
	Delta      int   `json:"delta"`
	TotalScore int   `json:"totalScore"`
	Final      bool  `json:"final"`
}

// Submit scores the selected option (1-4) against the current question and
// advances. Answering the last question terminates the session.
func (l *Lifecycle) Submit(ctx context.Context, option int) (AnswerOutcome, error) {
	return l.answer(ctx, option, false)
}

// Pass skips the current question: zero points, recorded with the passed flag.
func (l *Lifecycle) Pass(ctx context.Context) (AnswerOutcome, error) {
	return l.answer(ctx, 0, true)
}

func (l *Lifecycle) answer(ctx context.Context, option int, passed bool) (AnswerOutcome, error) {
	l.mu.Lock()
	if l.state != StateInProgress {
		l.mu.Unlock()
		return AnswerOutcome{}, domain.ErrSessionFinished
	}
	if l.index >= len(l.questions) {
		l.mu.Unlock()
		return AnswerOutcome{}, domain.ErrNoActiveQuestion
	}

	q := l.questions[l.index]
	now := l.now()
	latency := now.Sub(l.shownAt)
	correct := false
	delta := 0
	if !passed {
		correct = option == q.CorrectOption
		delta = Score(correct, latency)
		l.score += delta
	}

	rec := domain.AnswerRecord{
		SessionID:      l.sessionID,
		QuestionID:     q.ID,
		SelectedOption: option,
		Correct:        correct,
		AnswerTime:     latency,
		Passed:         passed,
	}

	l.index++
	l.shownAt = now
	last := l.index >= len(l.questions)
	outcome := AnswerOutcome{
		QuestionID: q.ID,
		Correct:    correct,
		Passed:     passed,
		Delta:      delta,
		TotalScore: l.score,
		Final:      last,
	}
	l.mu.Unlock()

	l.recordAsync(rec)
	if last {
		l.finish(ctx)
	}
	return outcome, nil
}

// Expire force-terminates the session; the countdown goroutine calls this at
// zero. Safe to call repeatedly and in a race with the final answer: only the
// first trigger runs the termination protocol.
func (l *Lifecycle) Expire(ctx context.Context) {
	l.mu.Lock()
	started := l.state != StateInitializing
	l.mu.Unlock()
	if !started {
		return
	}
	l.finish(ctx)
}

func (l *Lifecycle) finish(ctx context.Context) {
	if !l.finishing.CompareAndSwap(false, true) {
		return
	}

	l.mu.Lock()
	l.state = StateTerminating
	sessionID := l.sessionID
	score := l.score
	duration := l.now().Sub(l.startedAt)
	participant := l.participant
	l.mu.Unlock()

	l.countdown.Stop()

	result, err := l.protocol.Finalize(ctx, sessionID, score, duration, participant)

	l.mu.Lock()
	l.result = result
	l.resultErr = err
	l.state = StateTerminated
	l.mu.Unlock()
	close(l.done)
}

// recordAsync appends the audit fact off the critical path. Failures are
// logged and swallowed; scoring has already happened.
func (l *Lifecycle) recordAsync(rec domain.AnswerRecord) {
	l.audit.Add(1)
	go func() {
		defer l.audit.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.store.RecordAnswer(ctx, rec); err != nil {
			log.Printf("answer record write failed (session %d, question %d): %v", rec.SessionID, rec.QuestionID, err)
		}
	}()
}

// Terminated is closed once the termination protocol has run.
func (l *Lifecycle) Terminated() <-chan struct{} { return l.done }

// Ticks streams countdown seconds remaining; nil before Start.
func (l *Lifecycle) Ticks() <-chan int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.countdown == nil {
		return nil
	}
	return l.countdown.Remaining()
}

// Score returns the running total; it may be negative.
func (l *Lifecycle) Score() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.score
}

// State reports the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Result returns the termination outcome; valid once Terminated is closed.
// The error, if any, is ErrLeaderboardUpsert or ErrLeaderboardRead; the
// RankedResult still carries the participant's final score either way.
func (l *Lifecycle) Result() (domain.RankedResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.resultErr
}

// Drain waits for outstanding audit-trail writes; used on shutdown so
// fire-and-forget inserts are not cut off mid-flight.
func (l *Lifecycle) Drain() { l.audit.Wait() }
