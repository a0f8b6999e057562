package domain

import "time"

// Participant is a registered quiz-taker.
type Participant struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// Question is an immutable catalog entry: four options, one correct index (1-4).
// The catalog is maintained out of band; the service only reads it.
type Question struct {
	ID            int64     `json:"id"`
	Text          string    `json:"text"`
	Options       [4]string `json:"options"`
	CorrectOption int       `json:"correctOption"`
}

// Session is one quiz attempt. TotalScore and DurationSeconds are written
// once more at termination; the row is never deleted.
type Session struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	StartTime       time.Time `json:"startTime"`
	TotalScore      int       `json:"totalScore"`
	DurationSeconds int       `json:"durationSeconds"`
}

// AnswerRecord is a write-once audit fact for a single question attempt.
// SelectedOption is zero when the participant passed.
type AnswerRecord struct {
	SessionID      int64
	QuestionID     int64
	SelectedOption int
	Correct        bool
	AnswerTime     time.Duration
	Passed         bool
}

// LeaderboardEntry is one row of the capped top-10 table. At most one entry
// exists per username; a later attempt replaces it.
type LeaderboardEntry struct {
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Score      int       `json:"score"`
	AchievedAt time.Time `json:"achievedAt"`
}

// RankedResult is what a finished session reports back to the caller.
// Rank is 1-based and zero when the participant did not make the top 10.
// LeaderboardOK is false when the ranked view could not be confirmed; the
// participant's locally computed FinalScore is still valid in that case.
type RankedResult struct {
	FinalScore      int                `json:"finalScore"`
	DurationSeconds int                `json:"durationSeconds"`
	Top10           []LeaderboardEntry `json:"top10,omitempty"`
	Rank            int                `json:"rank,omitempty"`
	Ranked          bool               `json:"ranked"`
	LeaderboardOK   bool               `json:"leaderboardOk"`
}
