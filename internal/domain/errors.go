package domain

import "errors"

var (
	// ErrEmptyCatalog is returned when the question catalog has no entries;
	// a session cannot start without questions.
	ErrEmptyCatalog = errors.New("question catalog is empty")
	// ErrSessionCreate indicates the session row could not be created.
	ErrSessionCreate = errors.New("quiz session could not be created")
	// ErrSessionFinished is returned when an answer arrives after termination.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrNoActiveQuestion is returned when there is no question left to answer.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrLeaderboardUpsert indicates the participant's leaderboard entry could
	// not be confirmed; their placement is unknown.
	ErrLeaderboardUpsert = errors.New("leaderboard entry could not be confirmed")
	// ErrLeaderboardRead indicates the ranked view could not be fetched.
	ErrLeaderboardRead = errors.New("leaderboard could not be read")
)
