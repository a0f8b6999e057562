package app_test

import (
	"testing"
	"time"

	"quiztap-service/internal/app"
)

func TestScoreCorrectAnswers(t *testing.T) {
	cases := []struct {
		name    string
		latency time.Duration
		want    int
	}{
		{"instant answer gets full bonus", 0, 20},
		{"two seconds", 2 * time.Second, 18},
		{"bonus rounds to nearest", 5500 * time.Millisecond, 15},
		{"just inside the window", 9400 * time.Millisecond, 11},
		{"exactly ten seconds earns no bonus", 10 * time.Second, 10},
		{"slow answer gets base only", 25 * time.Second, 10},
		{"very slow answer still gets base", 10 * time.Minute, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := app.Score(true, tc.latency); got != tc.want {
				t.Fatalf("Score(true, %v) = %d, want %d", tc.latency, got, tc.want)
			}
		})
	}
}

func TestScoreWrongAnswerIsFlatPenalty(t *testing.T) {
	for _, latency := range []time.Duration{0, time.Second, 10 * time.Second, time.Minute} {
		if got := app.Score(false, latency); got != -5 {
			t.Fatalf("Score(false, %v) = %d, want -5", latency, got)
		}
	}
}

func TestScoreLinearInsideWindow(t *testing.T) {
	// score(correct, L) == 10 + round(10-L) for L in [0,10].
	for secs := 0; secs <= 10; secs++ {
		want := 10 + (10 - secs)
		if got := app.Score(true, time.Duration(secs)*time.Second); got != want {
			t.Fatalf("Score(true, %ds) = %d, want %d", secs, got, want)
		}
	}
}
