package page

import (
	"errors"
	"testing"
)

func TestParseRound_Live(t *testing.T) {
	r, err := ParseRound(fixture(t, "round_live.json"))
	if err != nil {
		t.Fatalf("ParseRound: %v", err)
	}
	if r.DefenderScore != 1234567 || r.AttackerScore != 765433 {
		t.Errorf("scores = %d/%d", r.DefenderScore, r.AttackerScore)
	}
	if r.TotalScore != 2000000 {
		t.Errorf("TotalScore = %d, want 2000000", r.TotalScore)
	}
	if r.RemainingSeconds != 650 {
		t.Errorf("RemainingSeconds = %d, want 650", r.RemainingSeconds)
	}
	if r.Ended() {
		t.Error("Ended() = true for a live round")
	}
	if got := r.Percentage("attacker"); got < 38.27 || got > 38.28 {
		t.Errorf("Percentage(attacker) = %v, want ~38.27", got)
	}
	if r.Winner() != "defender" {
		t.Errorf("Winner() = %q, want defender", r.Winner())
	}
}

func TestParseRound_EndedTie(t *testing.T) {
	r, err := ParseRound(fixture(t, "round_ended.json"))
	if err != nil {
		t.Fatalf("ParseRound: %v", err)
	}
	if !r.Ended() {
		t.Error("Ended() = false, want true")
	}
	if r.Winner() != "defender" {
		t.Errorf("Winner() on tie = %q, want defender", r.Winner())
	}
}

func TestParseRound_ZeroTotal(t *testing.T) {
	r, err := ParseRound(fixture(t, "round_empty.json"))
	if err != nil {
		t.Fatalf("ParseRound: %v", err)
	}
	if r.TotalScore != 0 {
		t.Errorf("TotalScore = %d, want 0", r.TotalScore)
	}
	if got := r.Percentage("defender"); got != 0 {
		t.Errorf("Percentage on zero total = %v, want 0", got)
	}
}

func TestParseRound_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json error", `{"error":"Round is over"}`, "Round is over"},
		{"html banner", fixture(t, "round_error.html"), "No battle with this id"},
		{"not found text", "<html><body><p>Battle not found</p></body></html>", "Battle not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRound(tt.body)
			se, ok := IsSiteError(err)
			if !ok {
				t.Fatalf("err = %v, want SiteError", err)
			}
			if se.Message != tt.want {
				t.Errorf("Message = %q, want %q", se.Message, tt.want)
			}
		})
	}

	if _, err := ParseRound(fixture(t, "not_logged_in.html")); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("login page: err = %v, want ErrNotLoggedIn", err)
	}
	var pe *ParseError
	if _, err := ParseRound(`{"defenderScore":1}`); !errors.As(err, &pe) {
		t.Errorf("missing remaining: err = %v, want ParseError", err)
	}
}
