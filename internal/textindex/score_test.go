package textindex

import "testing"

func TestScore_Ladder(t *testing.T) {
	tests := []struct {
		q, n string
		want int
	}{
		{"config", "config", ScoreExact},
		{"conf", "config", ScorePrefix},
		{"fig", "config", ScoreContains},
		{"gun", "getUserName", ScoreAbbrev},
		{"xyz", "config", 0},
	}
	for _, tt := range tests {
		if got := Score(tt.q, tt.n, false); got != tt.want {
			t.Errorf("Score(%q, %q) = %d, want %d", tt.q, tt.n, got, tt.want)
		}
	}
}

func TestScore_Monotone(t *testing.T) {
	exact := Score("config", "config", false)
	prefix := Score("conf", "config", false)
	contains := Score("fig", "config", false)
	abbrev := Score("gun", "getUserName", false)
	fuzzy := Score("cnfg", "config", false)
	none := Score("zzz", "config", false)

	if !(exact > prefix && prefix > contains && contains > abbrev && abbrev > fuzzy && fuzzy > none) {
		t.Errorf("ladder not monotone: exact=%d prefix=%d contains=%d abbrev=%d fuzzy=%d none=%d",
			exact, prefix, contains, abbrev, fuzzy, none)
	}
}

func TestScore_EmptyInputs(t *testing.T) {
	if got := Score("", "config", false); got != 0 {
		t.Errorf("Score(\"\", config) = %d, want 0", got)
	}
	if got := Score("c", "", false); got != 0 {
		t.Errorf("Score(c, \"\") = %d, want 0", got)
	}
}
