package validate

import "testing"

func TestWeakPassword(t *testing.T) {
	tests := []struct {
		pw   string
		weak bool
	}{
		{"Secret123", false},
		{"Abcdefg1", false},
		{"Abcdefghijklmnopqr12", false},
		{"Abcdefghijklmnopqr123", true}, // 21 chars
		{"Abc1234", true},               // 7 chars
		{"secret123", true},             // no upper
		{"SECRET123", true},             // no lower
		{"SecretPass", true},            // no digit
		{"Secret 123", true},            // space
		{"Secret\t123", true},           // tab
		{"", true},
		{"Pässwörd12", false},
	}
	for _, tt := range tests {
		if got := WeakPassword(tt.pw); got != tt.weak {
			t.Fatalf("WeakPassword(%q) = %v, want %v", tt.pw, got, tt.weak)
		}
	}
}
