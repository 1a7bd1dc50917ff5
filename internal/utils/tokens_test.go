package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/keiba-ai/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short", "hi", 1},
		{"ascii", strings.Repeat("a", 4000), 1000},
		{"japanese", "有馬記念", 4},
		{"mixed", "馬番 1234", 3},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("abcd ", 1000)
	trunc := utils.TruncateToTokenLimit(text, 300)
	if n := utils.CountTokens(trunc); n > 300 {
		t.Fatalf("tokens=%d exceeds limit", n)
	}
	if len(trunc) == 0 {
		t.Fatalf("expected non-empty truncation")
	}

	jp := strings.Repeat("馬", 50)
	if got := utils.TruncateToTokenLimit(jp, 10); got != strings.Repeat("馬", 10) {
		t.Fatalf("unexpected CJK truncation: %q", got)
	}
	if got := utils.TruncateToTokenLimit("short", 10); got != "short" {
		t.Fatalf("text under the limit must be unchanged: %q", got)
	}
	if utils.TruncateToTokenLimit("x", 0) != "" {
		t.Fatalf("zero limit should yield empty string")
	}
}

func TestTokenBreakdown(t *testing.T) {
	got := utils.TokenBreakdown(map[string]string{"a": "有馬", "b": ""})
	if got["a"] != 2 || got["b"] != 0 {
		t.Fatalf("unexpected breakdown: %v", got)
	}
}
