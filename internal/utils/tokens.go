package utils

// Token estimation for prompt budgeting. ASCII text averages about four
// characters per token; CJK text is closer to one token per character.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	ascii, wide := 0, 0
	for _, r := range text {
		if r < 0x80 {
			ascii++
		} else {
			wide++
		}
	}
	tokens := ascii/4 + wide
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text at the last rune that keeps the estimate
// within limit.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if CountTokens(text) <= limit {
		return text
	}
	ascii, wide := 0, 0
	for i, r := range text {
		if r < 0x80 {
			ascii++
		} else {
			wide++
		}
		if ascii/4+wide > limit {
			return text[:i]
		}
	}
	return text
}

// TokenBreakdown returns a simple breakdown map of labeled sections to token counts.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}
