package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Verbosity is the user's preferred answer length.
type Verbosity string

const (
	VerbosityConcise  Verbosity = "concise"
	VerbosityBalanced Verbosity = "balanced"
	VerbosityDetailed Verbosity = "detailed"
)

// Token budget tiers, smallest to largest.
const (
	BudgetGreeting = 150
	BudgetBrief    = 350
	BudgetMedium   = 600
	BudgetLong     = 900
	BudgetIntro    = 800
	BudgetDepth    = 1400
)

const greetingMaxWords = 4

var (
	greetingWords = map[string]bool{
		"hi": true, "hello": true, "hey": true, "thanks": true, "thank": true,
		"ok": true, "okay": true, "yes": true, "yeah": true, "no": true,
		"sure": true, "great": true, "cool": true, "right": true, "morning": true,
		"afternoon": true, "evening": true, "good": true, "nice": true, "hmm": true,
	}
	brevityPhrases = []string{"briefly", "in short", "quick", "one sentence", "summarize", "short answer", "tl;dr"}
	introPhrases   = []string{"introduce yourself", "tell me about yourself", "walk me through your resume", "walk me through your background"}
	// A trailing * matches any word continuing the stem.
	depthPhrases = []string{"architect*", "system design", "tell me about a time", "describe a time", "trade-off*", "tradeoff*", "deep dive", "scalab*"}
)

// ParseVerbosity maps a preference string onto a tier, defaulting to balanced.
func ParseVerbosity(value string) Verbosity {
	switch Verbosity(strings.ToLower(strings.TrimSpace(value))) {
	case VerbosityConcise:
		return VerbosityConcise
	case VerbosityDetailed:
		return VerbosityDetailed
	default:
		return VerbosityBalanced
	}
}

// TokenBudget picks the generation max_tokens for snippet. Keyword tiers win
// over maxLines, and maxLines wins over verbosity. maxLines of zero means the
// user set no line preference.
func TokenBudget(snippet string, maxLines int, verbosity Verbosity) int {
	text := strings.ToLower(strings.TrimSpace(snippet))

	switch {
	case isGreeting(text):
		return BudgetGreeting
	case containsAny(text, depthPhrases):
		return BudgetDepth
	case containsAny(text, brevityPhrases):
		return BudgetBrief
	case containsAny(text, introPhrases):
		return BudgetIntro
	}

	switch {
	case maxLines > 30:
		return BudgetLong
	case maxLines > 17:
		return BudgetMedium
	case maxLines > 0:
		return BudgetBrief
	}

	switch verbosity {
	case VerbosityConcise:
		return BudgetBrief
	case VerbosityDetailed:
		return BudgetLong
	default:
		return BudgetMedium
	}
}

func isGreeting(text string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r != '\''
	})
	if len(words) == 0 || len(words) > greetingMaxWords {
		return false
	}
	for _, w := range words {
		if !greetingWords[w] {
			return false
		}
	}
	return true
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return true
		}
	}
	return false
}

// containsPhrase matches phrase only at word boundaries in text.
func containsPhrase(text, phrase string) bool {
	stem := strings.HasSuffix(phrase, "*")
	phrase = strings.TrimSuffix(phrase, "*")
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(phrase)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (stem || end == len(text) || !isWordRune(after)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
