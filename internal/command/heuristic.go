package command

import (
	"regexp"
	"strings"
)

var (
	callingVerbs = []string{"call", "dial", "ring", "phone"}

	// digitRunPattern finds phone-number-looking runs: digits possibly broken
	// up by spaces, dots, dashes and parentheses.
	digitRunPattern = regexp.MustCompile(`\+?\d[\d\s().\-]*\d|\d`)
	nonDigit        = regexp.MustCompile(`\D`)
)

// heuristicParse is the deterministic fallback used whenever the language
// oracle is unavailable. A calling verb plus a digit run long enough to be a
// phone number is a call-number command; a calling verb alone is call-all;
// anything else is unrecognized.
func heuristicParse(text string) Intent {
	lower := strings.ToLower(text)

	hasVerb := false
	for _, v := range callingVerbs {
		if containsWord(lower, v) {
			hasVerb = true
			break
		}
	}
	if !hasVerb {
		return Intent{Kind: ActionUnrecognized}
	}

	for _, run := range digitRunPattern.FindAllString(text, -1) {
		digits := nonDigit.ReplaceAllString(run, "")
		if len(digits) >= 10 {
			return Intent{Kind: ActionCallNumber, Number: digits}
		}
	}
	return Intent{Kind: ActionCallAll}
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(text[start-1])
		afterOK := end == len(text) || !isLetter(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
