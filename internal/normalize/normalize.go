// Package normalize reduces raw bank merchant/description text to a
// stable, uppercase matching key. Bank exports bury the merchant under
// register prefixes ("POS DEBIT ..."), masked card numbers ("****1234",
// "#4821") and trailing location codes ("WA 98109"); the key strips all
// of that so repeated imports of the same merchant match the same rule.
package normalize

import (
	"regexp"
	"strings"
)

// Prefixes stripped from the start of the string, case-insensitively,
// until none match. Order matters only for the multi-word entry.
var noisePrefixes = []string{
	"card purchase",
	"pos",
	"debit",
	"purchase",
	"online",
	"visa",
	"mastercard",
}

var (
	// Runs of mask characters followed by 2-4 digits: "****1234", "XX89".
	maskedRunRe = regexp.MustCompile(`[*#xX]{2,}[0-9]{2,4}`)
	// A whole token that is a 4-digit card suffix, optionally behind
	// leftover mask characters: "4821", "#4821".
	maskedTokenRe = regexp.MustCompile(`^[*#xX]*[0-9]{4}$`)
	// Trailing "state code + ZIP" location fragment: "WA 98109(-1234)".
	locationRe = regexp.MustCompile(`\s[A-Za-z]{2}\s[0-9]{5}(-[0-9]{4})?$`)
)

// Key normalizes raw merchant text into a matching key. It is total
// (never fails, never returns empty for non-empty input) and idempotent.
func Key(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Removing a mask fragment can expose a prefix token ("**12 POS A")
	// and vice versa, so the whole pipeline loops to a fixed point.
	s := trimmed
	for {
		next := stripPrefixes(s)
		next = maskedRunRe.ReplaceAllString(next, "")
		next = dropMaskedTokens(next)
		next = stripLocation(next)
		next = strings.Join(strings.Fields(next), " ")
		if next == s {
			break
		}
		s = next
	}

	// Stripping everything means the input was nothing but noise; the
	// trimmed original is still a usable (if ugly) key.
	if s == "" {
		s = trimmed
	}
	return strings.ToUpper(s)
}

// stripPrefixes removes leading noise tokens until none match. Loops so
// stacked prefixes like "POS DEBIT AMAZON" reduce fully.
func stripPrefixes(s string) string {
	for {
		lower := strings.ToLower(s)
		stripped := false
		for _, p := range noisePrefixes {
			if strings.HasPrefix(lower, p+" ") {
				s = strings.TrimSpace(s[len(p)+1:])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

// stripLocation removes trailing state+ZIP fragments until none remain.
func stripLocation(s string) string {
	for {
		next := locationRe.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

// dropMaskedTokens removes whitespace-delimited tokens that look like a
// masked trailing card suffix.
func dropMaskedTokens(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if maskedTokenRe.MatchString(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
