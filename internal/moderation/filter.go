// Package moderation provides content filtering for chat messages. It
// screens text for prohibited terms, phrases, and spam patterns, and
// produces a cleaned rendition for relay. The filter is built once at
// process start and is safe for concurrent use.
package moderation

import (
	"regexp"
	"strings"
)

// FilterResult describes the outcome of screening a message.
type FilterResult struct {
	Blocked bool   // the message contained prohibited content
	Reason  string // "blocked_keyword", "blocked_phrase", or "spam_pattern"
	Term    string // the term or check that matched
}

// defaultTerms is the built-in block list. Deployments extend it via
// NewFilterWithTerms; entries containing a space are matched as phrases.
var defaultTerms = []string{
	"kill yourself",
	"go die",
	"kys",
	"rape",
	"child porn",
	"buy followers",
	"free crypto",
	"send nudes",
	"cam show",
	"escort service",
}

// leetMap maps common character substitutions back to their letters so that
// trivially obfuscated terms ("b@dw0rd") are still caught.
var leetMap = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'@': 'a',
	'$': 's',
	'!': 'i',
}

// tokenPattern locates whitespace-delimited tokens with their positions in
// the original text, so matched terms can be masked in place.
var tokenPattern = regexp.MustCompile(`\S+`)

// Filter holds the normalized block lists.
type Filter struct {
	words   map[string]bool // single-token terms
	phrases [][]string      // multi-token terms as normalized token sequences
}

// NewFilter creates a Filter with the built-in term list.
func NewFilter() *Filter {
	return NewFilterWithTerms(defaultTerms)
}

// NewFilterWithTerms creates a Filter from an explicit term list. Terms with
// spaces are matched as consecutive-token phrases, everything else as whole
// tokens.
func NewFilterWithTerms(terms []string) *Filter {
	f := &Filter{words: make(map[string]bool)}
	for _, term := range terms {
		norm := strings.Fields(strings.ToLower(term))
		switch len(norm) {
		case 0:
		case 1:
			f.words[norm[0]] = true
		default:
			f.phrases = append(f.phrases, norm)
		}
	}
	return f
}

// normalizeVariants lower-cases a token and produces the two renditions the
// matcher compares against the block list. The plain form drops every rune
// that is not a letter or digit, so "badword!" matches "badword"; the leet
// form undoes substitutions in place, so "offens!ve" matches "offensive".
// A single pass cannot do both because '!' means different things in the two
// readings.
func normalizeVariants(tok string) (plain, leet string) {
	var p, l strings.Builder
	p.Grow(len(tok))
	l.Grow(len(tok))
	for _, r := range strings.ToLower(tok) {
		if mapped, ok := leetMap[r]; ok {
			l.WriteRune(mapped)
		} else {
			l.WriteRune(r)
		}
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			p.WriteRune(r)
		}
	}
	return p.String(), l.String()
}

// Check screens text and returns the first prohibited term found, or a
// zero-value result for clean text. Matching is token-exact: "badwording"
// does not match "badword".
func (f *Filter) Check(text string) FilterResult {
	tokens := tokenPattern.FindAllString(text, -1)
	plain := make([]string, len(tokens))
	leet := make([]string, len(tokens))
	for i, tok := range tokens {
		plain[i], leet[i] = normalizeVariants(tok)
	}

	for i := range tokens {
		if f.words[plain[i]] {
			return FilterResult{Blocked: true, Reason: "blocked_keyword", Term: plain[i]}
		}
		if f.words[leet[i]] {
			return FilterResult{Blocked: true, Reason: "blocked_keyword", Term: leet[i]}
		}
		for _, phrase := range f.phrases {
			if matchesPhrase(plain, i, phrase) || matchesPhrase(leet, i, phrase) {
				return FilterResult{
					Blocked: true,
					Reason:  "blocked_phrase",
					Term:    strings.Join(phrase, " "),
				}
			}
		}
	}

	return f.checkSpamPatterns(text)
}

// matchesPhrase reports whether the normalized token sequence starting at i
// equals the phrase.
func matchesPhrase(norm []string, i int, phrase []string) bool {
	if i+len(phrase) > len(norm) {
		return false
	}
	for j, p := range phrase {
		if norm[i+j] != p {
			return false
		}
	}
	return true
}

// Sanitize is the relay-facing entry point: it returns the text with every
// prohibited term, phrase, URL, and phone number masked by asterisks, and
// whether anything was masked or flagged. Flood patterns flag the message
// without altering it.
func (f *Filter) Sanitize(text string) (string, bool) {
	triggered := false

	spans := tokenPattern.FindAllStringIndex(text, -1)
	plain := make([]string, len(spans))
	leet := make([]string, len(spans))
	for i, sp := range spans {
		plain[i], leet[i] = normalizeVariants(text[sp[0]:sp[1]])
	}

	// Collect the token spans to mask.
	masked := make([]bool, len(spans))
	for i := range spans {
		if f.words[plain[i]] || f.words[leet[i]] {
			masked[i] = true
			triggered = true
			continue
		}
		for _, phrase := range f.phrases {
			if matchesPhrase(plain, i, phrase) || matchesPhrase(leet, i, phrase) {
				for j := range phrase {
					masked[i+j] = true
				}
				triggered = true
			}
		}
	}

	out := []byte(text)
	for i, sp := range spans {
		if !masked[i] {
			continue
		}
		for k := sp[0]; k < sp[1]; k++ {
			out[k] = '*'
		}
	}

	clean, spamHit := maskSpam(string(out))
	if spamHit {
		triggered = true
	}

	// Floods flag without masking: there is nothing meaningful to redact.
	if !triggered && (hasCharFlood(clean) || hasWordFlood(clean)) {
		triggered = true
	}

	return clean, triggered
}
