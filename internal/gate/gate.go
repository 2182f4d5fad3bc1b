// Package gate decides what a finished transcript means for the conversation:
// wake up, hang up, forward a query, or nothing at all.
package gate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"zedvoice/internal/domain"
)

// Action is the outcome of evaluating one transcript.
type Action string

const (
	ActionEnd         Action = "end-conversation"
	ActionActivate    Action = "activate"
	ActionAcknowledge Action = "acknowledge"
	ActionIgnore      Action = "ignore"
	ActionDispatch    Action = "dispatch"
)

const DefaultMinQueryLength = 3

// DefaultWakePhrases tolerate the usual transcription noise on "zed".
func DefaultWakePhrases() []string {
	return []string{
		"hey zed", "hey, zed", "hey zedd", "hey zad", "hey zet", "hey said",
		"hey set", "heyzed", "hey z.", "hey z", "a zed", "hey fed",
	}
}

// DefaultEndPhrases close an active conversation.
func DefaultEndPhrases() []string {
	return []string{
		"thank you zed", "thanks zed", "goodbye zed", "bye zed", "goodbye",
		"i'm done", "im done", "end session", "stop session",
	}
}

type Config struct {
	WakePhrases    []string
	EndPhrases     []string
	MinQueryLength int
}

// Decision carries the action plus the text to send, if any. Phrase is the
// matched wake or end variant.
type Decision struct {
	Action  Action
	Payload string
	Phrase  string
}

// Gate is immutable after construction and safe for concurrent use.
type Gate struct {
	wake           []string
	end            []string
	minQueryLength int
}

func New(cfg Config) *Gate {
	wake := normalizePhrases(cfg.WakePhrases)
	if len(wake) == 0 {
		wake = normalizePhrases(DefaultWakePhrases())
	}
	end := normalizePhrases(cfg.EndPhrases)
	if len(end) == 0 {
		end = normalizePhrases(DefaultEndPhrases())
	}
	minLen := cfg.MinQueryLength
	if minLen <= 0 {
		minLen = DefaultMinQueryLength
	}
	return &Gate{wake: wake, end: end, minQueryLength: minLen}
}

func normalizePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Evaluate applies, in order: end phrase in any state, wake phrase while
// waiting, ignore while waiting, dispatch while active.
func (g *Gate) Evaluate(text string, state domain.ConversationState) Decision {
	text = strings.TrimSpace(text)
	lowered := strings.ToLower(text)

	if phrase, _, ok := earliestMatch(lowered, g.end); ok {
		return Decision{Action: ActionEnd, Payload: text, Phrase: phrase}
	}

	if state == domain.ConversationActive {
		return Decision{Action: ActionDispatch, Payload: text}
	}

	phrase, at, ok := earliestMatch(lowered, g.wake)
	if !ok {
		return Decision{Action: ActionIgnore}
	}

	source := text
	if len(lowered) != len(text) {
		// Lowering changed byte offsets; fall back to the lowered form.
		source = lowered
	}
	payload := trimLeadingNoise(source[at+len(phrase):])
	if utf8.RuneCountInString(payload) < g.minQueryLength {
		return Decision{Action: ActionAcknowledge, Phrase: phrase}
	}
	return Decision{Action: ActionActivate, Payload: payload, Phrase: phrase}
}

// earliestMatch finds the variant that starts first in text, preferring the
// longest one when several start at the same index. Variants only match on
// word boundaries, so "hey" never matches inside "they".
func earliestMatch(text string, phrases []string) (string, int, bool) {
	bestAt := -1
	best := ""
	for _, p := range phrases {
		at := indexWord(text, p)
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt || (at == bestAt && len(p) > len(best)) {
			bestAt = at
			best = p
		}
	}
	return best, bestAt, bestAt >= 0
}

// indexWord is strings.Index restricted to matches not glued to a letter or
// digit on either side.
func indexWord(text, phrase string) int {
	offset := 0
	for {
		at := strings.Index(text[offset:], phrase)
		if at < 0 {
			return -1
		}
		at += offset
		end := at + len(phrase)
		if boundaryBefore(text, at, phrase) && boundaryAfter(text, end, phrase) {
			return at
		}
		_, size := utf8.DecodeRuneInString(text[at:])
		offset = at + size
	}
}

func boundaryBefore(text string, at int, phrase string) bool {
	first, _ := utf8.DecodeRuneInString(phrase)
	if at == 0 || !isWordRune(first) {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:at])
	return !isWordRune(prev)
}

func boundaryAfter(text string, end int, phrase string) bool {
	last, _ := utf8.DecodeLastRuneInString(phrase)
	if end >= len(text) || !isWordRune(last) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(next)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func trimLeadingNoise(s string) string {
	return strings.TrimSpace(strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
}
