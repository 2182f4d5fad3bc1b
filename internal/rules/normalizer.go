// Package rules folds common speech-to-text misrecognitions into canonical
// text before transcripts reach the conversation gate.
//
// A rules file holds one rule per line:
//
//	hey said => hey zed
//	s/\bzed+\b/zed/g
//
// Blank lines and lines starting with # are skipped.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
)

const DefaultIterationLimit = 30

// ErrUnstable is returned when the rules keep rewriting each other past the iteration limit.
var ErrUnstable = errors.New("substitution rules did not settle")

// Rule is one compiled substitution.
type Rule struct {
	Line   int
	Source string

	re          *regexp.Regexp
	replacement string
	firstOnly   bool
}

func (r Rule) apply(input string) string {
	if !r.firstOnly {
		return r.re.ReplaceAllString(input, r.replacement)
	}
	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input
	}
	var out []byte
	out = r.re.ExpandString(out, r.replacement, input, loc)
	return input[:loc[0]] + string(out) + input[loc[1]:]
}

// Normalizer applies rules until the text stops changing.
type Normalizer struct {
	rules          []Rule
	iterationLimit int
}

func NewNormalizer(rules []Rule, iterationLimit int) *Normalizer {
	if iterationLimit <= 0 {
		iterationLimit = DefaultIterationLimit
	}
	return &Normalizer{rules: rules, iterationLimit: iterationLimit}
}

// Load reads a rules file and appends its rules after the built-in ones.
// A missing file or an empty path yields a normalizer with only the built-ins.
func Load(path string, iterationLimit int) (*Normalizer, error) {
	all := BuiltinRules()
	path = strings.TrimSpace(path)
	if path == "" {
		return NewNormalizer(all, iterationLimit), nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewNormalizer(all, iterationLimit), nil
		}
		return nil, fmt.Errorf("open rules file %q: %w", path, err)
	}
	defer file.Close()

	parsed, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return NewNormalizer(append(all, parsed...), iterationLimit), nil
}

// BuiltinRules fold spelled-out forms of the assistant's name.
func BuiltinRules() []Rule {
	builtins := []string{
		`s/\bz\.?\s+e\.?\s+d\b\.?/zed/g`,
		`s/\bzedd\b/zed/g`,
	}
	out := make([]Rule, 0, len(builtins))
	for _, line := range builtins {
		rule, err := parseLine(line)
		if err != nil {
			panic(fmt.Sprintf("builtin rule %q: %v", line, err))
		}
		out = append(out, rule)
	}
	return out
}

// Parse compiles every rule in r.
func Parse(r io.Reader) ([]Rule, error) {
	var out []Rule
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rule.Line = lineNo
		out = append(out, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return out, nil
}

// Apply rewrites text and collapses runs of whitespace. On ErrUnstable the
// text from the last pass is still returned.
func (n *Normalizer) Apply(text string) (string, error) {
	result := collapseSpace(text)
	if n == nil || len(n.rules) == 0 {
		return result, nil
	}

	for pass := 0; pass < n.iterationLimit; pass++ {
		before := result
		for _, rule := range n.rules {
			result = rule.apply(result)
		}
		result = collapseSpace(result)
		if result == before {
			return result, nil
		}
	}
	return result, fmt.Errorf("%w after %d passes", ErrUnstable, n.iterationLimit)
}

// Len reports how many rules are loaded, built-ins included.
func (n *Normalizer) Len() int {
	if n == nil {
		return 0
	}
	return len(n.rules)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseLine(line string) (Rule, error) {
	if isRegexRule(line) {
		return parseRegex(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteral(line)
	}
	return Rule{}, errors.New("unsupported rule format")
}

// parseLiteral builds a case-insensitive rule. Word boundaries are added on
// whichever side of the source ends in a word character, so "zed" never
// rewrites the inside of "zedong".
func parseLiteral(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return Rule{}, errors.New("literal rule source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if isWordRune(firstRune(from)) {
		pattern = `\b` + pattern
	}
	if isWordRune(lastRune(from)) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid literal source: %w", err)
	}
	return Rule{
		Source:      line,
		re:          re,
		replacement: strings.ReplaceAll(to, "$", "$$"),
	}, nil
}

func parseRegex(line string) (Rule, error) {
	delim := line[1]
	pattern, next, err := readDelimited(line, 2, delim)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, next, err := readDelimited(line, next, delim)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid regex replacement: %w", err)
	}

	global := false
	inline := "i"
	for _, flag := range strings.TrimSpace(line[next:]) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			inline += string(flag)
		case ' ':
		default:
			return Rule{}, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid regex: %w", err)
	}
	return Rule{Source: line, re: re, replacement: replacement, firstOnly: !global}, nil
}

// readDelimited returns the text up to the next unescaped delim. An escaped
// delimiter loses its backslash; other escapes are kept for the regex engine.
func readDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}
	var b strings.Builder
	for i := start; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) {
			if line[i+1] == delim {
				b.WriteByte(delim)
			} else {
				b.WriteByte(c)
				b.WriteByte(line[i+1])
			}
			i++
			continue
		}
		if c == delim {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated expression")
}

func isRegexRule(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	d := rune(line[1])
	return d < unicode.MaxASCII && !isWordRune(d) && !unicode.IsSpace(d)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	r := []rune(s)
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}
