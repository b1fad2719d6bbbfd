package vocabulary

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const defaultIterationLimit = 30

// File is the on-disk vocabulary format.
//
//	terms:
//	  - from: kuber netties
//	    to: Kubernetes
//	patterns:
//	  - match: '\bdeep\s*gram\b'
//	    replace: Deepgram
//	    case_sensitive: false
//	    first_only: false
type File struct {
	Terms    []Term    `yaml:"terms"`
	Patterns []Pattern `yaml:"patterns"`
}

// Term is a literal phrase replacement matched case-insensitively on word
// boundaries.
type Term struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Pattern is a regular expression replacement. Replace may reference groups
// with $1 or ${name}.
type Pattern struct {
	Match         string `yaml:"match"`
	Replace       string `yaml:"replace"`
	CaseSensitive bool   `yaml:"case_sensitive"`
	FirstOnly     bool   `yaml:"first_only"`
}

type rule interface {
	apply(input string) (string, bool)
}

// Corrector applies deterministic vocabulary substitutions to transcript
// fragments. A zero-rule Corrector returns text unchanged.
type Corrector struct {
	rules          []rule
	iterationLimit int
}

// Load reads a vocabulary file. A blank path or a missing file yields an
// empty Corrector.
func Load(path string, iterationLimit int) (*Corrector, error) {
	if strings.TrimSpace(path) == "" {
		return New(File{}, iterationLimit)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(File{}, iterationLimit)
		}
		return nil, fmt.Errorf("read vocabulary file %q: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary file %q: %w", path, err)
	}

	corrector, err := New(file, iterationLimit)
	if err != nil {
		return nil, fmt.Errorf("vocabulary file %q: %w", path, err)
	}
	return corrector, nil
}

// New compiles file into a Corrector. Terms apply before patterns.
func New(file File, iterationLimit int) (*Corrector, error) {
	if iterationLimit <= 0 {
		iterationLimit = defaultIterationLimit
	}

	rules := make([]rule, 0, len(file.Terms)+len(file.Patterns))
	for i, term := range file.Terms {
		r, err := compileTerm(term)
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	for i, pattern := range file.Patterns {
		r, err := compilePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}

	return &Corrector{rules: rules, iterationLimit: iterationLimit}, nil
}

// Len returns the number of compiled rules.
func (c *Corrector) Len() int {
	return len(c.rules)
}

// Apply rewrites text until no rule changes it or the iteration limit is hit.
func (c *Corrector) Apply(text string) (string, error) {
	if len(c.rules) == 0 || text == "" {
		return text, nil
	}

	result := text
	for i := 0; i < c.iterationLimit; i++ {
		changed := false
		for _, r := range c.rules {
			next, ruleChanged := r.apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}

type literalRule struct {
	re          *regexp.Regexp
	replacement string
}

func compileTerm(term Term) (rule, error) {
	from := strings.TrimSpace(term.From)
	if from == "" {
		return nil, errors.New("term source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if first, _ := utf8.DecodeRuneInString(from); isWordRune(first) {
		pattern = `\b` + pattern
	}
	if last, _ := utf8.DecodeLastRuneInString(from); isWordRune(last) {
		pattern += `\b`
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid term source: %w", err)
	}
	return literalRule{re: re, replacement: strings.TrimSpace(term.To)}, nil
}

func (r literalRule) apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

type patternRule struct {
	re          *regexp.Regexp
	replacement string
	firstOnly   bool
}

func compilePattern(p Pattern) (rule, error) {
	if strings.TrimSpace(p.Match) == "" {
		return nil, errors.New("pattern cannot be empty")
	}
	expr := p.Match
	if !p.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return patternRule{re: re, replacement: p.Replace, firstOnly: p.FirstOnly}, nil
}

func (r patternRule) apply(input string) (string, bool) {
	if !r.firstOnly {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

// isWordRune mirrors the ASCII word class used by \b.
func isWordRune(r rune) bool {
	return r == '_' || r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
