package analyzer

import (
	"regexp"

	"github.com/cuemby/sentinel/pkg/types"
)

// Matcher decides whether a log line belongs to a category
type Matcher interface {
	Match(line string) bool
}

// RegexMatcher matches lines against a regular expression
type RegexMatcher struct {
	re *regexp.Regexp
}

// NewRegexMatcher compiles pattern case-insensitively
func NewRegexMatcher(pattern string) (*RegexMatcher, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	return &RegexMatcher{re: re}, nil
}

// MustRegexMatcher is NewRegexMatcher for patterns known to compile
func MustRegexMatcher(pattern string) *RegexMatcher {
	m, err := NewRegexMatcher(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *RegexMatcher) Match(line string) bool {
	return m.re.MatchString(line)
}

// Signature pairs a category with its matcher
type Signature struct {
	Category types.ErrorCategory
	Matcher  Matcher
}

// DefaultSignatures returns the built-in signatures in evaluation order.
// Earlier entries win when a line matches several.
func DefaultSignatures() []Signature {
	return []Signature{
		{types.CategoryOutOfMemory, MustRegexMatcher(`out of memory|oom[- ]?kill|cannot allocate memory|memory exhausted`)},
		{types.CategoryTimeout, MustRegexMatcher(`timed out|timeout|deadline exceeded`)},
		{types.CategoryConnectionError, MustRegexMatcher(`connection (refused|reset)|econnrefused|econnreset|broken pipe`)},
		{types.CategoryConfigError, MustRegexMatcher(`config(uration)?( file)? (error|invalid)|invalid config|parse error|syntax error`)},
		{types.CategoryPermissionDenied, MustRegexMatcher(`permission denied|operation not permitted|eacces`)},
		{types.CategoryDiskFull, MustRegexMatcher(`no space left on device|disk (is )?full|enospc`)},
		{types.CategoryNetworkUnreachable, MustRegexMatcher(`network (is )?unreachable|no route to host|host unreachable|enetunreach`)},
		{types.CategoryFatal, MustRegexMatcher(`\b(fatal|critical|panic)\b`)},
	}
}

// Classify returns the category of the first signature matching line
func Classify(signatures []Signature, line string) (types.ErrorCategory, bool) {
	for _, s := range signatures {
		if s.Matcher.Match(line) {
			return s.Category, true
		}
	}
	return "", false
}
