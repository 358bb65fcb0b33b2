// Package dialect rewrites MySQL-flavored dump scripts into text that SQLite accepts.
//
// The rewrite is a fixed, ordered chain of whole-script regex substitutions.
// It is deliberately narrow: only the constructs listed in Rules are touched,
// and anything else (multi-column keys, ON UPDATE CURRENT_TIMESTAMP, backticked
// reserved words) passes through and may fail later at execution time.
// Running Normalize twice is not guaranteed to be a no-op.
package dialect

import (
	"regexp"

	"github.com/theirongolddev/dbchat/internal/errs"
)

// Rule is one step of the normalization chain.
type Rule struct {
	Name    string
	pattern *regexp.Regexp
	repl    string
}

// Apply runs the rule over the whole text.
func (r Rule) Apply(text string) string {
	return r.pattern.ReplaceAllString(text, r.repl)
}

// Count returns how many non-overlapping matches the rule has in text.
func (r Rule) Count(text string) int {
	return len(r.pattern.FindAllStringIndex(text, -1))
}

func strip(name, expr string) Rule {
	return Rule{Name: name, pattern: regexp.MustCompile(expr), repl: ""}
}

// Individual rules, exported so each can be exercised on its own.
var (
	CharacterSet   = strip("character-set", ` CHARACTER SET \w+`)
	Collate        = strip("collate", ` COLLATE=\w+`)
	Engine         = strip("engine", ` ENGINE=\w+`)
	DefaultCharset = strip("default-charset", ` DEFAULT CHARSET=\w+`)
	AutoIncrement  = strip("auto-increment", ` AUTO_INCREMENT`)

	// Only the single-column bracketed form; `KEY `idx` (`a`,`b`),` survives.
	SecondaryKey = strip("secondary-key", " KEY `\\w+` \\(`\\w+`\\),")
	ForeignKey   = strip("foreign-key", " CONSTRAINT `\\w+` FOREIGN KEY \\(`\\w+`\\) REFERENCES `\\w+` \\(`\\w+`\\),?")

	// Space-delimited on both sides. End of input also counts, so
	// "id int AUTO_INCREMENT" still becomes "id INTEGER" once the
	// AUTO_INCREMENT rule has run. "int," and "int)" are left alone.
	IntType = Rule{
		Name:    "int-type",
		pattern: regexp.MustCompile(`(?i) int( |$)`),
		repl:    " INTEGER$1",
	}
)

var chain = []Rule{
	CharacterSet,
	Collate,
	Engine,
	DefaultCharset,
	AutoIncrement,
	SecondaryKey,
	ForeignKey,
	IntType,
}

// Rules returns the normalization chain in application order.
func Rules() []Rule {
	out := make([]Rule, len(chain))
	copy(out, chain)
	return out
}

// Normalize applies every rule in order, each one to the output of the previous.
func Normalize(text string) string {
	for _, r := range chain {
		text = r.Apply(text)
	}
	return text
}

// RuleHits pairs a rule with the number of matches it rewrote.
type RuleHits struct {
	Rule string
	Hits int
}

// Trace normalizes text and reports how many matches each rule rewrote.
func Trace(text string) (string, []RuleHits) {
	hits := make([]RuleHits, 0, len(chain))
	for _, r := range chain {
		hits = append(hits, RuleHits{Rule: r.Name, Hits: r.Count(text)})
		text = r.Apply(text)
	}
	return text, hits
}

// Normalizer turns a raw script into engine-ready text.
// Implementations that parse may fail with a *NormalizationError.
type Normalizer interface {
	Normalize(text string) (string, error)
}

// RegexNormalizer is the default Normalizer built on the rule chain. It never fails.
type RegexNormalizer struct{}

func (RegexNormalizer) Normalize(text string) (string, error) {
	return Normalize(text), nil
}

// NormalizationError reports a normalizer that could not process its input.
type NormalizationError struct {
	Rule string
	Err  error
}

func (e *NormalizationError) Error() string {
	return "normalize (" + e.Rule + "): " + e.Err.Error()
}

func (e *NormalizationError) Unwrap() error { return e.Err }

func (e *NormalizationError) ErrKind() errs.Kind { return errs.Normalization }
