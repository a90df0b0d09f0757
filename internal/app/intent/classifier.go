// Package intent classifies chat messages with a deterministic keyword
// table. No model is involved: the same text always yields the same intent.
package intent

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ghalamif/sensorwatch/internal/domain"
)

// Classifier is immutable after New and safe for concurrent use.
type Classifier struct {
	rules     ruleSet
	idPattern *regexp.Regexp
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithRules replaces DefaultRules.
func WithRules(r Rules) Option {
	return func(c *Classifier) { c.rules = compile(r) }
}

// WithSensorIDPattern makes any token fully matching re a sensor id, even
// when no sensor noun introduces it.
func WithSensorIDPattern(re *regexp.Regexp) Option {
	return func(c *Classifier) { c.idPattern = re }
}

func New(opts ...Option) *Classifier {
	c := &Classifier{rules: compile(DefaultRules)}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Classify never fails. A sensor id beats the fleet-wide rule; text that
// matches nothing is domain.Unknown.
func (c *Classifier) Classify(message string) domain.Intent {
	toks := tokenize(message)
	if len(toks) == 0 {
		return domain.Unknown{}
	}

	quantified := c.any(toks, c.rules.quantifiers)
	if id := c.sensorID(toks, quantified); id != "" {
		return domain.SingleStatus{SensorID: id}
	}
	if quantified && c.any(toks, c.rules.connectivity) {
		return domain.AllStatus{}
	}
	return domain.Unknown{}
}

// sensorID returns the first id introduced by a sensor noun. In a
// quantified question ("all sensor nodes") the word after the noun must
// also look like an id.
func (c *Classifier) sensorID(toks []token, quantified bool) string {
	for i, tok := range toks {
		if !tok.in(c.rules.nouns) {
			continue
		}
		j := i + 1
		for j < len(toks) && toks[j].in(c.rules.fillers) {
			j++
		}
		if j < len(toks) && c.isID(toks[j]) && (!quantified || c.looksLikeID(toks[j])) {
			return toks[j].raw
		}
	}
	if c.idPattern != nil {
		for _, tok := range toks {
			if c.idPattern.MatchString(tok.raw) && c.isID(tok) {
				return tok.raw
			}
		}
	}
	return ""
}

func (c *Classifier) isID(tok token) bool {
	for _, p := range tok.parts {
		if _, ok := c.rules.notIDs[p]; ok {
			return false
		}
	}
	return true
}

// looksLikeID accepts tokens with a digit, short upper-case codes ("B",
// "GW") and matches of the configured id pattern.
func (c *Classifier) looksLikeID(tok token) bool {
	if c.idPattern != nil && c.idPattern.MatchString(tok.raw) {
		return true
	}
	if strings.IndexFunc(tok.raw, unicode.IsDigit) >= 0 {
		return true
	}
	return len([]rune(tok.raw)) <= 3 && strings.ToUpper(tok.raw) == tok.raw
}

func (c *Classifier) any(toks []token, set map[string]struct{}) bool {
	for _, t := range toks {
		if t.in(set) {
			return true
		}
	}
	return false
}

type token struct {
	raw string
	// parts holds the folded token and, for hyphenated tokens, each
	// segment: "sont-ils" -> [sont-ils sont ils].
	parts []string
}

func (t token) in(set map[string]struct{}) bool {
	for _, p := range t.parts {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

func tokenize(s string) []token {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	out := make([]token, 0, len(fields))
	for _, f := range fields {
		raw := strings.Trim(f, "-_")
		if raw == "" {
			continue
		}
		folded := fold(raw)
		parts := []string{folded}
		if strings.Contains(folded, "-") {
			for _, seg := range strings.Split(folded, "-") {
				if seg != "" {
					parts = append(parts, seg)
				}
			}
		}
		out = append(out, token{raw: raw, parts: parts})
	}
	return out
}

// fold lower-cases s and strips diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
