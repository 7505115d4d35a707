// Package extract implements pattern-based fact extraction from user
// messages. Extraction is pure: no side effects, no failure mode — a
// message that matches nothing yields an empty result.
package extract

import (
	"regexp"
	"strings"

	"github.com/blueberrycongee/recall/pkg/types"
)

// DefaultConfidence is assigned to candidates on first extraction.
const DefaultConfidence = 0.8

// excerptLen bounds the audit excerpt carried by each candidate.
const excerptLen = 100

// end terminates a multi-word capture at sentence punctuation, a
// coordinating "and", or end of input, so values like "teacher" do not
// swallow the rest of a compound sentence.
const end = `(?:\.|,|!|\?| and |$)`

// Rule is one matcher in the extraction table. Patterns run against the
// lower-cased message; every capture group contributes to the value.
type Rule struct {
	Type    types.FactType
	Pattern *regexp.Regexp
}

// rules maps each fact type to its ordered matcher list. The table is the
// dispatch: adding a fact type is adding rows, not code.
var rules = []Rule{
	{types.FactName, regexp.MustCompile(`my name is (\w+)`)},
	{types.FactName, regexp.MustCompile(`i'm (\w+)`)},
	{types.FactName, regexp.MustCompile(`i am (\w+)`)},
	{types.FactName, regexp.MustCompile(`call me (\w+)`)},

	{types.FactJob, regexp.MustCompile(`i work as (?:a|an) ([\w\s]+?)` + end)},
	{types.FactJob, regexp.MustCompile(`i'm (?:a|an) ([\w\s]+?)` + end)},
	{types.FactJob, regexp.MustCompile(`i am (?:a|an) ([\w\s]+?)` + end)},
	{types.FactJob, regexp.MustCompile(`my job is ([\w\s]+?)` + end)},
	{types.FactJob, regexp.MustCompile(`i do ([\w\s]+?) for work`)},

	{types.FactHobby, regexp.MustCompile(`i (?:love|like|enjoy) ([\w\s]+?)` + end)},
	{types.FactHobby, regexp.MustCompile(`my hobby is ([\w\s]+?)` + end)},
	{types.FactHobby, regexp.MustCompile(`i'm into ([\w\s]+?)` + end)},
	{types.FactHobby, regexp.MustCompile(`i play ([\w\s]+?)` + end)},

	{types.FactLocation, regexp.MustCompile(`i live in ([\w\s]+?)` + end)},
	{types.FactLocation, regexp.MustCompile(`i'm from ([\w\s]+?)` + end)},
	{types.FactLocation, regexp.MustCompile(`i am from ([\w\s]+?)` + end)},
	{types.FactLocation, regexp.MustCompile(`i'm in ([\w\s]+?)` + end)},

	{types.FactFamily, regexp.MustCompile(`my (?:wife|husband|partner|spouse) (?:is )?(\w+)`)},
	{types.FactFamily, regexp.MustCompile(`i have (\d+) (?:kids|children)`)},
	{types.FactFamily, regexp.MustCompile(`my (?:son|daughter) (?:is )?(\w+)`)},
	{types.FactFamily, regexp.MustCompile(`my (?:mom|dad|mother|father) (?:is )?(\w+)`)},

	{types.FactPreference, regexp.MustCompile(`i (?:prefer|like) ([\w\s]+?) over`)},
	{types.FactPreference, regexp.MustCompile(`i'd rather ([\w\s]+?)` + end)},
	{types.FactPreference, regexp.MustCompile(`my favorite ([\w\s]+?) is ([\w\s]+?)` + end)},

	{types.FactFeeling, regexp.MustCompile(`i feel ([\w\s]+?)` + end)},
	{types.FactFeeling, regexp.MustCompile(`i'm feeling ([\w\s]+?)` + end)},
	{types.FactFeeling, regexp.MustCompile(`feeling (anxious|stressed|happy|sad|tired|excited|worried)`)},
	{types.FactFeeling, regexp.MustCompile(`i've been ([\w\s]+?) lately`)},

	{types.FactGoal, regexp.MustCompile(`i want to ([\w\s]+?)` + end)},
	{types.FactGoal, regexp.MustCompile(`my goal is ([\w\s]+?)` + end)},
	{types.FactGoal, regexp.MustCompile(`i'm trying to ([\w\s]+?)` + end)},
}

// stopWords rejects captures that are connective noise, not facts.
var stopWords = map[string]struct{}{
	"the": {},
	"and": {},
	"but": {},
	"for": {},
}

// Extractor turns a message into zero or more typed fact candidates.
type Extractor struct {
	confidence float64
}

// New creates an extractor whose candidates carry the given base
// confidence; zero or negative falls back to DefaultConfidence.
func New(confidence float64) *Extractor {
	if confidence <= 0 {
		confidence = DefaultConfidence
	}
	return &Extractor{confidence: confidence}
}

// Extract applies every rule to the message and returns all candidates.
// Each rule contributes at most its first match; rules of the same type are
// independent and downstream storage de-duplicates by value.
func (e *Extractor) Extract(text string) []types.FactCandidate {
	lower := strings.ToLower(text)
	excerpt := truncateRunes(text, excerptLen)

	var out []types.FactCandidate
	for _, r := range rules {
		m := r.Pattern.FindStringSubmatch(lower)
		if m == nil {
			continue
		}

		// Join all capture groups; multi-group rules (favorite X is Y)
		// contribute a compound value.
		var parts []string
		for _, g := range m[1:] {
			if g != "" {
				parts = append(parts, g)
			}
		}
		value := strings.TrimSpace(strings.Join(parts, " "))

		if len(value) <= 2 {
			continue
		}
		if _, stop := stopWords[value]; stop {
			continue
		}

		out = append(out, types.FactCandidate{
			Type:          r.Type,
			Value:         value,
			Confidence:    e.confidence,
			SourceExcerpt: excerpt,
		})
	}
	return out
}

// Rules exposes the extraction table so tests and tooling can enumerate
// matchers without reflection.
func Rules() []Rule {
	return rules
}

// truncateRunes keeps the first n characters, never splitting a multi-byte
// rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
