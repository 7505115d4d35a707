// Package theme implements keyword-based theme classification of user
// messages against a closed label set.
package theme

import (
	"strings"

	"github.com/blueberrycongee/recall/pkg/types"
)

// keywordSet pairs a theme with its trigger keywords. A theme fires when
// any keyword is a substring of the lower-cased message.
type keywordSet struct {
	theme    types.Theme
	keywords []string
}

// table holds every classifiable theme. Order is only used to make the
// returned slice deterministic; the result has set semantics and callers
// must not read meaning into it.
var table = []keywordSet{
	{types.ThemeWork, []string{"work", "job", "office", "boss", "colleague", "project", "deadline", "career"}},
	{types.ThemeFamily, []string{"family", "mother", "father", "parent", "sibling", "wife", "husband", "child", "mom", "dad"}},
	{types.ThemeRelationship, []string{"relationship", "friend", "partner", "love", "dating", "breakup", "crush"}},
	{types.ThemeMentalHealth, []string{"stress", "anxiety", "anxious", "worry", "worried", "nervous", "pressure", "overwhelm", "tense", "depress", "panic"}},
	{types.ThemeSleep, []string{"sleep", "insomnia", "nap", "dream", "awake", "rest"}},
	{types.ThemeHealth, []string{"health", "exercise", "energy", "tired", "sick", "doctor", "diet", "pain"}},
	{types.ThemeEducation, []string{"study", "school", "college", "exam", "course", "learning", "class", "homework", "degree"}},
	{types.ThemeFinance, []string{"money", "salary", "budget", "debt", "rent", "saving", "invest", "bill"}},
	{types.ThemeSocial, []string{"social", "party", "lonely", "alone", "meetup", "hang out", "people"}},
	{types.ThemeHobby, []string{"hobby", "interest", "enjoy", "fun", "leisure", "game", "music", "movie", "paint", "draw", "weekend", "read"}},
}

// Classify returns the set of themes whose keywords appear in the message.
// Deterministic and order-independent; when nothing fires it returns the
// general catch-all so every turn lands in some aggregate.
func Classify(text string) []types.Theme {
	lower := strings.ToLower(text)

	var detected []types.Theme
	for _, ks := range table {
		for _, kw := range ks.keywords {
			if strings.Contains(lower, kw) {
				detected = append(detected, ks.theme)
				break
			}
		}
	}

	if len(detected) == 0 {
		return []types.Theme{types.ThemeGeneral}
	}
	return detected
}

// Themes lists every label the classifier can emit, including the
// catch-all.
func Themes() []types.Theme {
	out := make([]types.Theme, 0, len(table)+1)
	for _, ks := range table {
		out = append(out, ks.theme)
	}
	return append(out, types.ThemeGeneral)
}
