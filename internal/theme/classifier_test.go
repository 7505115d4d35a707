package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blueberrycongee/recall/pkg/types"
)

func TestClassifyGeneralFallback(t *testing.T) {
	got := Classify("hello there")
	assert.Equal(t, []types.Theme{types.ThemeGeneral}, got)
}

func TestClassifyMultipleThemes(t *testing.T) {
	got := Classify("I work as a teacher and I love painting on weekends")
	assert.Contains(t, got, types.ThemeWork)
	assert.Contains(t, got, types.ThemeHobby)
	assert.NotContains(t, got, types.ThemeGeneral)
}

func TestClassifyExamMessages(t *testing.T) {
	// Both phrasings must land in mental_health and education.
	for _, msg := range []string{
		"I feel anxious about my exam",
		"Exams always stress me out",
	} {
		got := Classify(msg)
		assert.Contains(t, got, types.ThemeMentalHealth, "message %q", msg)
		assert.Contains(t, got, types.ThemeEducation, "message %q", msg)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	assert.Equal(t, Classify("MY BOSS IS DIFFICULT"), Classify("my boss is difficult"))
}

func TestClassifySetSemantics(t *testing.T) {
	// A message with several keywords of one theme fires that theme once.
	got := Classify("my job at the office has a deadline")
	count := 0
	for _, th := range got {
		if th == types.ThemeWork {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestClassifyDeterministic(t *testing.T) {
	msg := "money worries keep me awake at night and I skip the gym"
	first := Classify(msg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(msg))
	}
}

func TestThemesIncludesGeneral(t *testing.T) {
	all := Themes()
	assert.Contains(t, all, types.ThemeGeneral)
	assert.Len(t, all, 11)
}
