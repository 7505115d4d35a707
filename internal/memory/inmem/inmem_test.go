package inmem

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/pkg/types"
)

func turnAt(userID string, msg string, ts time.Time, embedded bool) types.ConversationTurn {
	var vec []float32
	if embedded {
		vec = []float32{1, 0}
	}
	return types.ConversationTurn{
		ID:          fmt.Sprintf("%s-%d", userID, ts.UnixNano()),
		UserID:      userID,
		UserMessage: msg,
		Embedding:   vec,
		Timestamp:   ts,
	}
}

func TestConversationStoreNewestFirst(t *testing.T) {
	s := NewConversationStore(0)
	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(context.Background(),
			turnAt("u1", fmt.Sprintf("msg %d", i), base.Add(time.Duration(i)*time.Second), true)))
	}

	got, err := s.RecentByUser(context.Background(), "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "msg 2", got[0].UserMessage)
	assert.Equal(t, "msg 1", got[1].UserMessage)
}

func TestConversationStoreRetentionCap(t *testing.T) {
	s := NewConversationStore(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(context.Background(),
			turnAt("u1", fmt.Sprintf("msg %d", i), base.Add(time.Duration(i)*time.Second), true)))
	}

	count, err := s.CountByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	got, err := s.RecentByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// The oldest two turns were pruned.
	assert.Equal(t, "msg 2", got[2].UserMessage)
}

func TestConversationStoreEmbeddedFilter(t *testing.T) {
	s := NewConversationStore(0)
	base := time.Now()
	require.NoError(t, s.Append(context.Background(), turnAt("u1", "embedded", base, true)))
	require.NoError(t, s.Append(context.Background(), turnAt("u1", "degraded", base.Add(time.Second), false)))

	got, err := s.RecentWithEmbedding(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "embedded", got[0].UserMessage)
}

func TestConversationStoreUserIsolation(t *testing.T) {
	s := NewConversationStore(0)
	require.NoError(t, s.Append(context.Background(), turnAt("u1", "mine", time.Now(), true)))

	got, err := s.RecentByUser(context.Background(), "u2", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFactStoreInsertAndReinforce(t *testing.T) {
	s := NewFactStore()
	now := time.Now()
	cand := types.FactCandidate{Type: types.FactJob, Value: "teacher", Confidence: 0.8}

	require.NoError(t, s.Upsert(context.Background(), "u1",
		memory.FactUpsert{Candidate: cand, ConfidenceStep: 0.1, Now: now}))

	// Same value in a different case reinforces, not duplicates.
	cand.Value = "Teacher"
	later := now.Add(time.Hour)
	require.NoError(t, s.Upsert(context.Background(), "u1",
		memory.FactUpsert{Candidate: cand, ConfidenceStep: 0.1, Now: later}))

	facts, err := s.ByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	f := facts[0]
	assert.Equal(t, "teacher", f.Value)
	assert.Equal(t, 2, f.MentionCount)
	assert.InDelta(t, 0.9, f.Confidence, 1e-9)
	assert.Equal(t, now, f.FirstMentioned)
	assert.Equal(t, later, f.LastMentioned)
}

func TestFactStoreConfidenceCapped(t *testing.T) {
	s := NewFactStore()
	cand := types.FactCandidate{Type: types.FactName, Value: "priya", Confidence: 0.8}
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Upsert(context.Background(), "u1",
			memory.FactUpsert{Candidate: cand, ConfidenceStep: 0.1, Now: time.Now()}))
	}

	facts, err := s.ByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.InDelta(t, 1.0, facts[0].Confidence, 1e-9)
	assert.Equal(t, 5, facts[0].MentionCount)
}

func TestFactStoreDistinctValuesCoexist(t *testing.T) {
	s := NewFactStore()
	for _, v := range []string{"hiking", "baking"} {
		require.NoError(t, s.Upsert(context.Background(), "u1", memory.FactUpsert{
			Candidate: types.FactCandidate{Type: types.FactHobby, Value: v, Confidence: 0.8},
			Now:       time.Now(),
		}))
	}
	facts, err := s.ByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestThemeStoreFrequencyAndOrder(t *testing.T) {
	s := NewThemeStore()
	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Touch(context.Background(), "u1",
			memory.ThemeTouch{Theme: types.ThemeWork, Emotion: "stressed", Snippet: "work talk", SequenceCap: 5, Now: now}))
	}
	require.NoError(t, s.Touch(context.Background(), "u1",
		memory.ThemeTouch{Theme: types.ThemeSleep, Emotion: "tired", Snippet: "sleep talk", SequenceCap: 5, Now: now}))

	top, err := s.Top(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, types.ThemeWork, top[0].Theme)
	assert.Equal(t, 3, top[0].Frequency)
	assert.Equal(t, types.ThemeSleep, top[1].Theme)
}

func TestThemeStoreBoundedSequences(t *testing.T) {
	s := NewThemeStore()
	for i := 0; i < 8; i++ {
		require.NoError(t, s.Touch(context.Background(), "u1", memory.ThemeTouch{
			Theme:       types.ThemeWork,
			Emotion:     fmt.Sprintf("emotion-%d", i),
			Snippet:     fmt.Sprintf("snippet-%d", i),
			SequenceCap: 5,
			Now:         time.Now(),
		}))
	}

	top, err := s.Top(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Len(t, top[0].Emotions, 5)
	require.Len(t, top[0].Snippets, 5)
	// Oldest entries evicted first.
	assert.Equal(t, "emotion-3", top[0].Emotions[0])
	assert.Equal(t, "emotion-7", top[0].Emotions[4])
}

func TestThemeStoreTopLimit(t *testing.T) {
	s := NewThemeStore()
	themes := []types.Theme{types.ThemeWork, types.ThemeSleep, types.ThemeHealth}
	for i, th := range themes {
		for j := 0; j <= i; j++ {
			require.NoError(t, s.Touch(context.Background(), "u1",
				memory.ThemeTouch{Theme: th, SequenceCap: 5, Now: time.Now()}))
		}
	}

	top, err := s.Top(context.Background(), "u1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, types.ThemeHealth, top[0].Theme)
	assert.Equal(t, types.ThemeSleep, top[1].Theme)
}

func TestStoresConcurrentAccess(t *testing.T) {
	conv := NewConversationStore(0)
	facts := NewFactStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = conv.Append(context.Background(), turnAt("u1", fmt.Sprintf("msg %d", i), time.Now(), true))
			_ = facts.Upsert(context.Background(), "u1", memory.FactUpsert{
				Candidate: types.FactCandidate{Type: types.FactJob, Value: "teacher", Confidence: 0.8},
				Now:       time.Now(),
			})
			_, _ = conv.RecentByUser(context.Background(), "u1", 10)
		}(i)
	}
	wg.Wait()

	count, err := conv.CountByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 20, count)

	got, err := facts.ByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 20, got[0].MentionCount)
}
