// Package inmem provides in-memory store implementations for development
// and tests. All stores are safe for concurrent use.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/pkg/types"
)

// ConversationStore keeps per-user turn archives in memory, oldest first.
type ConversationStore struct {
	mu sync.RWMutex
	// maxTurns caps each user's archive; 0 means unlimited.
	maxTurns int
	turns    map[string][]types.ConversationTurn
}

// NewConversationStore creates an archive with the given per-user cap.
func NewConversationStore(maxTurnsPerUser int) *ConversationStore {
	return &ConversationStore{
		maxTurns: maxTurnsPerUser,
		turns:    map[string][]types.ConversationTurn{},
	}
}

// Append writes one turn and prunes the oldest past the retention cap.
func (s *ConversationStore) Append(_ context.Context, turn types.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.turns[turn.UserID], turn)
	if s.maxTurns > 0 && len(list) > s.maxTurns {
		list = list[len(list)-s.maxTurns:]
	}
	s.turns[turn.UserID] = list
	return nil
}

// RecentByUser returns up to limit turns, newest first.
func (s *ConversationStore) RecentByUser(_ context.Context, userID string, limit int) ([]types.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.turns[userID]
	out := make([]types.ConversationTurn, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// RecentWithEmbedding returns up to limit embedded turns, newest first.
func (s *ConversationStore) RecentWithEmbedding(_ context.Context, userID string, limit int) ([]types.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.turns[userID]
	out := make([]types.ConversationTurn, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		if len(list[i].Embedding) > 0 {
			out = append(out, list[i])
		}
	}
	return out, nil
}

// CountByUser returns the archived turn count for a user.
func (s *ConversationStore) CountByUser(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.turns[userID])), nil
}

// FactStore keeps per-user facts in memory with reinforcement semantics.
type FactStore struct {
	mu    sync.RWMutex
	facts map[string][]types.Fact
}

// NewFactStore creates an empty fact store.
func NewFactStore() *FactStore {
	return &FactStore{facts: map[string][]types.Fact{}}
}

// Upsert inserts a new fact or reinforces the existing one matching the
// candidate's (type, value), value compared case-insensitively.
func (s *FactStore) Upsert(_ context.Context, userID string, up memory.FactUpsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cand := up.Candidate
	list := s.facts[userID]
	for i := range list {
		if list[i].Type != cand.Type || !strings.EqualFold(list[i].Value, cand.Value) {
			continue
		}
		list[i].MentionCount++
		list[i].LastMentioned = up.Now
		list[i].Confidence += up.ConfidenceStep
		if list[i].Confidence > 1.0 {
			list[i].Confidence = 1.0
		}
		return nil
	}

	s.facts[userID] = append(list, types.Fact{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           cand.Type,
		Value:          cand.Value,
		Confidence:     cand.Confidence,
		SourceExcerpt:  cand.SourceExcerpt,
		FirstMentioned: up.Now,
		LastMentioned:  up.Now,
		MentionCount:   1,
	})
	return nil
}

// ByUser returns all facts for a user in insertion order.
func (s *FactStore) ByUser(_ context.Context, userID string) ([]types.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Fact, len(s.facts[userID]))
	copy(out, s.facts[userID])
	return out, nil
}

// ThemeStore keeps per-user theme aggregates in memory.
type ThemeStore struct {
	mu   sync.RWMutex
	aggs map[string]map[types.Theme]*types.ThemeAggregate
}

// NewThemeStore creates an empty theme store.
func NewThemeStore() *ThemeStore {
	return &ThemeStore{aggs: map[string]map[types.Theme]*types.ThemeAggregate{}}
}

// Touch increments the aggregate and appends to its bounded sequences,
// evicting the oldest entries past the cap.
func (s *ThemeStore) Touch(_ context.Context, userID string, touch memory.ThemeTouch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTheme := s.aggs[userID]
	if byTheme == nil {
		byTheme = map[types.Theme]*types.ThemeAggregate{}
		s.aggs[userID] = byTheme
	}

	agg := byTheme[touch.Theme]
	if agg == nil {
		agg = &types.ThemeAggregate{UserID: userID, Theme: touch.Theme}
		byTheme[touch.Theme] = agg
	}

	agg.Frequency++
	agg.LastDiscussed = touch.Now
	if touch.Emotion != "" {
		agg.Emotions = appendBounded(agg.Emotions, touch.Emotion, touch.SequenceCap)
	}
	if touch.Snippet != "" {
		agg.Snippets = appendBounded(agg.Snippets, touch.Snippet, touch.SequenceCap)
	}
	return nil
}

// Top returns up to n aggregates ordered by descending frequency, most
// recently discussed first among equals.
func (s *ThemeStore) Top(_ context.Context, userID string, n int) ([]types.ThemeAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ThemeAggregate, 0, len(s.aggs[userID]))
	for _, agg := range s.aggs[userID] {
		cp := *agg
		cp.Emotions = append([]string(nil), agg.Emotions...)
		cp.Snippets = append([]string(nil), agg.Snippets...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].LastDiscussed.After(out[j].LastDiscussed)
	})

	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func appendBounded(seq []string, item string, limit int) []string {
	seq = append(seq, item)
	if limit > 0 && len(seq) > limit {
		seq = seq[len(seq)-limit:]
	}
	return seq
}
