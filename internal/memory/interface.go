// Package memory implements the context recall engine: it archives
// conversation turns, learns facts and themes from them, and assembles
// recall bundles for new queries.
package memory

import (
	"context"
	"time"

	"github.com/blueberrycongee/recall/pkg/types"
)

// ConversationStore persists the append-only conversation archive.
type ConversationStore interface {
	// Append writes one turn. Implementations enforce the per-user
	// retention cap, pruning oldest turns first.
	Append(ctx context.Context, turn types.ConversationTurn) error

	// RecentByUser returns up to limit turns, newest first.
	RecentByUser(ctx context.Context, userID string, limit int) ([]types.ConversationTurn, error)

	// RecentWithEmbedding returns up to limit turns that carry a non-empty
	// embedding, newest first. This is the candidate pool for recall.
	RecentWithEmbedding(ctx context.Context, userID string, limit int) ([]types.ConversationTurn, error)

	// CountByUser returns the archived turn count for a user.
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// FactUpsert carries one candidate plus the reinforcement tunables the
// store applies atomically.
type FactUpsert struct {
	Candidate      types.FactCandidate
	ConfidenceStep float64
	Now            time.Time
}

// FactStore persists durable per-user facts with reinforcement semantics:
// at most one fact per (user, type, value), value matched
// case-insensitively. Re-observing a fact bumps mention count, last
// mentioned, and confidence by the step, capped at 1.0.
type FactStore interface {
	Upsert(ctx context.Context, userID string, up FactUpsert) error
	ByUser(ctx context.Context, userID string) ([]types.Fact, error)
}

// ThemeTouch records one observation of a theme in a turn.
type ThemeTouch struct {
	Theme       types.Theme
	Emotion     string
	Snippet     string
	SequenceCap int
	Now         time.Time
}

// ThemeStore persists rolling per-user theme aggregates. Touch increments
// frequency and appends to the bounded emotion/snippet sequences, evicting
// the oldest entries past the cap.
type ThemeStore interface {
	Touch(ctx context.Context, userID string, touch ThemeTouch) error

	// Top returns up to n aggregates ordered by descending frequency.
	Top(ctx context.Context, userID string, n int) ([]types.ThemeAggregate, error)
}

// Stores bundles the three persistence interfaces an engine needs.
type Stores struct {
	Conversations ConversationStore
	Facts         FactStore
	Themes        ThemeStore
}
