package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/embedding"
	"github.com/blueberrycongee/recall/internal/extract"
	"github.com/blueberrycongee/recall/internal/observability"
	"github.com/blueberrycongee/recall/internal/theme"
	recallerrors "github.com/blueberrycongee/recall/pkg/errors"
	"github.com/blueberrycongee/recall/pkg/types"
)

// snippetLen bounds the theme snippet taken from a user message.
const snippetLen = 100

// dominantEmotionCount is how many emotions a theme summary reports.
const dominantEmotionCount = 3

// profileValuesPerType bounds how many fact values a profile lists per type.
const profileValuesPerType = 3

// TurnInput is one completed exchange handed to the engine for recording.
type TurnInput struct {
	UserID            string
	UserMessage       string
	AssistantResponse string
	Emotion           string

	// ContextStrength is the strength of the recall bundle the response
	// was generated with, recorded for later analysis.
	ContextStrength float64
}

// Engine orchestrates recording and recall over the three stores. All
// tunables are read from the config snapshot on each call, so a hot reload
// takes effect on the next operation.
type Engine struct {
	cfg       *config.Manager
	stores    Stores
	embedder  embedding.Embedder
	extractor *extract.Extractor
	logger    *observability.Logger
	tracer    trace.Tracer
	profiles  *gocache.Cache

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewEngine wires an engine over the given stores and embedder.
func NewEngine(cfg *config.Manager, stores Stores, embedder embedding.Embedder, logger *observability.Logger, tracer trace.Tracer) *Engine {
	snap := cfg.Get()
	return &Engine{
		cfg:       cfg,
		stores:    stores,
		embedder:  embedder,
		extractor: extract.New(snap.Engine.FactConfidenceBase),
		logger:    logger,
		tracer:    tracer,
		profiles:  gocache.New(snap.Cache.ProfileTTL, 5*time.Minute),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordTurn archives a completed exchange and updates learned facts and
// theme aggregates. The archive write is the one failure that surfaces;
// embedding, fact, and theme failures degrade with a log line and a metric.
// The returned turn carries the generated ID and extraction count.
func (e *Engine) RecordTurn(ctx context.Context, in TurnInput) (*types.ConversationTurn, error) {
	ctx, span := observability.StartSpan(ctx, e.tracer, "memory.record_turn", in.UserID)
	defer span.End()

	if in.UserID == "" {
		return nil, recallerrors.NewInvalidInputError("record turn", "user id is required")
	}
	if in.UserMessage == "" {
		return nil, recallerrors.NewInvalidInputError("record turn", "user message is required")
	}

	snap := e.cfg.Get()
	log := e.logger.WithRequestID(ctx)

	// Embedding, extraction, and classification are independent reads of
	// the same message; run them concurrently.
	var (
		wg         sync.WaitGroup
		vector     []float32
		candidates []types.FactCandidate
		themes     []types.Theme
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		vec, err := e.embedder.Embed(ctx, in.UserMessage)
		if err != nil {
			observability.EmbeddingFailures.Inc()
			log.WarnContext(ctx, "embedding failed, archiving turn without vector",
				"user_id", in.UserID, "error", err)
			vec = []float32{}
		}
		vector = vec
	}()
	go func() {
		defer wg.Done()
		candidates = e.extractor.Extract(in.UserMessage)
	}()
	go func() {
		defer wg.Done()
		themes = theme.Classify(in.UserMessage)
	}()
	wg.Wait()

	now := e.now()
	for _, cand := range candidates {
		up := FactUpsert{Candidate: cand, ConfidenceStep: snap.Engine.FactConfidenceStep, Now: now}
		if err := e.stores.Facts.Upsert(ctx, in.UserID, up); err != nil {
			observability.StoreDegradations.WithLabelValues("fact_upsert").Inc()
			log.ErrorContext(ctx, "fact upsert failed",
				"user_id", in.UserID, "fact_type", cand.Type, "error", err)
			continue
		}
		observability.FactsExtracted.WithLabelValues(string(cand.Type)).Inc()
	}

	snippet := truncateRunes(in.UserMessage, snippetLen)
	for _, th := range themes {
		touch := ThemeTouch{
			Theme:       th,
			Emotion:     in.Emotion,
			Snippet:     snippet,
			SequenceCap: snap.Engine.ThemeSequenceCap,
			Now:         now,
		}
		if err := e.stores.Themes.Touch(ctx, in.UserID, touch); err != nil {
			observability.StoreDegradations.WithLabelValues("theme_touch").Inc()
			log.ErrorContext(ctx, "theme touch failed",
				"user_id", in.UserID, "theme", th, "error", err)
		}
	}

	turn := types.ConversationTurn{
		ID:                uuid.NewString(),
		UserID:            in.UserID,
		UserMessage:       in.UserMessage,
		AssistantResponse: in.AssistantResponse,
		Emotion:           in.Emotion,
		Embedding:         vector,
		Timestamp:         now,
		ContextStrength:   in.ContextStrength,
		FactsExtracted:    len(candidates),
	}
	if err := e.stores.Conversations.Append(ctx, turn); err != nil {
		observability.TurnsRecorded.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.TurnsRecorded.WithLabelValues("success").Inc()

	// A new turn changes the profile; drop the cached one.
	e.profiles.Delete(in.UserID)

	log.InfoContext(ctx, "turn recorded",
		"user_id", in.UserID,
		"facts_extracted", len(candidates),
		"themes", len(themes),
		"embedded", len(vector) > 0)

	return &turn, nil
}

// Recall assembles a context bundle for a query: the k most similar
// archived turns, all learned facts grouped by type, and the top theme
// aggregates. Every failure path degrades toward the empty bundle; Recall
// itself never returns an error for storage or embedding trouble.
func (e *Engine) Recall(ctx context.Context, userID, query string, k int) (*types.ContextBundle, error) {
	ctx, span := observability.StartSpan(ctx, e.tracer, "memory.recall", userID)
	defer span.End()

	if userID == "" {
		return nil, recallerrors.NewInvalidInputError("recall", "user id is required")
	}
	// An empty query carries no signal to rank against; short-circuit with
	// the degraded bundle rather than an error.
	if query == "" {
		observability.ContextStrength.Observe(0)
		return types.EmptyBundle(), nil
	}

	snap := e.cfg.Get()
	if k <= 0 {
		k = snap.Engine.RecallK
	}
	log := e.logger.WithRequestID(ctx)
	start := time.Now()
	defer func() { observability.RecallDuration.Observe(time.Since(start).Seconds()) }()

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		observability.EmbeddingFailures.Inc()
		log.WarnContext(ctx, "query embedding failed, returning empty bundle",
			"user_id", userID, "error", err)
		queryVec = nil
	}
	if len(queryVec) == 0 {
		observability.ContextStrength.Observe(0)
		return types.EmptyBundle(), nil
	}

	bundle := types.EmptyBundle()
	bundle.RelevantConversations = e.similarTurns(ctx, log, userID, queryVec, k, snap.Engine.CandidatePool)
	bundle.Facts = e.factsByType(ctx, log, userID)
	bundle.Themes = e.topThemes(ctx, log, userID, snap.Engine.TopThemes)

	var sum float64
	for _, hit := range bundle.RelevantConversations {
		sum += hit.Similarity
	}
	if n := len(bundle.RelevantConversations); n > 0 {
		bundle.ContextStrength = sum / float64(n)
	}
	observability.ContextStrength.Observe(bundle.ContextStrength)

	return bundle, nil
}

// similarTurns ranks the candidate pool by cosine similarity to the query.
// The pool arrives newest first; the stable sort keeps that order for equal
// scores, so ties break toward recency.
func (e *Engine) similarTurns(ctx context.Context, log *observability.Logger, userID string, queryVec []float32, k, pool int) []types.RecalledTurn {
	candidates, err := e.stores.Conversations.RecentWithEmbedding(ctx, userID, pool)
	if err != nil {
		observability.StoreDegradations.WithLabelValues("conversation_read").Inc()
		log.WarnContext(ctx, "candidate pool read failed, recall degrades",
			"user_id", userID, "error", err)
		return []types.RecalledTurn{}
	}

	type scored struct {
		turn types.ConversationTurn
		sim  float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		// A stored vector from a different embedding model cannot be
		// compared; leave it out of the ranking entirely.
		if len(c.Embedding) != len(queryVec) {
			continue
		}
		ranked = append(ranked, scored{turn: c, sim: CosineSimilarity(queryVec, c.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].sim > ranked[j].sim
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]types.RecalledTurn, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, types.RecalledTurn{
			Message:    s.turn.UserMessage,
			Response:   s.turn.AssistantResponse,
			Emotion:    s.turn.Emotion,
			Timestamp:  s.turn.Timestamp,
			Similarity: s.sim,
		})
	}
	return out
}

func (e *Engine) factsByType(ctx context.Context, log *observability.Logger, userID string) map[types.FactType][]types.Fact {
	facts, err := e.stores.Facts.ByUser(ctx, userID)
	if err != nil {
		observability.StoreDegradations.WithLabelValues("fact_read").Inc()
		log.WarnContext(ctx, "fact read failed, recall degrades",
			"user_id", userID, "error", err)
		return map[types.FactType][]types.Fact{}
	}

	grouped := make(map[types.FactType][]types.Fact, len(types.FactTypes))
	for _, f := range facts {
		grouped[f.Type] = append(grouped[f.Type], f)
	}
	for _, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Confidence > group[j].Confidence
		})
	}
	return grouped
}

func (e *Engine) topThemes(ctx context.Context, log *observability.Logger, userID string, n int) []types.ThemeSummary {
	aggs, err := e.stores.Themes.Top(ctx, userID, n)
	if err != nil {
		observability.StoreDegradations.WithLabelValues("theme_read").Inc()
		log.WarnContext(ctx, "theme read failed, recall degrades",
			"user_id", userID, "error", err)
		return []types.ThemeSummary{}
	}

	out := make([]types.ThemeSummary, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, types.ThemeSummary{
			Theme:            agg.Theme,
			Frequency:        agg.Frequency,
			LastDiscussed:    agg.LastDiscussed,
			DominantEmotions: topEmotions(agg.Emotions, dominantEmotionCount),
		})
	}
	return out
}

// Profile summarizes everything learned about a user. Results are cached
// for the configured TTL and invalidated on every recorded turn.
func (e *Engine) Profile(ctx context.Context, userID string) (*types.ProfileSummary, error) {
	ctx, span := observability.StartSpan(ctx, e.tracer, "memory.profile", userID)
	defer span.End()

	if userID == "" {
		return nil, recallerrors.NewInvalidInputError("profile", "user id is required")
	}
	if cached, ok := e.profiles.Get(userID); ok {
		return cached.(*types.ProfileSummary), nil
	}

	snap := e.cfg.Get()
	log := e.logger.WithRequestID(ctx)

	summary := &types.ProfileSummary{
		Profile: map[types.FactType][]string{},
		Themes:  []types.Theme{},
	}

	count, err := e.stores.Conversations.CountByUser(ctx, userID)
	if err != nil {
		observability.StoreDegradations.WithLabelValues("conversation_count").Inc()
		log.WarnContext(ctx, "conversation count failed, profile degrades",
			"user_id", userID, "error", err)
		count = 0
	}
	summary.TotalConversations = count

	recent, err := e.stores.Conversations.RecentByUser(ctx, userID, snap.Engine.ProfileEmotionWindow)
	if err != nil {
		observability.StoreDegradations.WithLabelValues("conversation_read").Inc()
		log.WarnContext(ctx, "recent turn read failed, profile degrades",
			"user_id", userID, "error", err)
	}
	emotions := make([]string, 0, len(recent))
	for _, turn := range recent {
		if turn.Emotion != "" {
			emotions = append(emotions, turn.Emotion)
		}
	}
	if top := topEmotions(emotions, 1); len(top) > 0 {
		summary.DominantEmotion = top[0].Emotion
	}

	facts, err := e.stores.Facts.ByUser(ctx, userID)
	if err != nil {
		observability.StoreDegradations.WithLabelValues("fact_read").Inc()
		log.WarnContext(ctx, "fact read failed, profile degrades",
			"user_id", userID, "error", err)
	}
	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Confidence > facts[j].Confidence
	})
	for _, f := range facts {
		if len(summary.Profile[f.Type]) < profileValuesPerType {
			summary.Profile[f.Type] = append(summary.Profile[f.Type], f.Value)
		}
	}
	summary.FactsCount = len(facts)

	aggs, err := e.stores.Themes.Top(ctx, userID, snap.Engine.TopThemes)
	if err != nil {
		observability.StoreDegradations.WithLabelValues("theme_read").Inc()
		log.WarnContext(ctx, "theme read failed, profile degrades",
			"user_id", userID, "error", err)
	}
	for _, agg := range aggs {
		summary.Themes = append(summary.Themes, agg.Theme)
	}

	e.profiles.SetDefault(userID, summary)
	return summary, nil
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

// topEmotions counts emotion labels and returns the n most frequent. Ties
// break toward the label seen first in the input.
func topEmotions(emotions []string, n int) []types.EmotionCount {
	counts := map[string]int{}
	order := make([]string, 0, len(emotions))
	for _, em := range emotions {
		em = strings.TrimSpace(em)
		if em == "" {
			continue
		}
		if _, seen := counts[em]; !seen {
			order = append(order, em)
		}
		counts[em]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}

	out := make([]types.EmotionCount, 0, len(order))
	for _, em := range order {
		out = append(out, types.EmotionCount{Emotion: em, Count: counts[em]})
	}
	return out
}
