// Package types defines the shared data model for the recall memory engine.
package types

import "time"

// FactType classifies a durable belief extracted from user text.
type FactType string

const (
	FactName       FactType = "name"
	FactJob        FactType = "job"
	FactHobby      FactType = "hobby"
	FactLocation   FactType = "location"
	FactFamily     FactType = "family"
	FactPreference FactType = "preference"
	FactFeeling    FactType = "feeling"
	FactGoal       FactType = "goal"
)

// FactTypes lists every fact type in a stable order.
var FactTypes = []FactType{
	FactName, FactJob, FactHobby, FactLocation,
	FactFamily, FactPreference, FactFeeling, FactGoal,
}

// Theme is a closed thematic label for a conversation topic.
type Theme string

const (
	ThemeWork         Theme = "work"
	ThemeFamily       Theme = "family"
	ThemeRelationship Theme = "relationship"
	ThemeMentalHealth Theme = "mental_health"
	ThemeSleep        Theme = "sleep"
	ThemeHealth       Theme = "health"
	ThemeEducation    Theme = "education"
	ThemeFinance      Theme = "finance"
	ThemeSocial       Theme = "social"
	ThemeHobby        Theme = "hobby"

	// ThemeGeneral is the fallback when no other theme fires.
	ThemeGeneral Theme = "general"
)

// ConversationTurn is one completed exchange. Turns are append-only and
// never mutated after being written to the archive.
type ConversationTurn struct {
	ID                string    `json:"id" bson:"_id"`
	UserID            string    `json:"user_id" bson:"user_id"`
	UserMessage       string    `json:"user_message" bson:"user_message"`
	AssistantResponse string    `json:"assistant_response" bson:"assistant_response"`
	Emotion           string    `json:"emotion" bson:"emotion"`
	Embedding         []float32 `json:"embedding,omitempty" bson:"embedding"`
	Timestamp         time.Time `json:"timestamp" bson:"timestamp"`
	ContextStrength   float64   `json:"context_strength" bson:"context_strength"`
	FactsExtracted    int       `json:"facts_extracted" bson:"facts_extracted"`
}

// FactCandidate is an unstored extraction result. The store decides whether
// it becomes a new Fact or reinforces an existing one.
type FactCandidate struct {
	Type          FactType `json:"type"`
	Value         string   `json:"value"`
	Confidence    float64  `json:"confidence"`
	SourceExcerpt string   `json:"source_excerpt"`
}

// Fact is a durable, confidence-scored belief about a user. At most one
// Fact exists per (user_id, type, value), value compared case-insensitively.
type Fact struct {
	ID             string    `json:"id" bson:"_id"`
	UserID         string    `json:"user_id" bson:"user_id"`
	Type           FactType  `json:"type" bson:"type"`
	Value          string    `json:"value" bson:"value"`
	Confidence     float64   `json:"confidence" bson:"confidence"`
	SourceExcerpt  string    `json:"source_excerpt,omitempty" bson:"source_excerpt,omitempty"`
	FirstMentioned time.Time `json:"first_mentioned" bson:"first_mentioned"`
	LastMentioned  time.Time `json:"last_mentioned" bson:"last_mentioned"`
	MentionCount   int       `json:"mention_count" bson:"mention_count"`
}

// ThemeAggregate is the rolling per-user summary of one theme. Emotions and
// Snippets are bounded FIFO sequences; the oldest entries are evicted first.
type ThemeAggregate struct {
	UserID        string    `json:"user_id" bson:"user_id"`
	Theme         Theme     `json:"theme" bson:"theme"`
	Frequency     int       `json:"frequency" bson:"frequency"`
	Emotions      []string  `json:"emotions" bson:"emotions"`
	Snippets      []string  `json:"snippets" bson:"snippets"`
	LastDiscussed time.Time `json:"last_discussed" bson:"last_discussed"`
}

// EmotionCount pairs an emotion label with how often it appeared.
type EmotionCount struct {
	Emotion string `json:"emotion"`
	Count   int    `json:"count"`
}

// ThemeSummary is a ThemeAggregate annotated for recall output with its
// most common emotions, computed on read.
type ThemeSummary struct {
	Theme            Theme          `json:"theme"`
	Frequency        int            `json:"frequency"`
	LastDiscussed    time.Time      `json:"last_discussed"`
	DominantEmotions []EmotionCount `json:"dominant_emotions"`
}

// RecalledTurn is one ranked archive hit inside a ContextBundle.
type RecalledTurn struct {
	Message    string    `json:"message"`
	Response   string    `json:"response"`
	Emotion    string    `json:"emotion"`
	Timestamp  time.Time `json:"timestamp"`
	Similarity float64   `json:"similarity"`
}

// ContextBundle is the transient recall result. It is never persisted and
// belongs to the caller.
type ContextBundle struct {
	RelevantConversations []RecalledTurn      `json:"relevant_conversations"`
	Facts                 map[FactType][]Fact `json:"facts"`
	Themes                []ThemeSummary      `json:"themes"`
	ContextStrength       float64             `json:"context_strength"`
}

// EmptyBundle returns the degraded recall result: no history, no strength.
func EmptyBundle() *ContextBundle {
	return &ContextBundle{
		RelevantConversations: []RecalledTurn{},
		Facts:                 map[FactType][]Fact{},
		Themes:                []ThemeSummary{},
		ContextStrength:       0,
	}
}

// ProfileSummary aggregates what the engine knows about a user.
type ProfileSummary struct {
	TotalConversations int64                 `json:"total_conversations"`
	DominantEmotion    string                `json:"dominant_emotion"`
	Profile            map[FactType][]string `json:"profile"`
	Themes             []Theme               `json:"themes"`
	FactsCount         int                   `json:"facts_count"`
}
