// Package mongostore implements the persistence interfaces on MongoDB.
// Three collections back the engine: the conversation archive, the learned
// fact store, and the theme aggregates.
package mongostore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/blueberrycongee/recall/internal/memory"
	recallerrors "github.com/blueberrycongee/recall/pkg/errors"
	"github.com/blueberrycongee/recall/pkg/types"
)

const (
	conversationCollection = "conversations"
	factCollection         = "user_facts"
	themeCollection        = "user_memories"
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes every collection relies on. Safe to
// call repeatedly.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(conversationCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return err
	}
	// The unique compound key enforces fact uniqueness per user even when
	// two turns race on the same value.
	_, err = db.Collection(factCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "type", Value: 1},
			{Key: "value_lower", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(themeCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "theme", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// ConversationStore persists the archive in the conversations collection.
type ConversationStore struct {
	coll *mongo.Collection
	// maxTurns caps each user's archive; 0 means unlimited.
	maxTurns int
}

// NewConversationStore creates an archive over the given database.
func NewConversationStore(db *mongo.Database, maxTurnsPerUser int) *ConversationStore {
	return &ConversationStore{
		coll:     db.Collection(conversationCollection),
		maxTurns: maxTurnsPerUser,
	}
}

// Append inserts one turn, then prunes the oldest past the retention cap.
func (s *ConversationStore) Append(ctx context.Context, turn types.ConversationTurn) error {
	if _, err := s.coll.InsertOne(ctx, turn); err != nil {
		return recallerrors.NewStorageWriteError("append turn", err)
	}

	if s.maxTurns <= 0 {
		return nil
	}
	count, err := s.coll.CountDocuments(ctx, bson.M{"user_id": turn.UserID})
	if err != nil || count <= int64(s.maxTurns) {
		// Pruning is best-effort; a failed count never loses the insert.
		return nil
	}

	excess := count - int64(s.maxTurns)
	cur, err := s.coll.Find(ctx, bson.M{"user_id": turn.UserID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: 1}}).
			SetLimit(excess).
			SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil
	}
	var oldest []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &oldest); err != nil {
		return nil
	}
	ids := make([]string, 0, len(oldest))
	for _, doc := range oldest {
		ids = append(ids, doc.ID)
	}
	_, _ = s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return nil
}

// RecentByUser returns up to limit turns, newest first.
func (s *ConversationStore) RecentByUser(ctx context.Context, userID string, limit int) ([]types.ConversationTurn, error) {
	return s.find(ctx, bson.M{"user_id": userID}, limit)
}

// RecentWithEmbedding returns up to limit embedded turns, newest first.
func (s *ConversationStore) RecentWithEmbedding(ctx context.Context, userID string, limit int) ([]types.ConversationTurn, error) {
	filter := bson.M{
		"user_id":     userID,
		"embedding.0": bson.M{"$exists": true},
	}
	return s.find(ctx, filter, limit)
}

func (s *ConversationStore) find(ctx context.Context, filter bson.M, limit int) ([]types.ConversationTurn, error) {
	cur, err := s.coll.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, recallerrors.NewStorageReadError("find turns", err)
	}
	var out []types.ConversationTurn
	if err := cur.All(ctx, &out); err != nil {
		return nil, recallerrors.NewStorageReadError("decode turns", err)
	}
	return out, nil
}

// CountByUser returns the archived turn count for a user.
func (s *ConversationStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, recallerrors.NewStorageReadError("count turns", err)
	}
	return count, nil
}

// FactStore persists learned facts in the user_facts collection.
type FactStore struct {
	coll *mongo.Collection
}

// NewFactStore creates a fact store over the given database.
func NewFactStore(db *mongo.Database) *FactStore {
	return &FactStore{coll: db.Collection(factCollection)}
}

// factDoc stores the fact plus the normalized value the unique index
// matches on.
type factDoc struct {
	types.Fact `bson:",inline"`
	ValueLower string `bson:"value_lower"`
}

// Upsert inserts a new fact or reinforces the matching one. Reinforcement
// is a single aggregation-pipeline update so the capped confidence bump is
// atomic; the insert path relies on the unique (user_id, type, value_lower)
// index and retries reinforcement when a concurrent insert wins.
func (s *FactStore) Upsert(ctx context.Context, userID string, up memory.FactUpsert) error {
	cand := up.Candidate
	filter := bson.M{
		"user_id":     userID,
		"type":        cand.Type,
		"value_lower": strings.ToLower(cand.Value),
	}

	reinforce := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"mention_count":  bson.M{"$add": bson.A{"$mention_count", 1}},
			"last_mentioned": up.Now,
			"confidence":     bson.M{"$min": bson.A{bson.M{"$add": bson.A{"$confidence", up.ConfidenceStep}}, 1.0}},
		}}},
	}

	res, err := s.coll.UpdateOne(ctx, filter, reinforce)
	if err != nil {
		return recallerrors.NewStorageWriteError("reinforce fact", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	doc := factDoc{
		Fact: types.Fact{
			ID:             uuid.NewString(),
			UserID:         userID,
			Type:           cand.Type,
			Value:          cand.Value,
			Confidence:     cand.Confidence,
			SourceExcerpt:  cand.SourceExcerpt,
			FirstMentioned: up.Now,
			LastMentioned:  up.Now,
			MentionCount:   1,
		},
		ValueLower: strings.ToLower(cand.Value),
	}
	_, err = s.coll.InsertOne(ctx, doc)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return recallerrors.NewStorageWriteError("insert fact", err)
	}

	// Lost the insert race; the winner's document absorbs this mention.
	if _, err := s.coll.UpdateOne(ctx, filter, reinforce); err != nil {
		return recallerrors.NewStorageWriteError("reinforce fact", err)
	}
	return nil
}

// ByUser returns all facts for a user, most recently mentioned first.
func (s *FactStore) ByUser(ctx context.Context, userID string) ([]types.Fact, error) {
	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "last_mentioned", Value: -1}}))
	if err != nil {
		return nil, recallerrors.NewStorageReadError("find facts", err)
	}
	var out []types.Fact
	if err := cur.All(ctx, &out); err != nil {
		return nil, recallerrors.NewStorageReadError("decode facts", err)
	}
	return out, nil
}

// ThemeStore persists theme aggregates in the user_memories collection.
type ThemeStore struct {
	coll *mongo.Collection
}

// NewThemeStore creates a theme store over the given database.
func NewThemeStore(db *mongo.Database) *ThemeStore {
	return &ThemeStore{coll: db.Collection(themeCollection)}
}

// Touch upserts the aggregate in one atomic update: frequency is
// incremented and the bounded sequences keep only the newest entries via
// a negative $slice.
func (s *ThemeStore) Touch(ctx context.Context, userID string, touch memory.ThemeTouch) error {
	filter := bson.M{"user_id": userID, "theme": touch.Theme}
	push := bson.M{}
	if touch.Emotion != "" {
		push["emotions"] = bson.M{"$each": []string{touch.Emotion}, "$slice": -touch.SequenceCap}
	}
	if touch.Snippet != "" {
		push["snippets"] = bson.M{"$each": []string{touch.Snippet}, "$slice": -touch.SequenceCap}
	}

	update := bson.M{
		"$inc": bson.M{"frequency": 1},
		"$set": bson.M{"last_discussed": touch.Now},
	}
	if len(push) > 0 {
		update["$push"] = push
	}

	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return recallerrors.NewStorageWriteError("touch theme", err)
	}
	return nil
}

// Top returns up to n aggregates ordered by descending frequency.
func (s *ThemeStore) Top(ctx context.Context, userID string, n int) ([]types.ThemeAggregate, error) {
	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "frequency", Value: -1}, {Key: "last_discussed", Value: -1}}).
			SetLimit(int64(n)))
	if err != nil {
		return nil, recallerrors.NewStorageReadError("find themes", err)
	}
	var out []types.ThemeAggregate
	if err := cur.All(ctx, &out); err != nil {
		return nil, recallerrors.NewStorageReadError("decode themes", err)
	}
	return out, nil
}
