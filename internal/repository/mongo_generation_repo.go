package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/milijuli/sewa/internal/model"
)

// generationCollection は生成ログを保存するコレクション名。
const generationCollection = "generations"

// generationDocument はMongoDB上の生成ログ表現。OutputはJSONとして解釈できればドキュメントで保持する。
type generationDocument struct {
	ID        string         `bson:"_id"`
	Kind      string         `bson:"kind"`
	Model     string         `bson:"model"`
	Prompt    string         `bson:"prompt"`
	Output    map[string]any `bson:"output,omitempty"`
	RawOutput string         `bson:"raw_output,omitempty"`
	UserID    string         `bson:"user_id,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
}

// MongoGenerationRepo はMongoDBを使用した生成ログリポジトリ。
type MongoGenerationRepo struct {
	coll *mongo.Collection
}

// NewMongoGenerationRepo はMongoGenerationRepoを生成する。
func NewMongoGenerationRepo(db *mongo.Database) *MongoGenerationRepo {
	return &MongoGenerationRepo{coll: db.Collection(generationCollection)}
}

// EnsureIndexes は種類別検索用のインデックスと、retentionで期限切れにするTTLインデックスを作成する。
func (r *MongoGenerationRepo) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if retention > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		})
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create generation indexes: %w", err)
	}
	return nil
}

// Create は生成ログを1件保存する。
func (r *MongoGenerationRepo) Create(ctx context.Context, g *model.Generation) error {
	doc := toGenerationDocument(g)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert generation document: %w", err)
	}
	return nil
}

// DeleteOlderThan はbeforeより前の生成ログを削除する。
func (r *MongoGenerationRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete generation documents: %w", err)
	}
	return res.DeletedCount, nil
}

func toGenerationDocument(g *model.Generation) *generationDocument {
	doc := &generationDocument{
		ID:        g.ID,
		Kind:      string(g.Kind),
		Model:     g.Model,
		Prompt:    g.Prompt,
		UserID:    g.UserID,
		CreatedAt: g.CreatedAt,
	}
	var parsed map[string]any
	if g.Output != "" && json.Unmarshal([]byte(g.Output), &parsed) == nil {
		doc.Output = parsed
	} else {
		doc.RawOutput = g.Output
	}
	return doc
}

var _ GenerationRepository = (*MongoGenerationRepo)(nil)
