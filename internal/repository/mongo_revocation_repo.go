package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// RevokedTokensCollection は失効済みトークンIDを格納するコレクション名。
const RevokedTokensCollection = "revoked_tokens"

// MongoRevocationRepo はMongoDBを使用したトークン失効リスト。
// _idにトークンIDを使い、expires_atのTTLインデックスでMongoDB側でも自動削除させる。
type MongoRevocationRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRevocationRepo はMongoRevocationRepoを生成する。
func NewMongoRevocationRepo(db *mongo.Database) *MongoRevocationRepo {
	return &MongoRevocationRepo{
		coll: db.Collection(RevokedTokensCollection),
		now:  time.Now,
	}
}

// EnsureIndexes はexpires_atのTTLインデックスを作成する。
func (r *MongoRevocationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetName("revoked_tokens_expires_ttl").SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create revoked_tokens ttl index: %w", err)
	}
	return nil
}

// Revoke はトークンIDを失効リストに追加する。既に存在する場合は更新しない。
func (r *MongoRevocationRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: tokenID}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "expires_at", Value: expiresAt},
			{Key: "created_at", Value: r.now()},
		}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効済みかを返す。
// TTLモニターの削除には遅延があるため、期限切れのエントリはここで除外する。
func (r *MongoRevocationRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.D{
		{Key: "_id", Value: tokenID},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: r.now()}}},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return count > 0, nil
}

// DeleteExpired はbeforeより前に期限切れとなったエントリを削除する。
func (r *MongoRevocationRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.D{
		{Key: "expires_at", Value: bson.D{{Key: "$lt", Value: before}}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired revocations: %w", err)
	}
	return result.DeletedCount, nil
}

// compile-time interface check
var _ RevocationRepository = (*MongoRevocationRepo)(nil)
