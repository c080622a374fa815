package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/hitoshi/authgate/internal/model"
)

// IdentitiesCollection はidentityドキュメントを格納するコレクション名。
const IdentitiesCollection = "identities"

// identityDocument はidentitiesコレクションのドキュメント表現。
type identityDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password_hash"`
	CreatedAt    time.Time     `bson:"created_at"`
}

func (d *identityDocument) toModel() *model.Identity {
	return &model.Identity{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoIdentityRepo はMongoDBを使用したidentityリポジトリ。
type MongoIdentityRepo struct {
	db   *mongo.Database
	coll *mongo.Collection
}

// NewMongoIdentityRepo はMongoIdentityRepoを生成する。
func NewMongoIdentityRepo(db *mongo.Database) *MongoIdentityRepo {
	return &MongoIdentityRepo{
		db:   db,
		coll: db.Collection(IdentitiesCollection),
	}
}

// EnsureIndexes はemailの一意インデックスを作成する。既に存在する場合は何もしない。
func (r *MongoIdentityRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("identities_email_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create identities email index: %w", err)
	}
	return nil
}

// Create はidentityドキュメントを挿入し、ObjectIDをidentity.IDに設定する。
// emailの一意インデックス違反はErrDuplicateEmailとして返す。
func (r *MongoIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	doc := identityDocument{
		ID:           bson.NewObjectID(),
		Email:        identity.Email,
		PasswordHash: identity.PasswordHash,
		CreatedAt:    identity.CreatedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to insert identity: %w", ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	identity.ID = doc.ID.Hex()
	return nil
}

// FindByEmail はメールアドレスでidentityを検索する。見つからない場合はnilを返す。
func (r *MongoIdentityRepo) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	var doc identityDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity by email: %w", err)
	}
	return doc.toModel(), nil
}

// Ping はプライマリへの疎通を確認する。
func (r *MongoIdentityRepo) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, readpref.Primary())
}

// compile-time interface check
var _ IdentityRepository = (*MongoIdentityRepo)(nil)
var _ Pinger = (*MongoIdentityRepo)(nil)
