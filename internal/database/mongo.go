package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// OpenMongo はMongoDBクライアントを生成する。
// mongo.Connectはバックグラウンドで接続するため、疎通確認にはPingを使用すること。
func OpenMongo(databaseURL string, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(databaseURL).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open mongodb: %w", err)
	}

	return client, nil
}

// CloseMongo はMongoDBクライアントを切断する。
func CloseMongo(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	return nil
}
