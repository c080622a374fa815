package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/authgate/internal/config"
	"github.com/hitoshi/authgate/internal/database"
	"github.com/hitoshi/authgate/internal/repository"
)

// stores はドライバーに応じて構築したリポジトリ一式。
type stores struct {
	identities  repository.IdentityRepository
	revocations repository.RevocationRepository
	pinger      repository.Pinger
	close       func() error
}

// openStores はDATABASE_URLのスキームに応じてストアへ接続し、リポジトリを構築する。
// 接続後にPingで疎通を確認する。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Driver {
	case database.DriverMongo:
		return openMongoStores(ctx, cfg)
	case database.DriverPostgres:
		return openPostgresStores(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %q", cfg.Driver)
	}
}

func openMongoStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	// 1. クライアント生成
	client, err := database.OpenMongo(cfg.DatabaseURL, cfg.StoreTimeout)
	if err != nil {
		return nil, err
	}
	closeFn := func() error { return database.CloseMongo(client) }

	// 2. リポジトリの初期化
	db := client.Database(cfg.MongoDatabase)
	identities := repository.NewMongoIdentityRepo(db)
	revocations := repository.NewMongoRevocationRepo(db)

	// 3. 疎通確認
	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	if err := identities.Ping(pingCtx); err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// 4. インデックス作成（冪等）
	if err := ensureMongoIndexes(ctx, cfg, identities, revocations); err != nil {
		closeFn()
		return nil, err
	}

	slog.Info("database connection established",
		slog.String("driver", string(database.DriverMongo)),
		slog.String("database", cfg.MongoDatabase),
	)

	return &stores{
		identities:  identities,
		revocations: revocations,
		pinger:      identities,
		close:       closeFn,
	}, nil
}

func openPostgresStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	identities := repository.NewPostgresIdentityRepo(db)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	if err := identities.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("driver", string(database.DriverPostgres)),
	)

	return &stores{
		identities:  identities,
		revocations: repository.NewPostgresRevocationRepo(db),
		pinger:      identities,
		close:       db.Close,
	}, nil
}

// prepareSchema はストアのスキーマを最新化する。
// PostgreSQLはマイグレーションを適用し、MongoDBはインデックスを作成する。
func prepareSchema(ctx context.Context, cfg *config.Config) error {
	switch cfg.Driver {
	case database.DriverPostgres:
		version, err := database.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("database migrations applied", slog.Uint64("version", uint64(version)))
		return nil

	case database.DriverMongo:
		client, err := database.OpenMongo(cfg.DatabaseURL, cfg.StoreTimeout)
		if err != nil {
			return err
		}
		defer database.CloseMongo(client)

		db := client.Database(cfg.MongoDatabase)
		return ensureMongoIndexes(ctx, cfg,
			repository.NewMongoIdentityRepo(db),
			repository.NewMongoRevocationRepo(db),
		)

	default:
		return fmt.Errorf("unsupported driver: %q", cfg.Driver)
	}
}

func ensureMongoIndexes(
	ctx context.Context,
	cfg *config.Config,
	identities *repository.MongoIdentityRepo,
	revocations *repository.MongoRevocationRepo,
) error {
	indexCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()

	if err := identities.EnsureIndexes(indexCtx); err != nil {
		return err
	}
	if err := revocations.EnsureIndexes(indexCtx); err != nil {
		return err
	}

	slog.Info("mongodb indexes ensured", slog.String("database", cfg.MongoDatabase))
	return nil
}
