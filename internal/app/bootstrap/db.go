// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/taskhubapp/taskhub/internal/app/store/audit"
	"github.com/taskhubapp/taskhub/internal/app/store/oauthstate"
	"github.com/taskhubapp/taskhub/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection used by every store.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		TaskHubMongoClient:   client,
		TaskHubMongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the indexes the stores rely on: uniqueness for
// emails, roster rows, role names, and pending invitations, plus the TTL
// cleanup on OAuth state.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.TaskHubMongoDatabase

	if err := indexes.EnsureAll(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	if err := audit.New(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure audit indexes: %w", err)
	}
	if err := oauthstate.New(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure oauth state indexes: %w", err)
	}

	logger.Info("database indexes ensured")
	return nil
}
