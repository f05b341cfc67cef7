package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cppla/askboard/config"
)

// SelectBackend decides which backend the configuration asks for. An explicit
// StoreBackend wins; otherwise a Mongo connection string selects mongo.
func SelectBackend(cfg config.AppConfig) (Backend, error) {
	if cfg.StoreBackend != "" {
		return ParseBackend(cfg.StoreBackend)
	}
	if cfg.MongoURI != "" {
		return BackendMongo, nil
	}
	return BackendMemory, nil
}

// Open builds the configured store. When MongoDB is selected but cannot be
// reached at startup the memory backend is used instead; the returned Backend
// reports what was actually bound.
func Open(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (Store, Backend, error) {
	backend, err := SelectBackend(cfg)
	if err != nil {
		return nil, "", err
	}

	switch backend {
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, "", fmt.Errorf("store backend mongo requires MONGO_URI")
		}
		db, err := config.OpenMongo(ctx, cfg)
		if err != nil {
			log.Warn("mongo unavailable, falling back to in-memory storage", zap.Error(err))
			return NewMemoryStore(), BackendMemory, nil
		}
		s := NewMongoStore(db)
		if err := s.EnsureIndexes(ctx); err != nil {
			log.Warn("mongo index creation failed", zap.Error(err))
		}
		log.Info("connected to mongo", zap.String("database", cfg.MongoDatabase))
		return s, BackendMongo, nil

	case BackendSQL:
		db, err := config.OpenSQL(cfg)
		if err != nil {
			return nil, "", err
		}
		s := NewSQLStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, "", err
		}
		log.Info("connected to sql database", zap.String("driver", cfg.SQLDriver))
		return s, BackendSQL, nil
	}

	log.Info("using in-memory storage (set MONGO_URI to use MongoDB)")
	return NewMemoryStore(), BackendMemory, nil
}
