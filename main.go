package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/cppla/askboard/config"
	"github.com/cppla/askboard/realtime"
	"github.com/cppla/askboard/routes"
	"github.com/cppla/askboard/store"
	"github.com/cppla/askboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, backend, err := store.Open(ctx, cfg, utils.Logger)
	if err != nil {
		utils.Logger.Fatal("open store failed", zap.Error(err))
	}

	hub := realtime.NewHub(utils.Logger)
	var events realtime.Broadcaster = hub
	var relay *realtime.RedisRelay
	if cfg.RedisRelay {
		rdb, err := utils.NewRedisClient(ctx, cfg)
		if err != nil {
			utils.Logger.Warn("redis unavailable, broadcasting locally only", zap.Error(err))
			_ = rdb.Close()
		} else {
			relay = realtime.NewRedisRelay(hub, rdb, cfg.RedisChannel, utils.Logger)
			if err := relay.Start(ctx); err != nil {
				utils.Logger.Warn("redis relay subscribe failed, broadcasting locally only", zap.Error(err))
				_ = rdb.Close()
				relay = nil
			} else {
				events = relay
				defer rdb.Close()
			}
		}
	}

	r := routes.SetupRouter(routes.Deps{
		Config:  cfg,
		Store:   st,
		Backend: backend,
		Hub:     hub,
		Events:  events,
	})

	srv := utils.NewServer(":"+cfg.AppPort, r, utils.DEFAULT_READ_TIMEOUT)
	srv.OnShutdown(func(ctx context.Context) {
		hub.Close()
		if relay != nil {
			_ = relay.Close()
		}
		if err := st.Close(ctx); err != nil {
			utils.Logger.Warn("close store failed", zap.Error(err))
		}
	})

	utils.Logger.Info("starting server",
		zap.String("port", cfg.AppPort),
		zap.String("env", cfg.AppEnv),
		zap.String("backend", string(backend)),
	)
	if err := srv.ListenAndServe(); err != nil {
		utils.Logger.Fatal("server stopped with error", zap.Error(err))
	}
}
