package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/matchday/newswire/internal/api"
	"github.com/matchday/newswire/internal/app"
	"github.com/matchday/newswire/internal/config"
	"github.com/matchday/newswire/internal/quota"
	"github.com/matchday/newswire/internal/scheduler"
	"github.com/matchday/newswire/internal/storage"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	ledger, err := quota.NewLedger(store.DB, app.SourceLimits(cfg))
	if err != nil {
		log.Fatalf("init quota ledger failed: %v", err)
	}

	pipe := app.BuildPipeline(cfg, store, ledger)

	s, err := scheduler.New(cfg.CronSpec, pipe)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	r := gin.Default()
	apiServer := api.NewServer(store, ledger, s, cfg.BasicAuthUser, cfg.BasicAuthPass, app.SearchSourceNames())
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
