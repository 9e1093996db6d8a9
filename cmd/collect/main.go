package main

import (
	"context"
	"flag"
	"log"

	"github.com/matchday/newswire/internal/app"
	"github.com/matchday/newswire/internal/config"
	"github.com/matchday/newswire/internal/quota"
	"github.com/matchday/newswire/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发与容器定时任务
func main() {
	force := flag.Bool("force", false, "ignore today's already-used keywords when planning queries")
	flag.Parse()

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

	// 只执行一轮后退出
	report, err := pipe.Run(context.Background(), *force)
	if err != nil {
		log.Fatalf("collect run failed: %v", err)
	}
	log.Printf("collect run finished: collected=%d saved=%d duplicates=%d dropped=%d deleted=%d elapsed=%s",
		report.Collected, report.Saved, report.Duplicates, report.Dropped, report.Deleted, report.Elapsed)
}
