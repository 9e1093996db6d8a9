// Package app 把两个可执行入口共用的装配逻辑收拢到一处
package app

import (
	"time"

	"github.com/matchday/newswire/internal/collector"
	"github.com/matchday/newswire/internal/config"
	"github.com/matchday/newswire/internal/pipeline"
	"github.com/matchday/newswire/internal/planner"
	"github.com/matchday/newswire/internal/processor"
	"github.com/matchday/newswire/internal/quota"
	"github.com/matchday/newswire/internal/storage"
)

// SourceLimits 各搜索源的月度上限，账本据此推日度额度
func SourceLimits(cfg *config.Config) map[string]quota.SourceLimits {
	return map[string]quota.SourceLimits{
		"breaking_search": {MonthlyLimit: cfg.BreakingMonthlyLimit},
		"analysis_search": {MonthlyLimit: cfg.AnalysisMonthlyLimit},
	}
}

func SearchSourceNames() []string {
	return []string{"breaking_search", "analysis_search"}
}

// BuildPipeline 装配一条完整管线：RSS + 两个搜索源 + 排程器 + 归一化器
func BuildPipeline(cfg *config.Config, store *storage.Store, ledger *quota.Ledger) *pipeline.Pipeline {
	region := cfg.Region()

	breaking := collector.NewBreakingFetcher(cfg.BreakingAPIURL, cfg.BreakingAPIKey, region, cfg.FetchTimeout)
	analysis := collector.NewAnalysisFetcher(cfg.AnalysisAPIURL, cfg.AnalysisAPIKey, nil, cfg.FetchTimeout)

	var rss collector.Fetcher
	if len(cfg.FeedURLs) > 0 {
		rss = collector.NewRSSFetcher(cfg.FeedURLs)
	}

	return pipeline.New(pipeline.Deps{
		Store:      store,
		Ledger:     ledger,
		Planner:    planner.New(planner.DefaultCatalog(), region),
		Normalizer: processor.NewNormalizer(processor.DefaultScoringProfile(), time.Now),
		RSS:        rss,
		Searches: []pipeline.SearchSource{
			{Fetcher: breaking, Profile: planner.BreakingProfile(breaking.Name())},
			{Fetcher: analysis, Profile: planner.AnalysisProfile(analysis.Name())},
		},
		Options: pipeline.Options{
			RetentionDays: cfg.RetentionDays,
			DedupLookback: cfg.DedupLookback,
			MaxPerRun:     cfg.MaxPerRun,
			FetchDelay:    cfg.FetchDelay,
			RunDeadline:   cfg.RunDeadline,
		},
	})
}
