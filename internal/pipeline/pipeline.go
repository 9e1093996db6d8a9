package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/matchday/newswire/internal/collector"
	"github.com/matchday/newswire/internal/metrics"
	"github.com/matchday/newswire/internal/planner"
	"github.com/matchday/newswire/internal/processor"
)

// ArticleStore 管线对文章存储的最小依赖面
type ArticleStore interface {
	SaveArticles(ctx context.Context, items []processor.Article) (int, error)
	RecentArticles(ctx context.Context, since time.Time) ([]processor.StoredArticle, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// QuotaLedger 管线对配额账本的最小依赖面
type QuotaLedger interface {
	RemainingBudget(ctx context.Context, source string, date time.Time) (int, error)
	UsedKeywords(ctx context.Context, source string, date time.Time) ([]string, error)
	RecordUsage(ctx context.Context, source string, date time.Time, count int, keywords []string) error
	MonthlyProjection(ctx context.Context, source string, date time.Time) (int, error)
	DailyAllowance(source string, date time.Time) int
}

// SearchSource 一个搜索类源与它的关键词选层配置
type SearchSource struct {
	Fetcher collector.Fetcher
	Profile planner.Profile
}

type Options struct {
	RetentionDays   int
	DedupLookback   time.Duration
	MaxPerRun       int
	FetchDelay      time.Duration
	PerQueryResults int
	RunDeadline     time.Duration
}

func (o *Options) withDefaults() {
	if o.RetentionDays <= 0 {
		o.RetentionDays = 6
	}
	if o.DedupLookback <= 0 {
		o.DedupLookback = 24 * time.Hour
	}
	if o.MaxPerRun <= 0 {
		o.MaxPerRun = 100
	}
	if o.PerQueryResults <= 0 {
		o.PerQueryResults = 10
	}
	if o.RunDeadline <= 0 {
		o.RunDeadline = 4 * time.Minute
	}
}

// SourceUsage 单源额度使用情况，放进运行报告
type SourceUsage struct {
	Source            string `json:"source"`
	DailyAllowance    int    `json:"dailyAllowance"`
	UsedThisRun       int    `json:"usedThisRun"`
	Remaining         int    `json:"remaining"`
	MonthlyProjection int    `json:"monthlyProjection"`
}

// Report 一轮管线的可观测结果
type Report struct {
	Collected  int           `json:"collected"`
	Saved      int           `json:"saved"`
	Duplicates int           `json:"duplicates"`
	Dropped    int           `json:"dropped"`
	Deleted    int64         `json:"deleted"`
	Keywords   []string      `json:"keywords"`
	Budget     []SourceUsage `json:"budget"`
	Elapsed    string        `json:"elapsed"`
}

// Pipeline 单次调用完整跑一遍：
// 清理 → 额度检查 → 排程 → 抓取 → 归一化打分 → 去重 → 截断入库 → 记账。
// 数据严格单向流动，任何组件不回调上游
type Pipeline struct {
	store      ArticleStore
	ledger     QuotaLedger
	planner    *planner.Planner
	normalizer *processor.Normalizer
	dedup      *processor.Deduplicator

	rss      collector.Fetcher // 可为 nil
	searches []SearchSource

	opts Options
	now  func() time.Time
}

type Deps struct {
	Store      ArticleStore
	Ledger     QuotaLedger
	Planner    *planner.Planner
	Normalizer *processor.Normalizer
	RSS        collector.Fetcher
	Searches   []SearchSource
	Options    Options
	Now        func() time.Time
}

func New(deps Deps) *Pipeline {
	deps.Options.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{
		store:      deps.Store,
		ledger:     deps.Ledger,
		planner:    deps.Planner,
		normalizer: deps.Normalizer,
		dedup:      processor.NewDeduplicator(),
		rss:        deps.RSS,
		searches:   deps.Searches,
		opts:       deps.Options,
		now:        deps.Now,
	}
}

type fetchedItem struct {
	raw   collector.RawItem
	query string
	kind  collector.SourceKind
}

// Run 执行一轮。force 为 true 时跳过“当日已用关键词”过滤（手动触发用）。
// 账本或存储不可用视为致命，当轮中止；单条抓取失败只计数不影响其余步骤
func (p *Pipeline) Run(ctx context.Context, force bool) (*Report, error) {
	start := p.now()
	defer func() {
		metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	runCtx, cancel := context.WithTimeout(ctx, p.opts.RunDeadline)
	defer cancel()

	report := &Report{Keywords: []string{}, Budget: []SourceUsage{}}

	// 1) 清理：先缩小存量，后面的去重窗口与预算都在干净数据上工作
	cutoff := start.Add(-time.Duration(p.opts.RetentionDays) * 24 * time.Hour)
	deleted, err := p.store.DeleteOlderThan(runCtx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("retention sweep: %w", err)
	}
	report.Deleted = deleted
	metrics.ArticlesDeleted.Add(float64(deleted))

	// 2) 额度检查 + 排程。账本读失败 = fail closed，当轮中止
	type sourcePlan struct {
		src       SearchSource
		remaining int
		queries   []planner.PlannedQuery
	}
	plans := make([]sourcePlan, 0, len(p.searches))
	totalQueries := 0

	for _, src := range p.searches {
		name := src.Fetcher.Name()
		remaining, err := p.ledger.RemainingBudget(runCtx, name, start)
		if err != nil {
			return nil, fmt.Errorf("quota ledger unavailable for %s: %w", name, err)
		}

		var used []string
		if !force {
			if used, err = p.ledger.UsedKeywords(runCtx, name, start); err != nil {
				return nil, fmt.Errorf("quota ledger unavailable for %s: %w", name, err)
			}
		}

		queries := p.planner.PlanFor(src.Profile, start, remaining, used)
		plans = append(plans, sourcePlan{src: src, remaining: remaining, queries: queries})
		totalQueries += len(queries)
	}

	// 额度耗尽不是错误：干净空转，不触碰任何 fetcher
	if totalQueries == 0 {
		report.Elapsed = time.Since(start).String()
		log.Printf("pipeline: no budget remaining, clean no-op (deleted=%d)", deleted)
		return report, nil
	}

	// 3) 抓取：不同源并行，同源串行并强制间隔；单条失败记录后跳过
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		items   []fetchedItem
		usage   = make(map[string]int, len(plans))
		queried = make(map[string][]string, len(plans))
	)

	collect := func(batch []collector.RawItem, query string, kind collector.SourceKind) {
		mu.Lock()
		defer mu.Unlock()
		for _, raw := range batch {
			items = append(items, fetchedItem{raw: raw, query: query, kind: kind})
		}
	}

	if p.rss != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := p.rss.Name()
			batch, err := p.rss.Fetch(runCtx, "", 0)
			if err != nil {
				log.Printf("fetch %s error: %v", name, err)
				metrics.FetchesTotal.WithLabelValues(name, "error").Inc()
				return
			}
			metrics.FetchesTotal.WithLabelValues(name, "ok").Inc()
			metrics.ItemsCollected.WithLabelValues(name).Add(float64(len(batch)))
			collect(batch, "", p.rss.Kind())
		}()
	}

	for _, sp := range plans {
		if len(sp.queries) == 0 {
			continue
		}
		wg.Add(1)
		go func(sp sourcePlan) {
			defer wg.Done()
			name := sp.src.Fetcher.Name()
			kind := sp.src.Fetcher.Kind()

			for i, pq := range sp.queries {
				if i > 0 && p.opts.FetchDelay > 0 {
					select {
					case <-runCtx.Done():
						return
					case <-time.After(p.opts.FetchDelay):
					}
				}
				if runCtx.Err() != nil {
					return
				}

				mu.Lock()
				usage[name]++
				queried[name] = append(queried[name], pq.Query)
				mu.Unlock()

				batch, err := sp.src.Fetcher.Fetch(runCtx, pq.Query, p.opts.PerQueryResults)
				if err != nil {
					log.Printf("fetch %s %q error: %v", name, pq.Query, err)
					metrics.FetchesTotal.WithLabelValues(name, "error").Inc()
					continue
				}
				metrics.FetchesTotal.WithLabelValues(name, "ok").Inc()
				metrics.ItemsCollected.WithLabelValues(name).Add(float64(len(batch)))
				collect(batch, pq.Query, kind)
			}
		}(sp)
	}
	wg.Wait()

	report.Collected = len(items)

	// 抓取阶段可能因整体截止时间被放弃；落库与记账换用不继承取消的上下文，
	// 保证已归一化的部分成果能写进去
	persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer persistCancel()

	// 4) 归一化打分；畸形条目静默丢弃，只计数
	candidates := make([]processor.Article, 0, len(items))
	for _, it := range items {
		a := p.normalizer.Normalize(it.raw, it.query, it.kind)
		if a == nil {
			report.Dropped++
			continue
		}
		candidates = append(candidates, *a)
	}
	metrics.ItemsDropped.Add(float64(report.Dropped))

	// 5) 去重：先精确 url，再对回看窗口做模糊标题比对
	recent, err := p.store.RecentArticles(persistCtx, start.Add(-p.opts.DedupLookback))
	if err != nil {
		return nil, fmt.Errorf("load dedup window: %w", err)
	}
	kept, dupes := p.dedup.FilterNew(candidates, recent)
	report.Duplicates = dupes
	metrics.DuplicatesFiltered.Add(float64(dupes))

	// 6) 重要性降序截断后入库，保证写入上限内留下的是最重要的
	processor.SortByImportance(kept)
	kept = processor.CapTop(kept, p.opts.MaxPerRun)

	saved, err := p.store.SaveArticles(persistCtx, kept)
	if err != nil {
		return nil, fmt.Errorf("persist articles: %w", err)
	}
	report.Saved = saved
	metrics.ArticlesSaved.Add(float64(saved))

	// 7) 记账与预算汇报
	for _, sp := range plans {
		name := sp.src.Fetcher.Name()
		count := usage[name]
		keywords := queried[name]

		if count > 0 {
			if err := p.ledger.RecordUsage(persistCtx, name, start, count, keywords); err != nil {
				return nil, fmt.Errorf("record usage for %s: %w", name, err)
			}
		}
		report.Keywords = append(report.Keywords, keywords...)

		remaining := sp.remaining - count
		if remaining < 0 {
			remaining = 0
		}
		projection, err := p.ledger.MonthlyProjection(persistCtx, name, start)
		if err != nil {
			log.Printf("monthly projection for %s error: %v", name, err)
		}
		report.Budget = append(report.Budget, SourceUsage{
			Source:            name,
			DailyAllowance:    p.ledger.DailyAllowance(name, start),
			UsedThisRun:       count,
			Remaining:         remaining,
			MonthlyProjection: projection,
		})
	}

	report.Elapsed = time.Since(start).String()
	log.Printf("pipeline done: collected=%d saved=%d duplicates=%d dropped=%d deleted=%d",
		report.Collected, report.Saved, report.Duplicates, report.Dropped, report.Deleted)
	return report, nil
}
