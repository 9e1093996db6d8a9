package planner

import (
	"time"
)

// Profile 每个搜索源一份：控制该源取哪些关键词层
type Profile struct {
	Source        string
	UseTimeOfDay  bool
	UseHomeMarket bool
	UseTrending   bool
	UseTopics     bool
}

// BreakingProfile 面向突发源：全部时效性层都启用
func BreakingProfile(source string) Profile {
	return Profile{Source: source, UseTimeOfDay: true, UseHomeMarket: true, UseTrending: true, UseTopics: true}
}

// AnalysisProfile 面向深度内容源：跳过时段层，词表偏主题
func AnalysisProfile(source string) Profile {
	return Profile{Source: source, UseTrending: true, UseTopics: true}
}

// PlannedQuery 本轮要执行的一条检索，带目标源标记
type PlannedQuery struct {
	Query  string
	Source string
}

// Planner 按（账本状态, 时钟, 目录）确定性地产出本轮检索计划，不引入任何随机性
type Planner struct {
	Catalog Catalog
	Region  *time.Location
}

func New(catalog Catalog, region *time.Location) *Planner {
	if region == nil {
		region = time.UTC
	}
	return &Planner{Catalog: catalog, Region: region}
}

// QueryCount 依据主场时区的时段与周末/工作日给出本轮基础检索条数
func (p *Planner) QueryCount(now time.Time) int {
	local := now.In(p.Region)
	hour := local.Hour()

	var count int
	switch {
	case hour >= 17 && hour <= 23: // 晚间比赛窗口
		count = 8
	case hour >= 9 && hour < 17:
		count = 5
	case hour >= 6 && hour < 9:
		count = 4
	default: // 深夜
		count = 2
	}

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		count += 2
	}
	return count
}

// PlanFor 为单个搜索源排出本轮关键词：
// 常开联赛层永远最先，随后按 时段层 → 球队层（跨联赛轮询）→ 热门球员 → 话题 填满容量；
// 所有层都会过滤掉当天已用过的关键词。remaining<=0 时返回空计划。
func (p *Planner) PlanFor(profile Profile, now time.Time, remaining int, usedToday []string) []PlannedQuery {
	if remaining <= 0 {
		return nil
	}

	capacity := p.QueryCount(now)
	if capacity > remaining {
		capacity = remaining
	}

	used := make(map[string]struct{}, len(usedToday))
	for _, k := range usedToday {
		used[k] = struct{}{}
	}

	plan := make([]PlannedQuery, 0, capacity)
	take := func(q string) bool {
		if len(plan) >= capacity {
			return false
		}
		if _, ok := used[q]; ok {
			return true // 跳过但继续填其它词
		}
		used[q] = struct{}{}
		plan = append(plan, PlannedQuery{Query: q, Source: profile.Source})
		return true
	}

	for _, q := range p.Catalog.Leagues {
		if !take(q) {
			return plan
		}
	}

	local := now.In(p.Region)
	if profile.UseHomeMarket && isEvening(local) {
		for _, q := range p.Catalog.HomeMarketPlayers {
			if !take(q) {
				return plan
			}
		}
	}

	if profile.UseTimeOfDay {
		for _, q := range p.timeOfDayTier(local) {
			if !take(q) {
				return plan
			}
		}
	}

	// 球队层跨联赛轮询，避免单一联赛吃满整轮
	for _, q := range roundRobin(p.Catalog.LeagueOrder, p.Catalog.TeamsByLeague) {
		if !take(q) {
			return plan
		}
	}

	if profile.UseTrending {
		for _, q := range p.Catalog.TrendingPlayers {
			if !take(q) {
				return plan
			}
		}
	}
	if profile.UseTopics {
		for _, q := range p.Catalog.HotTopics {
			if !take(q) {
				return plan
			}
		}
	}

	return plan
}

func (p *Planner) timeOfDayTier(local time.Time) []string {
	hour := local.Hour()
	switch {
	case hour >= 12 && hour < 17:
		return p.Catalog.PreMatch
	case hour >= 17 && hour < 22:
		return p.Catalog.Live
	case hour >= 22:
		return p.Catalog.PostMatch
	default:
		return p.Catalog.Overnight
	}
}

func isEvening(local time.Time) bool {
	return local.Hour() >= 18 && local.Hour() <= 23
}

// roundRobin 按联赛顺序交替取队名：A1 B1 C1 A2 B2 ...
func roundRobin(order []string, groups map[string][]string) []string {
	var out []string
	for i := 0; ; i++ {
		progressed := false
		for _, league := range order {
			teams := groups[league]
			if i < len(teams) {
				out = append(out, teams[i])
				progressed = true
			}
		}
		if !progressed {
			return out
		}
	}
}
