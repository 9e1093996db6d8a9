package planner

// Catalog 关键词目录：分层静态配置，按构造注入而不是包级可变全局
type Catalog struct {
	// 常开层：每轮必查的联赛词
	Leagues []string

	// 球队层按联赛分组；LeagueOrder 固定遍历顺序，保证轮询结果可复现
	LeagueOrder   []string
	TeamsByLeague map[string][]string

	TrendingPlayers []string
	HotTopics       []string

	// 时段层：赛前 / 比赛中 / 赛后 / 深夜
	PreMatch  []string
	Live      []string
	PostMatch []string
	Overnight []string

	// 主场市场球员名单，主场时区的晚间优先插入
	HomeMarketPlayers []string
}

func DefaultCatalog() Catalog {
	return Catalog{
		Leagues: []string{
			"premier league",
			"champions league",
			"la liga",
			"serie a",
		},
		LeagueOrder: []string{"premier league", "la liga", "serie a", "bundesliga"},
		TeamsByLeague: map[string][]string{
			"premier league": {"arsenal", "manchester city", "liverpool", "chelsea", "manchester united", "tottenham"},
			"la liga":        {"real madrid", "barcelona", "atletico madrid"},
			"serie a":        {"inter milan", "juventus", "ac milan", "napoli"},
			"bundesliga":     {"bayern munich", "borussia dortmund", "bayer leverkusen"},
		},
		TrendingPlayers: []string{
			"kylian mbappe", "erling haaland", "jude bellingham", "lamine yamal", "vinicius junior",
		},
		HotTopics: []string{
			"transfer news", "manager sacked", "var controversy", "world cup qualifiers", "ballon d'or",
		},
		PreMatch: []string{
			"team news today", "predicted lineup", "match preview",
		},
		Live: []string{
			"live score", "red card", "goal", "half time report",
		},
		PostMatch: []string{
			"full time result", "player ratings", "post match reaction",
		},
		Overnight: []string{
			"transfer rumours", "done deal", "medical scheduled",
		},
		HomeMarketPlayers: []string{
			"harry kane", "bukayo saka", "declan rice", "cole palmer", "phil foden",
		},
	}
}
