package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/matchday/newswire/internal/collector"
)

// Article 归一化打分后的统一结构，写入存储层前的最终形态
type Article struct {
	ID          string
	Title       string
	Description string
	URL         string
	ImageURL    string
	Source      string
	SourceTier  int
	Category    string
	Tags        []string
	PublishedAt time.Time

	TrustScore      int
	ImportanceScore int
	IsBreaking      bool
	Priority        int

	ExtraData map[string]any
}

// 分类按优先级排列，首个命中即定类：transfer > match > injury > lineup > preview > analysis > general
var categoryOrder = []string{"transfer", "match", "injury", "lineup", "preview", "analysis"}

const (
	CategoryGeneral = "general"

	maxTags           = 5
	breakingRecency   = 2 * time.Hour
	importanceCeiling = 200
)

// ScoringProfile 每类源一份打分配置；显式传入而不是包级全局表
type ScoringProfile struct {
	// 各来源类型的基础信任分：白名单搜索 >= 已知媒体 RSS >= 开放搜索
	TrustBase map[collector.SourceKind]int

	// 媒体域名三档白名单
	Tier1Outlets map[string]struct{}
	Tier2Outlets map[string]struct{}

	CategoryKeywords map[string][]string
	CategoryBase     map[string]int

	MarqueeTeams    []string
	MarqueeBonus    int
	BreakingLexicon []string
	BreakingBonus   int

	// 打 tag 用的联赛/球队词表
	TagVocabulary []string
}

func DefaultScoringProfile() ScoringProfile {
	return ScoringProfile{
		TrustBase: map[collector.SourceKind]int{
			collector.KindAnalysis: 75,
			collector.KindRSS:      70,
			collector.KindBreaking: 60,
		},
		Tier1Outlets: outletSet("bbc.co.uk", "theguardian.com", "skysports.com", "theathletic.com"),
		Tier2Outlets: outletSet("espn.com", "goal.com", "telegraph.co.uk", "independent.co.uk", "mirror.co.uk"),
		CategoryKeywords: map[string][]string{
			"transfer": {"transfer", "signing", "signs", "sign", "bid", "fee", "medical", "loan deal", "done deal", "contract", "release clause"},
			"match":    {"full time", "full-time", "goal", "win", "draw", "defeat", "derby", "kick-off", "kick off", "equaliser", "penalty shootout"},
			"injury":   {"injury", "injured", "ruled out", "out for", "hamstring", "knock", "fitness doubt", "sidelined"},
			"lineup":   {"lineup", "line-up", "starting xi", "team news", "bench", "squad named"},
			"preview":  {"preview", "predicted", "prediction", "how to watch", "odds", "what to expect"},
			"analysis": {"analysis", "tactical", "tactics", "opinion", "verdict", "player ratings", "talking points", "deep dive"},
		},
		CategoryBase: map[string]int{
			"transfer":      50,
			"match":         45,
			"injury":        35,
			"lineup":        30,
			"analysis":      30,
			"preview":       25,
			CategoryGeneral: 10,
		},
		MarqueeTeams: []string{
			"arsenal", "manchester city", "manchester united", "liverpool", "chelsea",
			"real madrid", "barcelona", "bayern munich",
		},
		MarqueeBonus: 30,
		BreakingLexicon: []string{
			"breaking", "confirmed", "confirms", "official", "officially",
			"here we go", "done deal", "sacked", "appointed", "red card", "sent off",
		},
		BreakingBonus: 50,
		TagVocabulary: []string{
			"premier league", "champions league", "la liga", "serie a", "bundesliga", "europa league",
			"arsenal", "manchester city", "manchester united", "liverpool", "chelsea", "tottenham",
			"real madrid", "barcelona", "atletico madrid", "bayern munich", "borussia dortmund",
			"inter milan", "juventus", "ac milan", "napoli",
		},
	}
}

func outletSet(hosts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		m[h] = struct{}{}
	}
	return m
}

// Normalizer 把各源的 RawItem 转成统一 Article；时钟可注入，保证打分可复现
type Normalizer struct {
	profile ScoringProfile
	now     func() time.Time
}

func NewNormalizer(profile ScoringProfile, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{profile: profile, now: now}
}

// Normalize 空 url / 空标题的条目视为畸形数据，返回 nil 由调用方计数后丢弃
func (n *Normalizer) Normalize(raw collector.RawItem, originQuery string, kind collector.SourceKind) *Article {
	link := strings.TrimSpace(raw.Link)
	title := strings.TrimSpace(raw.Title)
	if link == "" || title == "" {
		return nil
	}

	now := n.now()
	description := stripHTML(raw.Snippet)
	text := strings.ToLower(title + " " + description)

	publishedAt := n.resolvePublishedAt(raw, now)
	category := n.classify(text)
	tier, trust := n.trustScore(raw.Outlet, kind)
	breaking := n.isBreaking(text, publishedAt, now)
	importance := n.importance(category, text, publishedAt, now, breaking)

	extra := map[string]any{
		"origin_query": originQuery,
		"source_kind":  string(kind),
	}
	if raw.Age != "" {
		extra["raw_age"] = raw.Age
	}
	for k, v := range raw.RawData {
		extra[k] = v
	}

	return &Article{
		ID:              hashURL(link),
		Title:           title,
		Description:     description,
		URL:             link,
		ImageURL:        raw.ImageURL,
		Source:          raw.Outlet,
		SourceTier:      tier,
		Category:        category,
		Tags:            n.extractTags(text, originQuery),
		PublishedAt:     publishedAt,
		TrustScore:      trust,
		ImportanceScore: importance,
		IsBreaking:      breaking,
		Priority:        importance / 10,
		ExtraData:       extra,
	}
}

func (n *Normalizer) classify(text string) string {
	for _, cat := range categoryOrder {
		for _, kw := range n.profile.CategoryKeywords[cat] {
			if strings.Contains(text, kw) {
				return cat
			}
		}
	}
	return CategoryGeneral
}

// trustScore 基础分按来源类型，再按媒体白名单升降档：
// tier1 不低于 90，tier2 不低于 80，tier3/未知封顶 65
func (n *Normalizer) trustScore(outlet string, kind collector.SourceKind) (tier, score int) {
	score = n.profile.TrustBase[kind]
	host := strings.TrimPrefix(strings.ToLower(outlet), "www.")

	if _, ok := n.profile.Tier1Outlets[host]; ok {
		if score < 90 {
			score = 90
		}
		return 1, score
	}
	if _, ok := n.profile.Tier2Outlets[host]; ok {
		if score < 80 {
			score = 80
		}
		return 2, score
	}
	if score > 65 {
		score = 65
	}
	return 3, score
}

func (n *Normalizer) isBreaking(text string, publishedAt, now time.Time) bool {
	if now.Sub(publishedAt) > breakingRecency {
		return false
	}
	for _, kw := range n.profile.BreakingLexicon {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// importance 累加制：分类基分 + 豪门球队加成 + 时效分档加成 + 突发平加，最后夹到 [0,200]
func (n *Normalizer) importance(category, text string, publishedAt, now time.Time, breaking bool) int {
	score := n.profile.CategoryBase[category]

	for _, team := range n.profile.MarqueeTeams {
		if strings.Contains(text, team) {
			score += n.profile.MarqueeBonus
			break
		}
	}

	switch age := now.Sub(publishedAt); {
	case age < time.Hour:
		score += 40
	case age < 3*time.Hour:
		score += 30
	case age < 6*time.Hour:
		score += 20
	case age < 12*time.Hour:
		score += 10
	case age < 24*time.Hour:
		score += 5
	}

	if breaking {
		score += n.profile.BreakingBonus
	}

	if score < 0 {
		score = 0
	}
	if score > importanceCeiling {
		score = importanceCeiling
	}
	return score
}

var tagStopWords = map[string]struct{}{
	"news": {}, "today": {}, "latest": {}, "this": {}, "that": {}, "with": {}, "from": {},
}

// extractTags 词表命中 + 来源 query 里最多两个有效词，去重后最多 5 个
func (n *Normalizer) extractTags(text, originQuery string) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0, maxTags)

	add := func(tag string) {
		if len(tags) >= maxTags {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, v := range n.profile.TagVocabulary {
		if strings.Contains(text, v) {
			add(v)
		}
	}

	queryWords := 0
	for _, w := range strings.Fields(strings.ToLower(originQuery)) {
		if queryWords >= 2 {
			break
		}
		if len(w) <= 3 {
			continue
		}
		if _, stop := tagStopWords[w]; stop {
			continue
		}
		before := len(tags)
		add(w)
		if len(tags) > before {
			queryWords++
		}
	}

	return tags
}

func (n *Normalizer) resolvePublishedAt(raw collector.RawItem, now time.Time) time.Time {
	if raw.PublishedAt != nil && !raw.PublishedAt.IsZero() {
		return *raw.PublishedAt
	}
	if d, ok := parseRelativeAge(raw.Age); ok {
		return now.Add(-d)
	}
	return now
}

var relativeAgeRe = regexp.MustCompile(`(?i)^\s*(\d+)\s*(minute|min|m|hour|hr|h|day|d)s?\s*(ago)?\s*$`)

// parseRelativeAge 解析 "30 minutes ago" / "2h" / "1 day ago" 这类相对时间文本
func parseRelativeAge(age string) (time.Duration, bool) {
	age = strings.TrimSpace(age)
	if age == "" {
		return 0, false
	}
	if strings.EqualFold(age, "just now") || strings.EqualFold(age, "now") {
		return 0, true
	}

	m := relativeAgeRe.FindStringSubmatch(age)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "minute", "min", "m":
		return time.Duration(n) * time.Minute, true
	case "hour", "hr", "h":
		return time.Duration(n) * time.Hour, true
	case "day", "d":
		return time.Duration(n) * 24 * time.Hour, true
	}
	return 0, false
}

// stripHTML RSS 的 description 常夹带标签，入库前只留纯文本
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
