package collector

import (
	"context"
	"time"
)

// SourceKind 区分来源类型，归一化时据此确定基础信任分
type SourceKind string

const (
	KindRSS      SourceKind = "rss"
	KindBreaking SourceKind = "breaking"
	KindAnalysis SourceKind = "analysis"
)

// RawItem 采集到的原始条目，字段按来源尽力填充；
// 部分来源只给相对时间文本（如 "2 hours ago"），此时 PublishedAt 为 nil
type RawItem struct {
	Title       string
	Snippet     string
	Link        string
	Outlet      string
	ImageURL    string
	PublishedAt *time.Time
	Age         string
	RawData     map[string]any
}

// Fetcher 抽象每一个数据源；RSS 源忽略 query（按固定 feed 列表抓取），
// 搜索类源每个 query 对应一次上游调用
type Fetcher interface {
	Name() string
	Kind() SourceKind
	Fetch(ctx context.Context, query string, maxResults int) ([]RawItem, error)
}
