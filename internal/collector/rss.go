package collector

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const rssFeedTimeout = 15 * time.Second

// RSSFetcher 按固定的 feed 列表抓取各家媒体的 RSS；单个 feed 失败只记录日志不中断
type RSSFetcher struct {
	Feeds  []string
	parser *gofeed.Parser
}

func NewRSSFetcher(feeds []string) *RSSFetcher {
	return &RSSFetcher{
		Feeds:  feeds,
		parser: gofeed.NewParser(),
	}
}

func (r *RSSFetcher) Name() string {
	return "rss_outlets"
}

func (r *RSSFetcher) Kind() SourceKind {
	return KindRSS
}

// Fetch 忽略 query 参数：RSS 源不支持检索，一次调用抓全部 feed
func (r *RSSFetcher) Fetch(ctx context.Context, _ string, maxResults int) ([]RawItem, error) {
	items := make([]RawItem, 0, len(r.Feeds)*10)
	successCount := 0

	for _, feedURL := range r.Feeds {
		fctx, cancel := context.WithTimeout(ctx, rssFeedTimeout)
		feed, err := r.parser.ParseURLWithContext(feedURL, fctx)
		cancel()
		if err != nil {
			log.Printf("rss: parse %s error: %v", feedURL, err)
			continue
		}
		successCount++

		outlet := feedHost(feedURL)
		for _, entry := range feed.Items {
			if entry == nil || entry.Link == "" {
				continue
			}
			item := RawItem{
				Title:   strings.TrimSpace(entry.Title),
				Snippet: strings.TrimSpace(entry.Description),
				Link:    entry.Link,
				Outlet:  outlet,
			}
			if entry.PublishedParsed != nil {
				t := *entry.PublishedParsed
				item.PublishedAt = &t
			} else if entry.UpdatedParsed != nil {
				t := *entry.UpdatedParsed
				item.PublishedAt = &t
			}
			if entry.Image != nil {
				item.ImageURL = entry.Image.URL
			}
			items = append(items, item)
		}
		log.Printf("rss: loaded %d entries from %s", len(feed.Items), feedURL)

		if maxResults > 0 && len(items) >= maxResults {
			items = items[:maxResults]
			break
		}
	}

	log.Printf("rss: processed feeds %d/%d ok", successCount, len(r.Feeds))
	return items, nil
}

func feedHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
