package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	breakingMaxResponseBytes = 1 << 20 // 1MB
	breakingDefaultWindow    = 4 * time.Hour
	breakingLiveWindow       = 1 * time.Hour
)

// BreakingFetcher 调用新闻搜索 API，只取极短时间窗内的结果，面向“刚刚发生”的事件；
// 主场时区的比赛时段内窗口进一步收窄
type BreakingFetcher struct {
	BaseURL string
	APIKey  string
	Region  *time.Location
	Client  *http.Client

	// 可注入时钟，测试时冻结
	Now func() time.Time
}

func NewBreakingFetcher(baseURL, apiKey string, region *time.Location, timeout time.Duration) *BreakingFetcher {
	return &BreakingFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Region:  region,
		Client:  &http.Client{Timeout: timeout},
		Now:     time.Now,
	}
}

func (b *BreakingFetcher) Name() string {
	return "breaking_search"
}

func (b *BreakingFetcher) Kind() SourceKind {
	return KindBreaking
}

type searchResponse struct {
	Articles []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		Image       string    `json:"image"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"source"`
	} `json:"articles"`
}

func (b *BreakingFetcher) Fetch(ctx context.Context, query string, maxResults int) ([]RawItem, error) {
	now := b.Now()
	window := b.freshnessWindow(now)

	params := url.Values{}
	params.Set("q", query)
	params.Set("lang", "en")
	params.Set("max", fmt.Sprintf("%d", maxResults))
	params.Set("from", now.Add(-window).UTC().Format(time.RFC3339))
	params.Set("token", b.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("breaking: build request: %w", err)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("breaking: fetch %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("breaking: unexpected status %d for %q", resp.StatusCode, query)
	}

	var sr searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, breakingMaxResponseBytes)).Decode(&sr); err != nil {
		return nil, fmt.Errorf("breaking: decode response: %w", err)
	}

	return searchItems(sr, maxResults), nil
}

// freshnessWindow 比赛时段（主场时区 18-23 点，周末提前到 13 点）内收窄到 1 小时
func (b *BreakingFetcher) freshnessWindow(now time.Time) time.Duration {
	local := now.In(b.Region)
	hour := local.Hour()
	weekend := local.Weekday() == time.Saturday || local.Weekday() == time.Sunday

	if hour >= 18 && hour <= 23 {
		return breakingLiveWindow
	}
	if weekend && hour >= 13 && hour <= 23 {
		return breakingLiveWindow
	}
	return breakingDefaultWindow
}

func searchItems(sr searchResponse, maxResults int) []RawItem {
	items := make([]RawItem, 0, len(sr.Articles))
	for _, a := range sr.Articles {
		if a.URL == "" {
			continue
		}
		t := a.PublishedAt
		item := RawItem{
			Title:    a.Title,
			Snippet:  a.Description,
			Link:     a.URL,
			Outlet:   hostOf(a.Source.URL, a.Source.Name),
			ImageURL: a.Image,
			RawData: map[string]any{
				"source_name": a.Source.Name,
			},
		}
		if !t.IsZero() {
			item.PublishedAt = &t
		}
		items = append(items, item)
		if maxResults > 0 && len(items) >= maxResults {
			break
		}
	}
	return items
}

func hostOf(sourceURL, fallback string) string {
	if sourceURL != "" {
		if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
			return feedHost(sourceURL)
		}
	}
	return fallback
}
