package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	analysisMaxResponseBytes = 1 << 20
	analysisLookback         = 72 * time.Hour
)

// 深度内容只收录这批站点，配合较长的回看窗口
var defaultAnalysisDomains = []string{
	"theathletic.com",
	"bbc.co.uk",
	"theguardian.com",
	"skysports.com",
	"espn.com",
}

// AnalysisFetcher 调用第二个搜索 API，限定在白名单域名内找分析/长文类内容；
// 此类内容时效性弱，回看窗口按天计
type AnalysisFetcher struct {
	BaseURL string
	APIKey  string
	Domains []string
	Client  *http.Client

	Now func() time.Time
}

func NewAnalysisFetcher(baseURL, apiKey string, domains []string, timeout time.Duration) *AnalysisFetcher {
	if len(domains) == 0 {
		domains = defaultAnalysisDomains
	}
	return &AnalysisFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Domains: domains,
		Client:  &http.Client{Timeout: timeout},
		Now:     time.Now,
	}
}

func (a *AnalysisFetcher) Name() string {
	return "analysis_search"
}

func (a *AnalysisFetcher) Kind() SourceKind {
	return KindAnalysis
}

type analysisResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		URLToImage  string    `json:"urlToImage"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

func (a *AnalysisFetcher) Fetch(ctx context.Context, query string, maxResults int) ([]RawItem, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("pageSize", fmt.Sprintf("%d", maxResults))
	params.Set("domains", strings.Join(a.Domains, ","))
	params.Set("from", a.Now().Add(-analysisLookback).UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("analysis: build request: %w", err)
	}
	req.Header.Set("X-Api-Key", a.APIKey)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis: fetch %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis: unexpected status %d for %q", resp.StatusCode, query)
	}

	var ar analysisResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, analysisMaxResponseBytes)).Decode(&ar); err != nil {
		return nil, fmt.Errorf("analysis: decode response: %w", err)
	}
	if ar.Status != "" && ar.Status != "ok" {
		return nil, fmt.Errorf("analysis: api status %q for %q", ar.Status, query)
	}

	items := make([]RawItem, 0, len(ar.Articles))
	for _, art := range ar.Articles {
		if art.URL == "" {
			continue
		}
		item := RawItem{
			Title:    art.Title,
			Snippet:  art.Description,
			Link:     art.URL,
			Outlet:   feedHost(art.URL),
			ImageURL: art.URLToImage,
			RawData: map[string]any{
				"source_name": art.Source.Name,
			},
		}
		if !art.PublishedAt.IsZero() {
			t := art.PublishedAt
			item.PublishedAt = &t
		}
		items = append(items, item)
		if maxResults > 0 && len(items) >= maxResults {
			break
		}
	}
	return items, nil
}
