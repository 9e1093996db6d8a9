package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBreakingFreshnessWindowNarrowsDuringMatchHours(t *testing.T) {
	region := time.FixedZone("region", 0)
	f := NewBreakingFetcher("http://example.invalid", "k", region, time.Second)

	// 周三 20 点：比赛时段
	live := time.Date(2025, 8, 27, 20, 0, 0, 0, time.UTC)
	if got := f.freshnessWindow(live); got != breakingLiveWindow {
		t.Fatalf("freshnessWindow(live evening) = %v, want %v", got, breakingLiveWindow)
	}

	// 周六 14 点：周末下午也算比赛时段
	satAfternoon := time.Date(2025, 8, 30, 14, 0, 0, 0, time.UTC)
	if got := f.freshnessWindow(satAfternoon); got != breakingLiveWindow {
		t.Fatalf("freshnessWindow(sat afternoon) = %v, want %v", got, breakingLiveWindow)
	}

	// 周三凌晨 3 点：默认窗口
	overnight := time.Date(2025, 8, 27, 3, 0, 0, 0, time.UTC)
	if got := f.freshnessWindow(overnight); got != breakingDefaultWindow {
		t.Fatalf("freshnessWindow(overnight) = %v, want %v", got, breakingDefaultWindow)
	}
}

func TestBreakingFetchParsesArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "premier league" {
			t.Errorf("unexpected q param: %q", q)
		}
		if tok := r.URL.Query().Get("token"); tok != "test-key" {
			t.Errorf("unexpected token param: %q", tok)
		}
		if from := r.URL.Query().Get("from"); from == "" {
			t.Errorf("missing from param")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"articles":[
			{"title":"Club confirms signing","description":"done deal","url":"https://www.bbc.co.uk/sport/1","image":"https://img/1.jpg","publishedAt":"2025-08-30T12:00:00Z","source":{"name":"BBC","url":"https://www.bbc.co.uk"}},
			{"title":"no url item","description":"","url":"","source":{"name":"x"}}
		]}`))
	}))
	defer srv.Close()

	f := NewBreakingFetcher(srv.URL, "test-key", time.UTC, 5*time.Second)
	items, err := f.Fetch(context.Background(), "premier league", 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item (empty url dropped), got %d", len(items))
	}
	it := items[0]
	if it.Outlet != "bbc.co.uk" {
		t.Fatalf("Outlet = %q, want bbc.co.uk", it.Outlet)
	}
	if it.PublishedAt == nil || !it.PublishedAt.Equal(time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("PublishedAt not parsed: %v", it.PublishedAt)
	}
}

func TestBreakingFetchNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewBreakingFetcher(srv.URL, "k", time.UTC, 5*time.Second)
	if _, err := f.Fetch(context.Background(), "x", 5); err == nil {
		t.Fatalf("expected error on 403")
	}
}

func TestAnalysisFetchSendsDomainFilterAndHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-Api-Key"); key != "secret" {
			t.Errorf("missing api key header, got %q", key)
		}
		if domains := r.URL.Query().Get("domains"); domains == "" {
			t.Errorf("missing domains param")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","articles":[
			{"source":{"name":"The Athletic"},"title":"Tactical breakdown","description":"deep dive","url":"https://theathletic.com/a/1","urlToImage":"","publishedAt":"2025-08-29T09:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	f := NewAnalysisFetcher(srv.URL, "secret", nil, 5*time.Second)
	items, err := f.Fetch(context.Background(), "arsenal tactics", 5)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 || items[0].Outlet != "theathletic.com" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestAnalysisFetchAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","articles":[]}`))
	}))
	defer srv.Close()

	f := NewAnalysisFetcher(srv.URL, "k", nil, 5*time.Second)
	if _, err := f.Fetch(context.Background(), "x", 5); err == nil {
		t.Fatalf("expected error on api status=error")
	}
}

func TestRSSFetchParsesFeedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
  <title>Football</title>
  <item>
    <title>Striker ruled out for six weeks</title>
    <link>https://example.com/news/1</link>
    <description>Hamstring injury confirmed by the club.</description>
    <pubDate>Sat, 30 Aug 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>No link entry</title>
    <description>dropped</description>
  </item>
</channel></rss>`))
	}))
	defer srv.Close()

	f := NewRSSFetcher([]string{srv.URL})
	items, err := f.Fetch(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item (entry without link dropped), got %d", len(items))
	}
	if items[0].Title != "Striker ruled out for six weeks" {
		t.Fatalf("unexpected title: %q", items[0].Title)
	}
	if items[0].PublishedAt == nil {
		t.Fatalf("expected parsed pubDate")
	}
}

func TestRSSFetchSkipsBrokenFeed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title><item><title>ok</title><link>https://example.com/ok</link></item></channel></rss>`))
	}))
	defer good.Close()

	f := NewRSSFetcher([]string{bad.URL, good.URL})
	items, err := f.Fetch(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the healthy feed's entry, got %d items", len(items))
	}
}

func TestFeedHostStripsWWW(t *testing.T) {
	if got := feedHost("https://www.theguardian.com/football/rss"); got != "theguardian.com" {
		t.Fatalf("feedHost = %q", got)
	}
}
