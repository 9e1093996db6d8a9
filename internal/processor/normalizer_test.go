package processor

import (
	"reflect"
	"testing"
	"time"

	"github.com/matchday/newswire/internal/collector"
)

var frozenNow = time.Date(2025, 8, 30, 15, 0, 0, 0, time.UTC)

func frozenClock() time.Time { return frozenNow }

func testNormalizer() *Normalizer {
	return NewNormalizer(DefaultScoringProfile(), frozenClock)
}

func rawAt(title, outlet string, publishedAt time.Time) collector.RawItem {
	t := publishedAt
	return collector.RawItem{
		Title:       title,
		Link:        "https://" + outlet + "/story",
		Outlet:      outlet,
		PublishedAt: &t,
	}
}

func TestNormalizeBreakingTransferScenario(t *testing.T) {
	n := testNormalizer()
	raw := rawAt("Club confirms signing of striker", "bbc.co.uk", frozenNow.Add(-30*time.Minute))

	a := n.Normalize(raw, "premier league", collector.KindRSS)
	if a == nil {
		t.Fatalf("Normalize returned nil")
	}
	if a.Category != "transfer" {
		t.Fatalf("Category = %q, want transfer", a.Category)
	}
	if a.TrustScore < 90 {
		t.Fatalf("TrustScore = %d, want >= 90 for tier-1 outlet", a.TrustScore)
	}
	if a.SourceTier != 1 {
		t.Fatalf("SourceTier = %d, want 1", a.SourceTier)
	}
	if !a.IsBreaking {
		t.Fatalf("IsBreaking = false, want true (confirms + 30min old)")
	}
	if a.Priority != a.ImportanceScore/10 {
		t.Fatalf("Priority = %d, want importance/10 = %d", a.Priority, a.ImportanceScore/10)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := testNormalizer()
	raw := rawAt("Arsenal win north london derby", "theguardian.com", frozenNow.Add(-2*time.Hour))

	a := n.Normalize(raw, "arsenal", collector.KindBreaking)
	b := n.Normalize(raw, "arsenal", collector.KindBreaking)
	if a == nil || b == nil {
		t.Fatalf("Normalize returned nil")
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Normalize not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestNormalizeDropsMalformed(t *testing.T) {
	n := testNormalizer()

	if got := n.Normalize(collector.RawItem{Title: "no url"}, "q", collector.KindRSS); got != nil {
		t.Fatalf("expected nil for empty url, got %+v", got)
	}
	if got := n.Normalize(collector.RawItem{Link: "https://x/1"}, "q", collector.KindRSS); got != nil {
		t.Fatalf("expected nil for empty title, got %+v", got)
	}
}

func TestNormalizeIdempotentURLHash(t *testing.T) {
	n := testNormalizer()
	raw := rawAt("Some headline", "bbc.co.uk", frozenNow)
	a := n.Normalize(raw, "q", collector.KindRSS)
	b := n.Normalize(raw, "other query", collector.KindBreaking)
	if a.ID != b.ID {
		t.Fatalf("same url should yield same id: %q vs %q", a.ID, b.ID)
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	n := testNormalizer()
	// 文本同时命中 transfer 与 injury：transfer 优先
	cat := n.classify("striker injured during transfer medical")
	if cat != "transfer" {
		t.Fatalf("classify = %q, want transfer (first-match priority)", cat)
	}
	if got := n.classify("nothing football related here"); got != CategoryGeneral {
		t.Fatalf("classify fallback = %q, want general", got)
	}
}

func TestTrustTiers(t *testing.T) {
	n := testNormalizer()

	tier, score := n.trustScore("espn.com", collector.KindBreaking)
	if tier != 2 || score < 80 {
		t.Fatalf("tier2 outlet: tier=%d score=%d, want tier 2, >= 80", tier, score)
	}

	tier, score = n.trustScore("random-blog.example", collector.KindAnalysis)
	if tier != 3 || score > 65 {
		t.Fatalf("unknown outlet: tier=%d score=%d, want tier 3, <= 65", tier, score)
	}

	// www 前缀不影响白名单命中
	tier, _ = n.trustScore("www.bbc.co.uk", collector.KindRSS)
	if tier != 1 {
		t.Fatalf("www prefix should still match tier-1, got tier %d", tier)
	}
}

func TestBreakingRequiresRecency(t *testing.T) {
	n := testNormalizer()
	// 词命中但超过 2 小时：不算突发
	old := rawAt("Manager sacked after defeat", "bbc.co.uk", frozenNow.Add(-3*time.Hour))
	if a := n.Normalize(old, "q", collector.KindRSS); a.IsBreaking {
		t.Fatalf("3h-old item should not be breaking")
	}
}

func TestImportanceRecencyBandsWithFrozenClock(t *testing.T) {
	n := testNormalizer()

	fresh := n.importance(CategoryGeneral, "", frozenNow.Add(-30*time.Minute), frozenNow, false)
	stale := n.importance(CategoryGeneral, "", frozenNow.Add(-20*time.Hour), frozenNow, false)
	dead := n.importance(CategoryGeneral, "", frozenNow.Add(-48*time.Hour), frozenNow, false)

	if fresh != 10+40 {
		t.Fatalf("fresh importance = %d, want 50", fresh)
	}
	if stale != 10+5 {
		t.Fatalf("20h importance = %d, want 15", stale)
	}
	if dead != 10 {
		t.Fatalf("48h importance = %d, want base 10", dead)
	}
}

func TestImportanceClampedAtCeiling(t *testing.T) {
	n := testNormalizer()
	// transfer + marquee + fresh + breaking = 50+30+40+50 = 170; 再抬 base 验证夹紧
	profile := DefaultScoringProfile()
	profile.CategoryBase["transfer"] = 150
	n2 := NewNormalizer(profile, frozenClock)

	got := n2.importance("transfer", "arsenal", frozenNow.Add(-10*time.Minute), frozenNow, true)
	if got != importanceCeiling {
		t.Fatalf("importance = %d, want clamped to %d", got, importanceCeiling)
	}
	_ = n
}

func TestExtractTagsCapAndQueryWords(t *testing.T) {
	n := testNormalizer()
	text := "premier league clash as arsenal beat chelsea while liverpool and tottenham drew with juventus"
	tags := n.extractTags(text, "manchester united transfer latest news")

	if len(tags) > maxTags {
		t.Fatalf("tags over cap: %v", tags)
	}
	seen := map[string]struct{}{}
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			t.Fatalf("duplicate tag %q in %v", tag, tags)
		}
		seen[tag] = struct{}{}
	}
	if tags[0] != "premier league" {
		t.Fatalf("vocabulary tags should come first, got %v", tags)
	}
}

func TestParseRelativeAge(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30 minutes ago", 30 * time.Minute, true},
		{"2 hours ago", 2 * time.Hour, true},
		{"1 day ago", 24 * time.Hour, true},
		{"5m", 5 * time.Minute, true},
		{"3d", 72 * time.Hour, true},
		{"just now", 0, true},
		{"yesterday evening", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseRelativeAge(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("parseRelativeAge(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestResolvePublishedAtFallsBackToAge(t *testing.T) {
	n := testNormalizer()
	raw := collector.RawItem{Title: "t", Link: "https://x/1", Age: "2 hours ago"}
	a := n.Normalize(raw, "q", collector.KindBreaking)
	if !a.PublishedAt.Equal(frozenNow.Add(-2 * time.Hour)) {
		t.Fatalf("PublishedAt = %v, want frozen now - 2h", a.PublishedAt)
	}
}

func TestStripHTML(t *testing.T) {
	in := `<p>Striker <b>signs</b> new deal.</p> <a href="x">Read more</a>`
	got := stripHTML(in)
	if got != "Striker signs new deal. Read more" {
		t.Fatalf("stripHTML = %q", got)
	}
	if plain := stripHTML("no markup here"); plain != "no markup here" {
		t.Fatalf("stripHTML should pass through plain text, got %q", plain)
	}
}
