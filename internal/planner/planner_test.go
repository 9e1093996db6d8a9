package planner

import (
	"reflect"
	"testing"
	"time"
)

// 周三 20:00 UTC，区域偏移 0：晚间比赛窗口
var eveningWeekday = time.Date(2025, 8, 27, 20, 0, 0, 0, time.UTC)

// 周三 03:00 UTC：深夜
var overnightWeekday = time.Date(2025, 8, 27, 3, 0, 0, 0, time.UTC)

func testPlanner() *Planner {
	return New(DefaultCatalog(), time.UTC)
}

func TestQueryCountBands(t *testing.T) {
	p := testPlanner()

	if got := p.QueryCount(eveningWeekday); got != 8 {
		t.Fatalf("QueryCount(evening weekday) = %d, want 8", got)
	}
	if got := p.QueryCount(overnightWeekday); got != 2 {
		t.Fatalf("QueryCount(overnight) = %d, want 2", got)
	}

	// 周六晚间：+2
	satEvening := time.Date(2025, 8, 30, 20, 0, 0, 0, time.UTC)
	if got := p.QueryCount(satEvening); got != 10 {
		t.Fatalf("QueryCount(sat evening) = %d, want 10", got)
	}
}

func TestPlanEmptyWhenNoBudget(t *testing.T) {
	p := testPlanner()
	if plan := p.PlanFor(BreakingProfile("breaking"), eveningWeekday, 0, nil); len(plan) != 0 {
		t.Fatalf("expected empty plan with zero budget, got %d", len(plan))
	}
	if plan := p.PlanFor(BreakingProfile("breaking"), eveningWeekday, -3, nil); len(plan) != 0 {
		t.Fatalf("expected empty plan with negative budget, got %d", len(plan))
	}
}

func TestPlanLeaguesAlwaysFirst(t *testing.T) {
	p := testPlanner()
	plan := p.PlanFor(BreakingProfile("breaking"), eveningWeekday, 100, nil)

	leagues := p.Catalog.Leagues
	if len(plan) < len(leagues) {
		t.Fatalf("plan shorter than league tier: %d", len(plan))
	}
	for i, q := range leagues {
		if plan[i].Query != q {
			t.Fatalf("plan[%d] = %q, want league %q", i, plan[i].Query, q)
		}
	}
	for _, pq := range plan {
		if pq.Source != "breaking" {
			t.Fatalf("query %q tagged %q, want breaking", pq.Query, pq.Source)
		}
	}
}

func TestPlanTruncatesToBudget(t *testing.T) {
	p := testPlanner()
	plan := p.PlanFor(BreakingProfile("breaking"), eveningWeekday, 3, nil)
	if len(plan) != 3 {
		t.Fatalf("plan length = %d, want budget cap 3", len(plan))
	}
}

func TestPlanSkipsUsedKeywords(t *testing.T) {
	p := testPlanner()
	used := []string{p.Catalog.Leagues[0], p.Catalog.Leagues[1]}
	plan := p.PlanFor(BreakingProfile("breaking"), eveningWeekday, 100, used)

	for _, pq := range plan {
		for _, u := range used {
			if pq.Query == u {
				t.Fatalf("plan contains already-used keyword %q", u)
			}
		}
	}
	// 跳过已用词后，首位应是未用过的第三个联赛词
	if plan[0].Query != p.Catalog.Leagues[2] {
		t.Fatalf("plan[0] = %q, want %q", plan[0].Query, p.Catalog.Leagues[2])
	}
}

func TestPlanDeterministic(t *testing.T) {
	p := testPlanner()
	a := p.PlanFor(BreakingProfile("breaking"), eveningWeekday, 100, []string{"goal"})
	b := p.PlanFor(BreakingProfile("breaking"), eveningWeekday, 100, []string{"goal"})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("plan not deterministic:\n%v\n%v", a, b)
	}
}

func TestPlanAnalysisProfileSkipsTimeOfDay(t *testing.T) {
	p := testPlanner()
	plan := p.PlanFor(AnalysisProfile("analysis"), eveningWeekday, 100, nil)

	tod := map[string]struct{}{}
	for _, q := range p.Catalog.Live {
		tod[q] = struct{}{}
	}
	for _, q := range p.Catalog.HomeMarketPlayers {
		tod[q] = struct{}{}
	}
	for _, pq := range plan {
		if _, ok := tod[pq.Query]; ok {
			t.Fatalf("analysis plan should not contain time-of-day/home-market keyword %q", pq.Query)
		}
	}
}

func TestRoundRobinInterleavesLeagues(t *testing.T) {
	got := roundRobin(
		[]string{"a", "b"},
		map[string][]string{"a": {"a1", "a2"}, "b": {"b1", "b2", "b3"}},
	)
	want := []string{"a1", "b1", "a2", "b2", "b3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roundRobin = %v, want %v", got, want)
	}
}

func TestTimeOfDayTierSelection(t *testing.T) {
	p := testPlanner()
	cases := []struct {
		hour int
		want []string
	}{
		{13, p.Catalog.PreMatch},
		{19, p.Catalog.Live},
		{23, p.Catalog.PostMatch},
		{3, p.Catalog.Overnight},
	}
	for _, c := range cases {
		at := time.Date(2025, 8, 27, c.hour, 0, 0, 0, time.UTC)
		got := p.timeOfDayTier(at)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("timeOfDayTier(hour=%d) wrong tier", c.hour)
		}
	}
}
