package processor

import (
	"sort"
	"strings"
)

// 标题 token 集合的 Jaccard 相似度达到该值即判重（含边界）
const titleSimilarityThreshold = 0.8

// StoredArticle 去重回看窗口内已入库文章的最小视图
type StoredArticle struct {
	URL   string
	Title string
}

// Deduplicator 先按 URL 精确判重，再与窗口内标题做模糊判重；
// 窗口量级预期在几百条内，全量两两比较可以接受
type Deduplicator struct {
	threshold float64
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{threshold: titleSimilarityThreshold}
}

// FilterNew 过滤掉与已存文章或本批次内部重复的候选，返回幸存者与重复计数
func (d *Deduplicator) FilterNew(candidates []Article, recent []StoredArticle) ([]Article, int) {
	seenURL := make(map[string]struct{}, len(recent)+len(candidates))
	recentTitles := make([]string, 0, len(recent))
	for _, r := range recent {
		seenURL[r.URL] = struct{}{}
		recentTitles = append(recentTitles, tokensKey(r.Title))
	}

	kept := make([]Article, 0, len(candidates))
	duplicates := 0

	for _, c := range candidates {
		if _, dup := seenURL[c.URL]; dup {
			duplicates++
			continue
		}

		key := tokensKey(c.Title)
		if d.similarToAny(key, recentTitles) {
			duplicates++
			continue
		}

		seenURL[c.URL] = struct{}{}
		recentTitles = append(recentTitles, key)
		kept = append(kept, c)
	}

	return kept, duplicates
}

func (d *Deduplicator) similarToAny(key string, pool []string) bool {
	a := tokenSet(key)
	for _, p := range pool {
		if jaccard(a, tokenSet(p)) >= d.threshold {
			return true
		}
	}
	return false
}

// SortByImportance 重要性降序，平分时新的在前；在下游截断前保证留下的是最重要的
func SortByImportance(list []Article) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].ImportanceScore != list[j].ImportanceScore {
			return list[i].ImportanceScore > list[j].ImportanceScore
		}
		return list[i].PublishedAt.After(list[j].PublishedAt)
	})
}

// CapTop 返回前 n 条；n<=0 表示不设上限
func CapTop(list []Article, n int) []Article {
	if n <= 0 || len(list) <= n {
		return list
	}
	return list[:n]
}

func tokensKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		t = strings.Trim(t, ".,;:!?\"'()[]")
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// jaccard |A∩B| / |A∪B|；两个空集按完全相同处理
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
