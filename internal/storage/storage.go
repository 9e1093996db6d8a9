package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/matchday/newswire/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Article 文章表；url 唯一索引是去重的最终兜底，入库后不再修改。
// featured 由外部运营侧写入，采集管线只在清理时读它。
type Article struct {
	ID          string                      `gorm:"primaryKey;size:40" json:"id"`
	Title       string                      `gorm:"size:512" json:"title"`
	Description string                      `gorm:"size:2000" json:"description"`
	URL         string                      `gorm:"size:1024;uniqueIndex" json:"url"`
	ImageURL    string                      `gorm:"size:1024" json:"imageUrl"`
	Source      string                      `gorm:"size:128;index" json:"source"`
	SourceTier  int                         `json:"sourceTier"`
	Category    string                      `gorm:"size:32;index" json:"category"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"tags"`
	PublishedAt time.Time                   `gorm:"index" json:"publishedAt"`

	TrustScore      int  `json:"trustScore"`
	ImportanceScore int  `gorm:"index" json:"importanceScore"`
	IsBreaking      bool `json:"isBreaking"`
	Priority        int  `json:"priority"`
	Featured        bool `gorm:"index" json:"featured"`

	ExtraData datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Article) TableName() string { return "articles" }

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Article{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 截断，防止上游异常长文本超过字段长度导致入库失败
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// SaveArticles 逐条以 url 为冲突键做 DO NOTHING 插入：重复 url 天然是 no-op，
// 返回实际新增条数
func (s *Store) SaveArticles(ctx context.Context, items []processor.Article) (int, error) {
	saved := 0
	for _, it := range items {
		row := &Article{
			ID:              it.ID,
			Title:           truncateRunesDB(toValidUTF8(it.Title), 512),
			Description:     truncateRunesDB(toValidUTF8(it.Description), 2000),
			URL:             it.URL,
			ImageURL:        it.ImageURL,
			Source:          it.Source,
			SourceTier:      it.SourceTier,
			Category:        it.Category,
			Tags:            datatypes.NewJSONSlice(it.Tags),
			PublishedAt:     it.PublishedAt,
			TrustScore:      it.TrustScore,
			ImportanceScore: it.ImportanceScore,
			IsBreaking:      it.IsBreaking,
			Priority:        it.Priority,
			ExtraData:       datatypes.JSONMap(it.ExtraData),
		}

		res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoNothing: true,
		}).Create(row)
		if res.Error != nil {
			return saved, fmt.Errorf("save article %s: %w", it.URL, res.Error)
		}
		if res.RowsAffected > 0 {
			saved++
		}
	}
	return saved, nil
}

// RecentArticles 返回回看窗口内已入库文章的 url 与标题，供模糊去重用
func (s *Store) RecentArticles(ctx context.Context, since time.Time) ([]processor.StoredArticle, error) {
	var rows []Article
	if err := s.DB.WithContext(ctx).
		Select("url", "title").
		Where("created_at >= ?", since).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]processor.StoredArticle, 0, len(rows))
	for _, r := range rows {
		out = append(out, processor.StoredArticle{URL: r.URL, Title: r.Title})
	}
	return out, nil
}

// DeleteOlderThan 清理超过保留期的非 featured 文章，返回删除条数
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("published_at < ? AND featured = ?", cutoff, false).
		Delete(&Article{})
	return res.RowsAffected, res.Error
}

// ListArticles 按分类与排序返回文章，Redis 做 5 分钟读缓存
// sort: hot(默认，按重要性) / latest
func (s *Store) ListArticles(category, sort string, limit int) ([]Article, error) {
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	if sort != "latest" {
		sort = "hot"
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("news:list:%s:%s:%d", category, sort, limit)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Article
	db := s.DB.Model(&Article{})
	if category != "" {
		db = db.Where("category = ?", category)
	}
	switch sort {
	case "latest":
		db = db.Order("published_at DESC")
	default:
		db = db.Order("importance_score DESC").Order("published_at DESC")
	}
	if err := db.Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}
