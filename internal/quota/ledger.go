package quota

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

// Record 每个源每天一行的调用账本；requests_used 只增不减，历史行永不删除
type Record struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	Source        string                      `gorm:"size:64;uniqueIndex:idx_source_date" json:"source"`
	Date          string                      `gorm:"size:10;uniqueIndex:idx_source_date" json:"date"`
	RequestsUsed  int                         `json:"requestsUsed"`
	DailyLimit    int                         `json:"dailyLimit"`
	MonthlyLimit  int                         `json:"monthlyLimit"`
	KeywordsUsed  datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"keywordsUsed"`
	LastRequestAt time.Time                   `json:"lastRequestAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Record) TableName() string { return "api_usage_tracking" }

// SourceLimits 单个源的月度上限；日配额由月度均摊推得，忙日（周末）上浮
type SourceLimits struct {
	MonthlyLimit      int
	BusyDayMultiplier float64 // <=0 时取默认 1.5
}

// Ledger 配额账本。计数更新必须走数据库侧的原子自增，
// 并发的管线运行不允许读改写竞争
type Ledger struct {
	db     *gorm.DB
	limits map[string]SourceLimits
}

func NewLedger(db *gorm.DB, limits map[string]SourceLimits) (*Ledger, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Ledger{db: db, limits: limits}, nil
}

// DailyAllowance 月度上限均摊到当月天数；周末视作忙日按倍数上浮
func (l *Ledger) DailyAllowance(source string, date time.Time) int {
	limits, ok := l.limits[source]
	if !ok {
		return 0
	}
	return dailyAllowance(limits, date)
}

func dailyAllowance(limits SourceLimits, date time.Time) int {
	if limits.MonthlyLimit <= 0 {
		return 0
	}
	base := limits.MonthlyLimit / daysInMonth(date)
	if base < 1 {
		base = 1
	}

	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		mult := limits.BusyDayMultiplier
		if mult <= 0 {
			mult = 1.5
		}
		return int(float64(base) * mult)
	}
	return base
}

func daysInMonth(date time.Time) int {
	y, m, _ := date.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, date.Location()).Day()
}

// RemainingBudget 当日剩余额度 = 日配额 - 已用；无当日记录按全额处理。
// 数据库出错时错误原样上抛，由调用方按“额度耗尽”处理（fail closed）
func (l *Ledger) RemainingBudget(ctx context.Context, source string, date time.Time) (int, error) {
	allowance := l.DailyAllowance(source, date)

	var rec Record
	err := l.db.WithContext(ctx).
		Where("source = ? AND date = ?", source, date.Format(dateLayout)).
		First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return allowance, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: read %s/%s: %w", source, date.Format(dateLayout), err)
	}

	remaining := allowance - rec.RequestsUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// RecordUsage 以 (source,date) 为冲突键 upsert，计数用数据库侧表达式自增；
// 关键词集合的合并是尽力而为的二段更新，只有计数必须严格原子
func (l *Ledger) RecordUsage(ctx context.Context, source string, date time.Time, count int, keywords []string) error {
	if count <= 0 {
		return nil
	}

	now := time.Now()
	dateStr := date.Format(dateLayout)
	limits := l.limits[source]

	rec := Record{
		Source:        source,
		Date:          dateStr,
		RequestsUsed:  count,
		DailyLimit:    l.DailyAllowance(source, date),
		MonthlyLimit:  limits.MonthlyLimit,
		KeywordsUsed:  datatypes.NewJSONSlice(keywords),
		LastRequestAt: now,
	}

	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"requests_used":   gorm.Expr("api_usage_tracking.requests_used + ?", count),
			"last_request_at": now,
			"updated_at":      now,
		}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("ledger: record usage %s/%s: %w", source, dateStr, err)
	}

	if len(keywords) > 0 {
		if err := l.mergeKeywords(ctx, source, dateStr, keywords); err != nil {
			return fmt.Errorf("ledger: merge keywords %s/%s: %w", source, dateStr, err)
		}
	}
	return nil
}

func (l *Ledger) mergeKeywords(ctx context.Context, source, dateStr string, keywords []string) error {
	var rec Record
	if err := l.db.WithContext(ctx).
		Where("source = ? AND date = ?", source, dateStr).
		First(&rec).Error; err != nil {
		return err
	}

	merged := mergeKeywordSets(rec.KeywordsUsed, keywords)
	if len(merged) == len(rec.KeywordsUsed) {
		return nil
	}
	return l.db.WithContext(ctx).Model(&Record{}).
		Where("source = ? AND date = ?", source, dateStr).
		Update("keywords_used", datatypes.NewJSONSlice(merged)).Error
}

func mergeKeywordSets(existing []string, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, k := range existing {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for _, k := range incoming {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// UsedKeywords 当日已检索过的关键词，排程时用于避免同日重复
func (l *Ledger) UsedKeywords(ctx context.Context, source string, date time.Time) ([]string, error) {
	var rec Record
	err := l.db.WithContext(ctx).
		Where("source = ? AND date = ?", source, date.Format(dateLayout)).
		First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.KeywordsUsed, nil
}

// Usage 返回当日账本行（可能不存在），供上层汇报用
func (l *Ledger) Usage(ctx context.Context, source string, date time.Time) (*Record, error) {
	var rec Record
	err := l.db.WithContext(ctx).
		Where("source = ? AND date = ?", source, date.Format(dateLayout)).
		First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MonthlyProjection 以当月已发生的日均用量线性外推整月用量
func (l *Ledger) MonthlyProjection(ctx context.Context, source string, date time.Time) (int, error) {
	monthPrefix := date.Format("2006-01") + "%"

	var total int64
	err := l.db.WithContext(ctx).Model(&Record{}).
		Where("source = ? AND date LIKE ?", source, monthPrefix).
		Select("COALESCE(SUM(requests_used), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}

	day := date.Day()
	if day == 0 {
		day = 1
	}
	return int(total) / day * daysInMonth(date), nil
}
