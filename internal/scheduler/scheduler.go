package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/matchday/newswire/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// ErrRunInProgress 已有一轮在跑时拒绝再次触发
var ErrRunInProgress = errors.New("collect run already in progress")

type Scheduler struct {
	cron    *cron.Cron
	pipe    *pipeline.Pipeline
	running atomic.Bool
}

func New(spec string, pipe *pipeline.Pipeline) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron: c,
		pipe: pipe,
	}

	_, err := c.AddFunc(spec, s.runScheduled)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与进程启动期的迁移和健康检查争抢资源
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runScheduled()
	})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，API 手动触发用。
// 同一时刻最多一轮在跑，重入直接返回 ErrRunInProgress
func (s *Scheduler) RunOnce(ctx context.Context, force bool) (*pipeline.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	return s.pipe.Run(ctx, force)
}

func (s *Scheduler) runScheduled() {
	log.Println("start collect job...")
	report, err := s.RunOnce(context.Background(), false)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			log.Println("collect job skipped: previous run still in progress")
			return
		}
		log.Printf("collect job error: %v", err)
		return
	}
	log.Printf("collect job done: collected=%d saved=%d duplicates=%d",
		report.Collected, report.Saved, report.Duplicates)
}
