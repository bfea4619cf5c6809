package scheduler

import (
	"context"
	"time"

	"callout/internal/logger"
)

// Poller 以固定间隔驱动一个任务,频道抓取循环用它来节流。
// 任务串行执行,一轮跑完才计下一轮的等待。
type Poller struct {
	Interval       time.Duration
	RunImmediately bool

	ctx context.Context
}

func NewPoller(ctx context.Context, interval time.Duration) *Poller {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Poller{Interval: interval, RunImmediately: true, ctx: ctx}
}

// Start blocks until the context is cancelled.
func (p *Poller) Start(task func()) {
	if p == nil || task == nil {
		return
	}
	if p.Interval <= 0 {
		logger.Warnf("Poller: invalid interval=%s, exit", p.Interval)
		return
	}

	if p.RunImmediately {
		task()
	}

	timer := time.NewTimer(p.Interval)
	defer timer.Stop()
	for {
		select {
		case <-p.ctx.Done():
			logger.Infof("Poller: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
		timer.Reset(p.Interval)
	}
}
