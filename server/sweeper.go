package server

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/util"
)

// Sweeper 定时清理过期结果
type Sweeper struct {
	cron      *cron.Cron
	store     *ResultStore
	retention time.Duration
}

func NewSweeper(store *ResultStore, spec string, retention time.Duration) (*Sweeper, error) {
	s := &Sweeper{
		cron:      cron.New(),
		store:     store,
		retention: retention,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop 等待正在执行的清理结束
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	n := s.store.Sweep(time.Now(), s.retention)
	if n > 0 {
		util.Logger.Info("expired results removed", zap.Int("count", n))
	}
}
