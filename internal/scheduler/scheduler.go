// Package scheduler implements the Wall-Clock Scheduler: it fires an
// analysis callback once at startup and again every day at 23:00 and 04:00
// local time. Grounded on original_source/services/scheduler_service.py's
// SchedulerService (start_scheduler / _scheduler_loop / _run_scheduled_analysis),
// with the Python daemon thread's minute-granularity sleep(60) loop kept as
// a time.Ticker in the teacher's worker-goroutine idiom. Per spec.md §9 a
// dedicated cron library was rejected: the documented double-wake tolerance
// (idempotent via a last-fired-date stamp) is part of the contract, not an
// incidental detail a generic library would preserve.
package scheduler

import (
	"sync"
	"time"

	"github.com/oak/crypto-sentinel/internal/logger"
)

const tickInterval = time.Minute

var fireSlots = []struct {
	hour   int
	minute int
	label  string
}{
	{hour: 23, minute: 0, label: "23:00"},
	{hour: 4, minute: 0, label: "04:00"},
}

// Callback runs one scheduled analysis pass.
type Callback func()

// Scheduler polls a minute ticker and fires Callback at startup plus every
// daily slot in fireSlots, each slot idempotent per calendar day.
type Scheduler struct {
	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	callback Callback
	log      *logger.ColorLogger

	lastFired map[string]time.Time // slot label -> date last fired (zero time's Y/M/D)

	now func() time.Time
}

// New builds a Scheduler bound to callback, which runs synchronously on the
// scheduler's own goroutine each time a slot fires.
func New(callback Callback, log *logger.ColorLogger) *Scheduler {
	return &Scheduler{
		callback:  callback,
		log:       log,
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Start runs the initial analysis immediately, then launches the
// minute-tick polling loop. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		if s.log != nil {
			s.log.Warning("定时任务调度器已在运行")
		}
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("启动时执行基础分析...")
	}
	s.fire()

	go s.loop()

	if s.log != nil {
		s.log.Success("定时任务调度器已启动")
		s.log.Info("定时任务：每晚23:00、凌晨4:00执行宏观+市场+基本面分析")
	}
}

// Stop ends the polling loop. The next Start will run the startup analysis
// again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("定时任务调度器已停止")
	}
}

// IsRunning reports whether the polling loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.checkSlots()
		}
	}
}

// checkSlots fires the callback for any slot whose hour/minute matches now
// and that has not already fired today. Exposed at package level for tests
// that want to drive a fake clock directly.
func (s *Scheduler) checkSlots() {
	now := s.now()
	today := truncateToDate(now)

	for _, slot := range fireSlots {
		if now.Hour() != slot.hour || now.Minute() != slot.minute {
			continue
		}

		s.mu.Lock()
		already := s.lastFired[slot.label].Equal(today)
		if !already {
			s.lastFired[slot.label] = today
		}
		s.mu.Unlock()

		if already {
			continue
		}

		if s.log != nil {
			s.log.SchedulerFire(slot.label)
		}
		s.fire()
	}
}

func (s *Scheduler) fire() {
	if s.callback == nil {
		if s.log != nil {
			s.log.Warning("未设置分析回调函数")
		}
		return
	}
	s.callback()
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
