package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/oak/crypto-sentinel/internal/logger"
)

func init() {
	logger.Init(false)
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestStartFiresImmediately(t *testing.T) {
	c := &counter{}
	s := New(c.inc, logger.Global)
	s.Start()
	defer s.Stop()

	if c.value() != 1 {
		t.Fatalf("callback fired %d times on Start, want 1", c.value())
	}
}

func TestCheckSlotsFiresOnceAtMatchingTime(t *testing.T) {
	c := &counter{}
	s := New(c.inc, logger.Global)

	fixed := time.Date(2026, 7, 31, 23, 0, 0, 0, time.Local)
	s.now = func() time.Time { return fixed }

	s.checkSlots()
	if c.value() != 1 {
		t.Fatalf("callback fired %d times, want 1", c.value())
	}

	// Second tick within the same minute must not re-fire (idempotent).
	s.checkSlots()
	if c.value() != 1 {
		t.Fatalf("callback fired %d times after duplicate tick, want 1 (idempotent)", c.value())
	}
}

func TestCheckSlotsFiresAgainNextDay(t *testing.T) {
	c := &counter{}
	s := New(c.inc, logger.Global)

	day1 := time.Date(2026, 7, 31, 4, 0, 0, 0, time.Local)
	s.now = func() time.Time { return day1 }
	s.checkSlots()

	day2 := time.Date(2026, 8, 1, 4, 0, 0, 0, time.Local)
	s.now = func() time.Time { return day2 }
	s.checkSlots()

	if c.value() != 2 {
		t.Fatalf("callback fired %d times across two days, want 2", c.value())
	}
}

func TestCheckSlotsIgnoresNonMatchingTime(t *testing.T) {
	c := &counter{}
	s := New(c.inc, logger.Global)

	fixed := time.Date(2026, 7, 31, 12, 30, 0, 0, time.Local)
	s.now = func() time.Time { return fixed }
	s.checkSlots()

	if c.value() != 0 {
		t.Fatalf("callback fired %d times at non-matching time, want 0", c.value())
	}
}

func TestStartTwiceIsNoOp(t *testing.T) {
	c := &counter{}
	s := New(c.inc, logger.Global)
	s.Start()
	defer s.Stop()
	s.Start()

	if !s.IsRunning() {
		t.Fatalf("IsRunning() = false after double Start, want true")
	}
	if c.value() != 1 {
		t.Fatalf("callback fired %d times after double Start, want 1", c.value())
	}
}
