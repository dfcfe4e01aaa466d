package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestLimiter_PerSecondCeiling(t *testing.T) {
	limiter := NewLimiter(&Config{RequestsPerSecond: 3, RequestsPerMinute: 100}, testLogger())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.AcquireSlot(ctx); err != nil {
			t.Fatalf("AcquireSlot %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// Five calls at 3/s keep a minimum gap of 1/3s between consecutive
	// calls: the fifth cannot start before 4/3s.
	if elapsed < 4*time.Second/3-50*time.Millisecond {
		t.Errorf("Five calls finished in %v; the per-second ceiling was not enforced", elapsed)
	}
	if limiter.InFlight() != 5 {
		t.Errorf("Expected 5 recorded calls, got %d", limiter.InFlight())
	}
}

func TestLimiter_PerMinuteCeiling(t *testing.T) {
	limiter := NewLimiter(&Config{RequestsPerSecond: 1000, RequestsPerMinute: 2}, testLogger())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := limiter.AcquireSlot(ctx); err != nil {
			t.Fatalf("AcquireSlot %d failed: %v", i, err)
		}
	}

	// The third call must wait for the minute window; give it a short
	// deadline and expect cancellation instead.
	deadlineCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	err := limiter.AcquireSlot(deadlineCtx)
	if err == nil {
		t.Fatal("Expected the minute ceiling to block the third call")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if limiter.InFlight() != 2 {
		t.Errorf("Cancelled waits must not leave reservations, got %d", limiter.InFlight())
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	limiter := NewLimiter(&Config{RequestsPerSecond: 1000, RequestsPerMinute: 5}, testLogger())

	base := time.Now()
	current := base
	limiter.now = func() time.Time { return current }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		current = current.Add(time.Millisecond)
		if err := limiter.AcquireSlot(ctx); err != nil {
			t.Fatalf("AcquireSlot %d failed: %v", i, err)
		}
	}
	if limiter.InFlight() != 5 {
		t.Fatalf("Expected 5 in-flight, got %d", limiter.InFlight())
	}

	// Advance past the minute window: all timestamps age out.
	current = base.Add(2 * time.Minute)
	if limiter.InFlight() != 0 {
		t.Errorf("Expected the window to slide empty, got %d", limiter.InFlight())
	}

	if err := limiter.AcquireSlot(ctx); err != nil {
		t.Errorf("AcquireSlot after the window slid should succeed, got %v", err)
	}
}

func TestLimiter_CancelledContext(t *testing.T) {
	limiter := NewLimiter(&Config{RequestsPerSecond: 1, RequestsPerMinute: 100}, testLogger())
	ctx := context.Background()

	if err := limiter.AcquireSlot(ctx); err != nil {
		t.Fatalf("First AcquireSlot failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	if err := limiter.AcquireSlot(cancelled); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestLimiter_AdmissionFollowsArrivalOrder(t *testing.T) {
	limiter := NewLimiter(&Config{RequestsPerSecond: 20, RequestsPerMinute: 1000}, testLogger())
	ctx := context.Background()

	// Occupy the window so every subsequent caller has to queue.
	if err := limiter.AcquireSlot(ctx); err != nil {
		t.Fatalf("Initial AcquireSlot failed: %v", err)
	}

	const waiters = 5
	admitted := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := limiter.AcquireSlot(ctx); err != nil {
				t.Errorf("AcquireSlot %d failed: %v", id, err)
				return
			}
			admitted <- id
		}(i)
		// Stagger arrivals well inside the 50ms admission gap.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()
	close(admitted)

	order := make([]int, 0, waiters)
	for id := range admitted {
		order = append(order, id)
	}
	for i, id := range order {
		if id != i {
			t.Fatalf("Admissions out of arrival order: %v", order)
		}
	}
}

func TestLimiter_CancelledWaiterPromotesNext(t *testing.T) {
	limiter := NewLimiter(&Config{RequestsPerSecond: 4, RequestsPerMinute: 1000}, testLogger())
	ctx := context.Background()

	if err := limiter.AcquireSlot(ctx); err != nil {
		t.Fatalf("Initial AcquireSlot failed: %v", err)
	}

	headCtx, cancelHead := context.WithCancel(ctx)
	headErr := make(chan error, 1)
	go func() { headErr <- limiter.AcquireSlot(headCtx) }()
	time.Sleep(20 * time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- limiter.AcquireSlot(ctx) }()
	time.Sleep(20 * time.Millisecond)

	cancelHead()
	if err := <-headErr; err != context.Canceled {
		t.Errorf("Expected context.Canceled for the abandoned head, got %v", err)
	}

	select {
	case err := <-second:
		if err != nil {
			t.Errorf("Promoted waiter failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Second waiter was never admitted after the head abandoned")
	}
}

func TestLimiter_NilConfigUsesDefaults(t *testing.T) {
	limiter := NewLimiter(nil, testLogger())

	if limiter.config.RequestsPerSecond != 3 || limiter.config.RequestsPerMinute != 100 {
		t.Errorf("Expected default ceilings 3/s and 100/min, got %+v", limiter.config)
	}
}

func TestLimiter_ConcurrentAcquisition(t *testing.T) {
	limiter := NewLimiter(&Config{RequestsPerSecond: 1000, RequestsPerMinute: 100000}, testLogger())
	ctx := context.Background()

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			done <- limiter.AcquireSlot(ctx)
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Errorf("Concurrent AcquireSlot failed: %v", err)
		}
	}
	if limiter.InFlight() != 20 {
		t.Errorf("Expected 20 recorded calls, got %d", limiter.InFlight())
	}
}
