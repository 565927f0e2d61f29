package engine

import (
	"context"
	"sync"
	"time"
)

// SliceFunc executes slice number slice (0-based) of a TWAP order and
// reports whether more slices should follow.
type SliceFunc func(ctx context.Context, orderID string, slice int) (more bool)

// Scheduler runs the slices of TWAP orders over time. Cancel suppresses
// every slice of an order that has not started yet.
type Scheduler interface {
	Schedule(orderID string, slices int, interval time.Duration, fn SliceFunc)
	Cancel(orderID string)
}

var _ Scheduler = (*TimerScheduler)(nil)

// TimerScheduler runs one goroutine per TWAP order. Slice 0 fires
// immediately and slice i fires i intervals later.
type TimerScheduler struct {
	ctx   context.Context
	stop  context.CancelFunc
	mu    sync.Mutex
	tasks map[string]*twapTask
	wg    sync.WaitGroup
}

type twapTask struct {
	cancel context.CancelFunc
}

// NewTimerScheduler creates a scheduler whose tasks all stop when parent
// is cancelled or Stop is called.
func NewTimerScheduler(parent context.Context) *TimerScheduler {
	ctx, stop := context.WithCancel(parent)
	return &TimerScheduler{
		ctx:   ctx,
		stop:  stop,
		tasks: make(map[string]*twapTask),
	}
}

// Schedule starts the slice loop for orderID, replacing any previous task
// for the same order.
func (s *TimerScheduler) Schedule(orderID string, slices int, interval time.Duration, fn SliceFunc) {
	ctx, cancel := context.WithCancel(s.ctx)
	task := &twapTask{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.tasks[orderID]; ok {
		prev.cancel()
	}
	s.tasks[orderID] = task
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(orderID, task)
		run(ctx, orderID, slices, interval, fn)
	}()
}

func run(ctx context.Context, orderID string, slices int, interval time.Duration, fn SliceFunc) {
	for i := 0; i < slices; i++ {
		if i > 0 && interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return
		}
		if !fn(ctx, orderID, i) {
			return
		}
	}
}

// Cancel stops the task for orderID. A slice already running completes.
func (s *TimerScheduler) Cancel(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[orderID]; ok {
		task.cancel()
		delete(s.tasks, orderID)
	}
}

// Stop cancels every task and waits for running slices to return.
func (s *TimerScheduler) Stop() {
	s.stop()
	s.wg.Wait()
}

// Active returns the number of TWAP orders with slices still pending.
func (s *TimerScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *TimerScheduler) finish(orderID string, task *twapTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.cancel()
	if s.tasks[orderID] == task {
		delete(s.tasks, orderID)
	}
}

// SliceQuantity returns the quantity of slice i when total is split into n
// equal slices. The last slice absorbs the remainder.
func SliceQuantity(total int64, n, i int) int64 {
	if n <= 0 || i < 0 || i >= n {
		return 0
	}
	base := total / int64(n)
	if i == n-1 {
		return total - base*int64(n-1)
	}
	return base
}
