package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
	mu        *sync.Mutex
	started   bool
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc, &sync.Mutex{}, false}
}

func (s *service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Nothing to do if already started
	if s.started {
		return
	}
	s.scheduler.StartAsync()
	s.started = true
}

func (s *service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.scheduler.Stop()
	s.scheduler.Clear()
	s.started = false
}

func (s *service) ScheduleEvery(interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval: %s", interval)
	}
	if fn == nil {
		return fmt.Errorf("missing job function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Singleton mode skips a run while the previous one is still in progress.
	_, err := s.scheduler.Every(interval).SingletonMode().Do(fn)
	return err
}
