package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// TaskHandler processes a due task. Handlers are expected to mark the task
// done themselves once it needs no further attention.
type TaskHandler interface {
	HandleTask(ctx context.Context, task domain.Task) error
}

// TaskRunner polls the task store and dispatches every due task to the
// handler registered for its operation.
type TaskRunner struct {
	tasks     domain.TaskRepository
	scheduler ports.SchedulerService
	interval  time.Duration

	lock     sync.RWMutex
	handlers map[string]TaskHandler

	ctx        context.Context
	cancelFunc context.CancelFunc
}

func NewTaskRunner(
	tasks domain.TaskRepository, scheduler ports.SchedulerService, interval time.Duration,
) *TaskRunner {
	return &TaskRunner{
		tasks:     tasks,
		scheduler: scheduler,
		interval:  interval,
		handlers:  make(map[string]TaskHandler),
	}
}

func (r *TaskRunner) Register(operation string, handler TaskHandler) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.handlers[operation] = handler
}

func (r *TaskRunner) Start() error {
	if r.interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", r.interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.ctx = ctx
	r.cancelFunc = cancel

	if err := r.scheduler.ScheduleEvery(r.interval, func() {
		r.RunOnce(ctx)
	}); err != nil {
		cancel()
		return err
	}
	r.scheduler.Start()
	return nil
}

func (r *TaskRunner) Stop() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.scheduler.Stop()
}

// RunOnce handles every task due at the time of the call. Handler errors are
// logged and do not prevent the remaining tasks from running.
func (r *TaskRunner) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	tasks, err := r.tasks.AllDue(ctx, time.Now().Unix())
	if err != nil {
		log.WithError(err).Warn("failed to fetch due tasks")
		return
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}

		logger := log.WithFields(log.Fields{
			"task_id":   task.Id,
			"operation": task.Operation,
		})

		r.lock.RLock()
		handler, ok := r.handlers[task.Operation]
		r.lock.RUnlock()
		if !ok {
			logger.Error("no handler for task operation")
			continue
		}

		if err := handler.HandleTask(ctx, task); err != nil {
			logger.WithError(err).Error("failed to handle task")
		}
	}
}
