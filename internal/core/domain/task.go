package domain

import (
	"context"
	"time"
)

const (
	pwtxidFilterPrefix = "pwtxid:"
	pushFilterPrefix   = "rqhs:"
)

// Task is a unit of deferred work. Tasks are never deleted and their
// NextCheck never changes: rescheduling means enqueuing a new task.
type Task struct {
	Id          int64
	CreatedAt   time.Time
	Operation   string
	Payload     []byte
	FilterField string
	NextCheck   int64
	Done        bool
}

// IsDue reports whether the task is eligible for processing at now.
func (t Task) IsDue(now int64) bool {
	return !t.Done && t.NextCheck < now
}

// PwtxidFilter is the filter value of the task processing a password
// transaction.
func PwtxidFilter(pwtxid string) string {
	return pwtxidFilterPrefix + pwtxid
}

// PushFilter is the filter value marking a future transaction as pushed.
func PushFilter(futureHash string) string {
	return pushFilterPrefix + futureHash
}

type TaskRepository interface {
	// Enqueue persists a not-done task and returns it with its assigned id.
	Enqueue(ctx context.Context, task Task) (*Task, error)
	// NextDue returns the oldest eligible task, or nil if there is none.
	NextDue(ctx context.Context, now int64) (*Task, error)
	// AllDue returns every eligible task, oldest first.
	AllDue(ctx context.Context, now int64) ([]Task, error)
	// FindByFilter returns the not-done tasks with the given filter value.
	FindByFilter(ctx context.Context, filter string) ([]Task, error)
	MarkDone(ctx context.Context, id int64) error
	GetAll(ctx context.Context) ([]Task, error)
	Close()
}
