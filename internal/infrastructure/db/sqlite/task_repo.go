package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/db/sqlite/sqlc/queries"
)

type taskRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewTaskRepository(db *sql.DB) (domain.TaskRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open task repository: db is nil")
	}

	return &taskRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *taskRepository) Enqueue(ctx context.Context, task domain.Task) (*domain.Task, error) {
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	id, err := r.querier.InsertTask(ctx, queries.InsertTaskParams{
		Ts:          createdAt.UnixNano(),
		Operation:   task.Operation,
		JsonData:    string(task.Payload),
		FilterField: task.FilterField,
		NextCheck:   task.NextCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return &domain.Task{
		Id:          id,
		CreatedAt:   time.Unix(0, createdAt.UnixNano()),
		Operation:   task.Operation,
		Payload:     task.Payload,
		FilterField: task.FilterField,
		NextCheck:   task.NextCheck,
		Done:        false,
	}, nil
}

func (r *taskRepository) NextDue(ctx context.Context, now int64) (*domain.Task, error) {
	row, err := r.querier.SelectNextDueTask(ctx, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next due task: %w", err)
	}
	task := toTask(row)
	return &task, nil
}

func (r *taskRepository) AllDue(ctx context.Context, now int64) ([]domain.Task, error) {
	rows, err := r.querier.SelectDueTasks(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due tasks: %w", err)
	}
	return toTasks(rows), nil
}

func (r *taskRepository) FindByFilter(ctx context.Context, filter string) ([]domain.Task, error) {
	rows, err := r.querier.SelectTasksByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks by filter: %w", err)
	}
	return toTasks(rows), nil
}

func (r *taskRepository) MarkDone(ctx context.Context, id int64) error {
	count, err := r.querier.MarkTaskDone(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to mark task done: %w", err)
	}
	if count <= 0 {
		return fmt.Errorf("task %d not found", id)
	}
	return nil
}

func (r *taskRepository) GetAll(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.querier.SelectAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}
	return toTasks(rows), nil
}

func (r *taskRepository) Close() {
	// nolint
	r.db.Close()
}

func toTasks(rows []queries.TaskQueue) []domain.Task {
	tasks := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, toTask(row))
	}
	return tasks
}

func toTask(row queries.TaskQueue) domain.Task {
	return domain.Task{
		Id:          row.ID,
		CreatedAt:   time.Unix(0, row.Ts),
		Operation:   row.Operation,
		Payload:     []byte(row.JsonData),
		FilterField: row.FilterField,
		NextCheck:   row.NextCheck,
		Done:        row.Done,
	}
}
