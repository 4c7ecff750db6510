package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const (
	taskDir         = "tasks"
	taskSequenceKey = "task_queue_seq"
)

type taskRepository struct {
	store *badgerhold.Store
	seq   *badger.Sequence
}

type taskData struct {
	Id          int64
	CreatedAt   int64
	Operation   string
	Payload     []byte
	FilterField string
	NextCheck   int64
	Done        bool
}

func NewTaskRepository(baseDir string, logger badger.Logger) (domain.TaskRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, taskDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open task store: %s", err)
	}
	seq, err := store.Badger().GetSequence([]byte(taskSequenceKey), 100)
	if err != nil {
		// nolint:all
		store.Close()
		return nil, fmt.Errorf("failed to open task sequence: %s", err)
	}
	return &taskRepository{store, seq}, nil
}

func (r *taskRepository) Enqueue(ctx context.Context, task domain.Task) (*domain.Task, error) {
	next, err := r.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next task id: %w", err)
	}

	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	data := taskData{
		Id:          int64(next) + 1,
		CreatedAt:   createdAt.UnixNano(),
		Operation:   task.Operation,
		Payload:     task.Payload,
		FilterField: task.FilterField,
		NextCheck:   task.NextCheck,
		Done:        false,
	}
	if err := r.store.Insert(data.Id, data); err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	stored := data.toTask()
	return &stored, nil
}

func (r *taskRepository) NextDue(ctx context.Context, now int64) (*domain.Task, error) {
	tasks, err := r.AllDue(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(tasks) <= 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

func (r *taskRepository) AllDue(ctx context.Context, now int64) ([]domain.Task, error) {
	query := badgerhold.Where("Done").Eq(false).And("NextCheck").Lt(now)
	return r.find(query)
}

func (r *taskRepository) FindByFilter(ctx context.Context, filter string) ([]domain.Task, error) {
	query := badgerhold.Where("Done").Eq(false).And("FilterField").Eq(filter)
	return r.find(query)
}

func (r *taskRepository) MarkDone(ctx context.Context, id int64) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var data taskData
		if err := r.store.TxGet(tx, id, &data); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return fmt.Errorf("task %d not found", id)
			}
			return err
		}
		if data.Done {
			return nil
		}
		data.Done = true
		return r.store.TxUpdate(tx, id, data)
	})
}

func (r *taskRepository) GetAll(ctx context.Context) ([]domain.Task, error) {
	return r.find(nil)
}

func (r *taskRepository) Close() {
	// nolint:all
	r.seq.Release()
	// nolint:all
	r.store.Close()
}

func (r *taskRepository) find(query *badgerhold.Query) ([]domain.Task, error) {
	var dataList []taskData
	if err := r.store.Find(&dataList, query); err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}

	sort.SliceStable(dataList, func(i, j int) bool {
		if dataList[i].CreatedAt == dataList[j].CreatedAt {
			return dataList[i].Id < dataList[j].Id
		}
		return dataList[i].CreatedAt < dataList[j].CreatedAt
	})

	tasks := make([]domain.Task, 0, len(dataList))
	for _, data := range dataList {
		tasks = append(tasks, data.toTask())
	}
	return tasks, nil
}

func (d taskData) toTask() domain.Task {
	return domain.Task{
		Id:          d.Id,
		CreatedAt:   time.Unix(0, d.CreatedAt),
		Operation:   d.Operation,
		Payload:     d.Payload,
		FilterField: d.FilterField,
		NextCheck:   d.NextCheck,
		Done:        d.Done,
	}
}
