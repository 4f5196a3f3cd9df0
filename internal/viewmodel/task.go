package viewmodel

import (
	"context"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/study-planner/internal/model"
	"github.com/BuzzLyutic/study-planner/internal/worker"
)

// TaskRepository is the synchronization layer as the view-model uses it.
type TaskRepository interface {
	UserTasks(ctx context.Context, ownerID string) (<-chan []model.Task, error)
	GetTask(ctx context.Context, id int64, user *model.Identity) (model.Task, error)
	AddTask(ctx context.Context, t model.Task, user *model.Identity) (model.Task, error)
	UpdateTask(ctx context.Context, t model.Task, user *model.Identity) (model.Task, error)
	DeleteTask(ctx context.Context, t model.Task, user *model.Identity) error
	ClearAll(ctx context.Context, user *model.Identity) error
	SyncFromRemote(ctx context.Context, user *model.Identity) (int, error)
}

type IdentitySource interface {
	Current() *model.Identity
	Subscribe() (<-chan *model.Identity, func())
}

type Launcher interface {
	Submit(name string, fn worker.Func) *worker.Job
}

// TaskViewModel binds the task stream to whoever is signed in and forwards
// mutations to the repository in the background.
type TaskViewModel struct {
	repo     TaskRepository
	identity IdentitySource
	jobs     Launcher
	logger   *zap.Logger
}

func NewTaskViewModel(repo TaskRepository, identity IdentitySource, jobs Launcher, logger *zap.Logger) *TaskViewModel {
	return &TaskViewModel{
		repo:     repo,
		identity: identity,
		jobs:     jobs,
		logger:   logger,
	}
}

// AllTasks follows the identity signal: on every change the stream for the
// previous owner is cancelled and the new owner's stream takes over. A value
// from the old stream that has not been delivered yet is dropped. Signed out
// maps to owner "". The channel closes when ctx is done.
func (vm *TaskViewModel) AllTasks(ctx context.Context) <-chan []model.Task {
	out := make(chan []model.Task)
	identities, unsubscribe := vm.identity.Subscribe()

	go func() {
		defer close(out)
		defer unsubscribe()

		var (
			inner      <-chan []model.Task
			stopInner  = func() {}
			pending    []model.Task
			hasPending bool
		)
		defer func() { stopInner() }()

		switchTo := func(identity *model.Identity) {
			stopInner()
			hasPending = false
			innerCtx, cancel := context.WithCancel(ctx)
			stopInner = cancel

			ch, err := vm.repo.UserTasks(innerCtx, identity.OwnerID())
			if err != nil {
				vm.logger.Error("subscribe to tasks failed", zap.String("owner", identity.OwnerID()), zap.Error(err))
				inner = nil
				return
			}
			inner = ch
		}

		for {
			var send chan<- []model.Task
			if hasPending {
				send = out
			}

			select {
			case <-ctx.Done():
				return
			case identity, ok := <-identities:
				if !ok {
					return
				}
				switchTo(identity)
			case tasks, ok := <-inner:
				if !ok {
					inner = nil
					continue
				}
				pending, hasPending = tasks, true
			case send <- pending:
				hasPending = false
			}
		}
	}()

	return out
}

// CurrentTasks returns the first snapshot for the identity signed in now.
func (vm *TaskViewModel) CurrentTasks(ctx context.Context) ([]model.Task, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := vm.repo.UserTasks(ctx, vm.identity.Current().OwnerID())
	if err != nil {
		return nil, err
	}
	select {
	case tasks, ok := <-ch:
		if !ok {
			return nil, ctx.Err()
		}
		return tasks, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (vm *TaskViewModel) Task(ctx context.Context, id int64) (model.Task, error) {
	return vm.repo.GetTask(ctx, id, vm.identity.Current())
}

// TaskJob is a job that yields the task as it was written.
type TaskJob struct {
	*worker.Job
	task model.Task
}

// Task is valid once Wait has returned nil.
func (j *TaskJob) Task() model.Task {
	return j.task
}

// The entry points below read the identity when they are called, not when
// the job runs.

func (vm *TaskViewModel) InsertTask(task model.Task) *TaskJob {
	user := vm.identity.Current()
	j := &TaskJob{}
	j.Job = vm.jobs.Submit("insert_task", func(ctx context.Context) error {
		var err error
		j.task, err = vm.repo.AddTask(ctx, task, user)
		return err
	})
	return j
}

func (vm *TaskViewModel) UpdateTask(task model.Task) *TaskJob {
	user := vm.identity.Current()
	j := &TaskJob{}
	j.Job = vm.jobs.Submit("update_task", func(ctx context.Context) error {
		var err error
		j.task, err = vm.repo.UpdateTask(ctx, task, user)
		return err
	})
	return j
}

func (vm *TaskViewModel) DeleteTask(task model.Task) *worker.Job {
	user := vm.identity.Current()
	return vm.jobs.Submit("delete_task", func(ctx context.Context) error {
		return vm.repo.DeleteTask(ctx, task, user)
	})
}

func (vm *TaskViewModel) ClearAll() *worker.Job {
	user := vm.identity.Current()
	return vm.jobs.Submit("clear_all", func(ctx context.Context) error {
		return vm.repo.ClearAll(ctx, user)
	})
}

func (vm *TaskViewModel) SyncFromCloud() *worker.Job {
	user := vm.identity.Current()
	return vm.jobs.Submit("sync_from_cloud", func(ctx context.Context) error {
		_, err := vm.repo.SyncFromRemote(ctx, user)
		return err
	})
}
