package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/study-planner/internal/model"
	"github.com/BuzzLyutic/study-planner/internal/repo"
)

// TaskService keeps the local table and the remote collection in step.
// Every mutation goes to the local store first and is then mirrored to the
// remote one. Nothing is rolled back or retried: when the remote write fails
// the error is returned and the two stores stay apart until the next pull.
//
// A nil user turns every operation into a no-op.
type TaskService struct {
	local  repo.LocalStore
	remote repo.RemoteStore
	logger *zap.Logger
	now    func() time.Time
}

func NewTaskService(local repo.LocalStore, remote repo.RemoteStore, logger *zap.Logger) *TaskService {
	return &TaskService{
		local:  local,
		remote: remote,
		logger: logger,
		now:    time.Now,
	}
}

func (s *TaskService) UserTasks(ctx context.Context, ownerID string) (<-chan []model.Task, error) {
	return s.local.Watch(ctx, ownerID)
}

func (s *TaskService) GetTask(ctx context.Context, id int64, user *model.Identity) (model.Task, error) {
	if user == nil {
		return model.Task{}, repo.ErrorNotFound
	}
	return s.local.Get(ctx, user.UID, id)
}

func (s *TaskService) AddTask(ctx context.Context, t model.Task, user *model.Identity) (model.Task, error) {
	if user == nil {
		return model.Task{}, nil
	}
	t = t.Clone()
	t.UserID = user.UID
	t.UpdatedAt = s.now().UnixMilli()

	created, err := s.local.Insert(ctx, t)
	if err != nil {
		return created, fmt.Errorf("local insert: %w", err)
	}

	if err := s.putRemote(ctx, created); err != nil {
		return created, err
	}
	return created, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, t model.Task, user *model.Identity) (model.Task, error) {
	if user == nil {
		return model.Task{}, nil
	}
	t = t.Clone()
	t.UserID = user.UID
	t.UpdatedAt = s.now().UnixMilli()

	if err := s.local.Update(ctx, t); err != nil {
		return t, fmt.Errorf("local update: %w", err)
	}
	if err := s.putRemote(ctx, t); err != nil {
		return t, err
	}
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, t model.Task, user *model.Identity) error {
	if user == nil {
		return nil
	}
	if err := s.local.Delete(ctx, user.UID, t.ID); err != nil {
		return fmt.Errorf("local delete: %w", err)
	}
	if err := s.remote.Delete(ctx, user.UID, docID(t.ID)); err != nil {
		return fmt.Errorf("remote delete: %w", err)
	}
	return nil
}

// ClearAll wipes the owner's local rows, then deletes every remote document.
// Failed deletes do not stop the loop and are returned joined.
func (s *TaskService) ClearAll(ctx context.Context, user *model.Identity) error {
	if user == nil {
		return nil
	}
	if err := s.local.ClearForOwner(ctx, user.UID); err != nil {
		return fmt.Errorf("local clear: %w", err)
	}

	docs, err := s.remote.GetAll(ctx, user.UID)
	if err != nil {
		return fmt.Errorf("remote fetch: %w", err)
	}

	var errs []error
	for _, d := range docs {
		if err := s.remote.Delete(ctx, user.UID, d.ID); err != nil {
			errs = append(errs, fmt.Errorf("remote delete %s: %w", d.ID, err))
		}
	}
	return errors.Join(errs...)
}

// SyncFromRemote overwrites the owner's local rows with the remote snapshot.
// Documents that do not decode into a task are skipped, as is a later document
// claiming an id already taken. Tasks without an id are numbered locally and
// their documents moved under the new id. It returns the number of tasks
// written locally.
func (s *TaskService) SyncFromRemote(ctx context.Context, user *model.Identity) (int, error) {
	if user == nil {
		return 0, nil
	}

	docs, err := s.remote.GetAll(ctx, user.UID)
	if err != nil {
		return 0, fmt.Errorf("remote fetch: %w", err)
	}

	type candidate struct {
		task model.Task
		src  string
	}
	// Documents stored under their own id claim it before any stray copy.
	var canonical, stray []candidate
	for _, d := range docs {
		t, err := decodeDocument(d)
		if err != nil {
			s.logger.Warn("skipping remote document",
				zap.String("owner", user.UID),
				zap.String("doc_id", d.ID),
				zap.Error(err),
			)
			continue
		}
		t.UserID = user.UID
		if t.ID != 0 && d.ID == docID(t.ID) {
			canonical = append(canonical, candidate{t, d.ID})
		} else {
			stray = append(stray, candidate{t, d.ID})
		}
	}

	tasks := make([]model.Task, 0, len(docs))
	sources := make([]string, 0, len(docs))
	seen := make(map[int64]string, len(docs))
	for _, c := range append(canonical, stray...) {
		if c.task.ID != 0 {
			if first, dup := seen[c.task.ID]; dup {
				s.logger.Warn("skipping remote document with duplicate task id",
					zap.String("owner", user.UID),
					zap.String("doc_id", c.src),
					zap.String("kept_doc_id", first),
					zap.Int64("task_id", c.task.ID),
				)
				continue
			}
			seen[c.task.ID] = c.src
		}
		tasks = append(tasks, c.task)
		sources = append(sources, c.src)
	}

	stored, err := s.local.ReplaceForOwner(ctx, user.UID, tasks)
	if err != nil {
		return 0, fmt.Errorf("local replace: %w", err)
	}

	for i, t := range stored {
		if sources[i] != docID(t.ID) {
			s.rehome(ctx, t, sources[i])
		}
	}

	s.logger.Info("synced tasks from remote",
		zap.String("owner", user.UID),
		zap.Int("documents", len(docs)),
		zap.Int("tasks", len(stored)),
	)
	return len(stored), nil
}

// rehome writes t under its own document id and removes the old document.
// Failures are logged; the next pull retries.
func (s *TaskService) rehome(ctx context.Context, t model.Task, oldID string) {
	if err := s.putRemote(ctx, t); err != nil {
		s.logger.Warn("move remote document failed", zap.String("doc_id", oldID), zap.Error(err))
		return
	}
	if err := s.remote.Delete(ctx, t.UserID, oldID); err != nil {
		s.logger.Warn("delete moved remote document failed", zap.String("doc_id", oldID), zap.Error(err))
	}
}

func (s *TaskService) putRemote(ctx context.Context, t model.Task) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %d: %w", t.ID, err)
	}
	if err := s.remote.Set(ctx, t.UserID, repo.Document{ID: docID(t.ID), Body: body}); err != nil {
		return fmt.Errorf("remote set: %w", err)
	}
	return nil
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// decodeDocument prefers a non-zero decimal document id over the id inside
// the body. ID 0 means the task still needs a local id.
func decodeDocument(d repo.Document) (model.Task, error) {
	var t model.Task
	if err := json.Unmarshal(d.Body, &t); err != nil {
		return t, err
	}
	if id, err := strconv.ParseInt(d.ID, 10, 64); err == nil && id != 0 {
		t.ID = id
	}
	if t.ID < 0 {
		t.ID = 0
	}
	if t.Subtasks == nil {
		t.Subtasks = []model.Subtask{}
	}
	return t, nil
}
