package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/BuzzLyutic/study-planner/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

const taskColumns = `id, user_id, title, description, subject, deadline, is_finished, log_time, subtasks, updated_at`

// TaskRepo is the local task table.
type TaskRepo struct {
	db     *sql.DB
	hub    *changeHub
	logger *zap.Logger
}

func NewTaskRepo(db *sql.DB, logger *zap.Logger) *TaskRepo {
	return &TaskRepo{
		db:     db,
		hub:    newChangeHub(),
		logger: logger,
	}
}

// Watch emits the owner's rows right away and again after every committed
// change for that owner. A reader that falls behind only sees the newest
// snapshot. The channel closes when ctx is done.
func (r *TaskRepo) Watch(ctx context.Context, ownerID string) (<-chan []model.Task, error) {
	changed := r.hub.subscribe(ownerID)

	first, err := r.List(ctx, ownerID)
	if err != nil {
		r.hub.unsubscribe(ownerID, changed)
		return nil, err
	}

	out := make(chan []model.Task, 1)
	out <- first

	go func() {
		defer close(out)
		defer r.hub.unsubscribe(ownerID, changed)

		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}

			tasks, err := r.List(ctx, ownerID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Error("watch query failed", zap.String("owner", ownerID), zap.Error(err))
				continue
			}

			// Replace whatever the reader has not picked up yet.
			select {
			case <-out:
			default:
			}
			select {
			case out <- tasks:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (r *TaskRepo) List(ctx context.Context, ownerID string) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = ?
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Get(ctx context.Context, ownerID string, id int64) (model.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = ? AND id = ?
	`, ownerID, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

// Insert stores t. An ID of 0 is replaced by the next free id for the owner.
func (r *TaskRepo) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	if t.ID == 0 {
		if t.ID, err = nextID(ctx, tx, t.UserID); err != nil {
			return t, err
		}
	}

	if err := insertTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}

	r.hub.notify(t.UserID)
	return t, nil
}

// Update replaces the stored row with the same (owner, id). Missing rows are ignored.
func (r *TaskRepo) Update(ctx context.Context, t model.Task) error {
	subtasks, err := encodeSubtasks(t.Subtasks)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, subject = ?, deadline = ?, is_finished = ?,
		    log_time = ?, subtasks = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, t.Title, t.Description, t.Subject, t.Deadline, t.IsFinished,
		t.LogTime, subtasks, t.UpdatedAt, t.UserID, t.ID)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n > 0 {
		r.hub.notify(t.UserID)
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ? AND id = ?", ownerID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.hub.notify(ownerID)
	}
	return nil
}

func (r *TaskRepo) ClearForOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", ownerID); err != nil {
		return err
	}
	r.hub.notify(ownerID)
	return nil
}

// ReplaceForOwner swaps the owner's whole row-set for tasks in one transaction.
// Tasks with ID 0 get the next free ids once every explicit id is in place.
// The stored tasks are returned in input order.
func (r *TaskRepo) ReplaceForOwner(ctx context.Context, ownerID string, tasks []model.Task) ([]model.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", ownerID); err != nil {
		return nil, err
	}

	stored := make([]model.Task, len(tasks))
	var unnumbered []int
	for i, t := range tasks {
		t.UserID = ownerID
		stored[i] = t
		if t.ID == 0 {
			unnumbered = append(unnumbered, i)
			continue
		}
		if err := insertTask(ctx, tx, t); err != nil {
			return nil, fmt.Errorf("insert task %d: %w", t.ID, err)
		}
	}
	for _, i := range unnumbered {
		if stored[i].ID, err = nextID(ctx, tx, ownerID); err != nil {
			return nil, err
		}
		if err := insertTask(ctx, tx, stored[i]); err != nil {
			return nil, fmt.Errorf("insert task %d: %w", stored[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	r.hub.notify(ownerID)
	return stored, nil
}

func nextID(ctx context.Context, tx *sql.Tx, ownerID string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM tasks WHERE user_id = ?`, ownerID,
	).Scan(&id)
	return id, err
}

func insertTask(ctx context.Context, tx *sql.Tx, t model.Task) error {
	subtasks, err := encodeSubtasks(t.Subtasks)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.Title, t.Description, t.Subject, t.Deadline,
		t.IsFinished, t.LogTime, subtasks, t.UpdatedAt)
	return mapError(err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var (
		t        model.Task
		subtasks string
	)
	err := s.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Subject, &t.Deadline,
		&t.IsFinished, &t.LogTime, &subtasks, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal([]byte(subtasks), &t.Subtasks); err != nil {
		return t, fmt.Errorf("decode subtasks of task %d: %w", t.ID, err)
	}
	if t.Subtasks == nil {
		t.Subtasks = []model.Subtask{}
	}
	return t, nil
}

func encodeSubtasks(subtasks []model.Subtask) (string, error) {
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	b, err := json.Marshal(subtasks)
	return string(b), err
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// Primary result code; extended codes carry more bits above the low byte.
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return fmt.Errorf("%w: %v", ErrorConflict, err)
		}
	}
	return err
}
