package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/study-planner/internal/auth"
	"github.com/BuzzLyutic/study-planner/internal/display"
	"github.com/BuzzLyutic/study-planner/internal/model"
	"github.com/BuzzLyutic/study-planner/internal/repo"
	"github.com/BuzzLyutic/study-planner/internal/viewmodel"
	"github.com/BuzzLyutic/study-planner/internal/worker"
	"github.com/BuzzLyutic/study-planner/pkg/respond"
)

var errNotSignedIn = errors.New("not signed in")

type TaskHandler struct {
	vm       *viewmodel.TaskViewModel
	session  *auth.Session
	settings *repo.SettingsRepo
	logger   *zap.Logger
	loc      *time.Location
}

func NewTaskHandler(vm *viewmodel.TaskViewModel, session *auth.Session, settings *repo.SettingsRepo, logger *zap.Logger, loc *time.Location) *TaskHandler {
	if loc == nil {
		loc = time.Local
	}
	return &TaskHandler{
		vm:       vm,
		session:  session,
		settings: settings,
		logger:   logger,
		loc:      loc,
	}
}

type minutesRequest struct {
	Minutes int64 `json:"minutes"`
}

type subtaskRequest struct {
	Title      *string `json:"title"`
	IsFinished *bool   `json:"isFinished"`
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := display.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	tasks, err := h.vm.CurrentTasks(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, display.Render(tasks, filter, r.URL.Query().Get("q")))
}

// Stream pushes a rendered view as a server-sent event on every change of
// the task list, following sign-in and sign-out.
func (h *TaskHandler) Stream(w http.ResponseWriter, r *http.Request) {
	filter, err := display.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	query := r.URL.Query().Get("q")

	flusher, err := respond.StartStream(w)
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	for tasks := range h.vm.AllTasks(r.Context()) {
		if err := respond.Event(w, flusher, "tasks", display.Render(tasks, filter, query)); err != nil {
			h.logger.Debug("stream closed", zap.Error(err))
			return
		}
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.requireUser(w, r) {
		return
	}
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var form model.NewTaskForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	task, err := form.Task(h.loc)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	job := h.vm.InsertTask(task)
	if err := job.Wait(r.Context()); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	created := job.Task()
	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%d", created.ID))
	respond.JSON(w, r, http.StatusCreated, created)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

// Update replaces the whole task. Subtasks missing from the body are dropped.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req model.Task
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	req.ID = current.ID
	if req.Subtasks == nil {
		req.Subtasks = []model.Subtask{}
	}

	h.save(w, r, req)
}

func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(t model.Task) (model.Task, error) {
		return model.ToggleFinished(t), nil
	})
}

func (h *TaskHandler) LogTime(w http.ResponseWriter, r *http.Request) {
	var req minutesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	h.edit(w, r, func(t model.Task) (model.Task, error) {
		return model.LogMinutes(t, req.Minutes)
	})
}

func (h *TaskHandler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	var req subtaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	h.edit(w, r, func(t model.Task) (model.Task, error) {
		return model.AddSubtask(t, *req.Title)
	})
}

func (h *TaskHandler) EditSubtask(w http.ResponseWriter, r *http.Request) {
	index, ok := h.subtaskIndex(w, r)
	if !ok {
		return
	}
	var req subtaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	h.edit(w, r, func(t model.Task) (model.Task, error) {
		var err error
		if req.Title != nil {
			if t, err = model.RenameSubtask(t, index, *req.Title); err != nil {
				return t, err
			}
		}
		if req.IsFinished != nil {
			if t, err = model.SetSubtaskFinished(t, index, *req.IsFinished); err != nil {
				return t, err
			}
		}
		return t, nil
	})
}

func (h *TaskHandler) LogSubtaskTime(w http.ResponseWriter, r *http.Request) {
	index, ok := h.subtaskIndex(w, r)
	if !ok {
		return
	}
	var req minutesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	h.edit(w, r, func(t model.Task) (model.Task, error) {
		return model.LogSubtaskMinutes(t, index, req.Minutes)
	})
}

func (h *TaskHandler) RemoveSubtask(w http.ResponseWriter, r *http.Request) {
	index, ok := h.subtaskIndex(w, r)
	if !ok {
		return
	}
	h.edit(w, r, func(t model.Task) (model.Task, error) {
		return model.RemoveSubtask(t, index)
	})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	if err := h.vm.DeleteTask(task).Wait(r.Context()); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.requireUser(w, r) {
		return
	}
	if err := h.vm.ClearAll().Wait(r.Context()); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if !h.requireUser(w, r) {
		return
	}
	if err := h.vm.SyncFromCloud().Wait(r.Context()); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	tasks, err := h.vm.CurrentTasks(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]int{"tasks": len(tasks)})
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.vm.CurrentTasks(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, display.Summarize(tasks))
}

// edit reads the task, applies fn to a copy and writes the whole task back.
func (h *TaskHandler) edit(w http.ResponseWriter, r *http.Request, fn func(model.Task) (model.Task, error)) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	updated, err := fn(task)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	h.save(w, r, updated)
}

func (h *TaskHandler) save(w http.ResponseWriter, r *http.Request, t model.Task) {
	job := h.vm.UpdateTask(t)
	if err := job.Wait(r.Context()); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, job.Task())
}

func (h *TaskHandler) loadTask(w http.ResponseWriter, r *http.Request) (model.Task, bool) {
	if !h.requireUser(w, r) {
		return model.Task{}, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid id")
		return model.Task{}, false
	}
	task, err := h.vm.Task(r.Context(), id)
	if err != nil {
		h.handleErrors(w, r, err)
		return model.Task{}, false
	}
	return task, true
}

func (h *TaskHandler) subtaskIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid subtask index")
		return 0, false
	}
	return index, true
}

func (h *TaskHandler) requireUser(w http.ResponseWriter, r *http.Request) bool {
	if h.session.Current() == nil {
		h.handleErrors(w, r, errNotSignedIn)
		return false
	}
	return true
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errNotSignedIn):
		respond.Error(w, r, http.StatusUnauthorized, "not signed in")
	case errors.Is(err, auth.ErrInvalidToken):
		respond.Error(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, model.ErrSubtaskIndex):
		respond.Error(w, r, http.StatusNotFound, "subtask not found")
	case errors.Is(err, model.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, worker.ErrStopped), errors.Is(err, context.Canceled):
		respond.Error(w, r, http.StatusServiceUnavailable, "shutting down")
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
