package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/study-planner/internal/model"
	"github.com/BuzzLyutic/study-planner/internal/repo"
)

// MockRemoteStore - мок удалённого хранилища
type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) Set(ctx context.Context, ownerID string, doc repo.Document) error {
	args := m.Called(ctx, ownerID, doc)
	return args.Error(0)
}

func (m *MockRemoteStore) GetAll(ctx context.Context, ownerID string) ([]repo.Document, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]repo.Document), args.Error(1)
}

func (m *MockRemoteStore) Delete(ctx context.Context, ownerID, docID string) error {
	args := m.Called(ctx, ownerID, docID)
	return args.Error(0)
}

var alice = model.NewIdentity("alice", "Alice", "alice@example.com", "")

func setupLocal(t *testing.T) *repo.TaskRepo {
	t.Helper()
	db, err := repo.OpenLocal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repo.NewTaskRepo(db, zap.NewNop())
}

func setupService(t *testing.T) (*TaskService, *repo.TaskRepo, *repo.MemoryDocuments) {
	t.Helper()
	local := setupLocal(t)
	remote := repo.NewMemoryDocuments()
	svc := NewTaskService(local, remote, zap.NewNop())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, local, remote
}

func TestTaskService_AddTask(t *testing.T) {
	svc, local, remote := setupService(t)
	ctx := context.Background()

	created, err := svc.AddTask(ctx, model.Task{Title: "Math Homework", UserID: "spoofed"}, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "alice", created.UserID)
	assert.Equal(t, int64(1700000000000), created.UpdatedAt)

	stored, err := local.Get(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Math Homework", stored.Title)

	docs, err := remote.GetAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "1", docs[0].ID, "document id is the local id as decimal")
	assert.Contains(t, string(docs[0].Body), `"title":"Math Homework"`)
}

func TestTaskService_NoIdentityIsNoop(t *testing.T) {
	local := setupLocal(t)
	remote := new(MockRemoteStore)
	svc := NewTaskService(local, remote, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AddTask(ctx, model.Task{Title: "Math"}, nil)
	require.NoError(t, err)
	_, err = svc.UpdateTask(ctx, model.Task{ID: 1, Title: "Math"}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTask(ctx, model.Task{ID: 1}, nil))
	require.NoError(t, svc.ClearAll(ctx, nil))
	n, err := svc.SyncFromRemote(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	tasks, err := local.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	remote.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	remote.AssertNotCalled(t, "GetAll", mock.Anything, mock.Anything)
	remote.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskService_RemoteFailureDiverges(t *testing.T) {
	local := setupLocal(t)
	remote := new(MockRemoteStore)
	svc := NewTaskService(local, remote, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("network down")
	remote.On("Set", mock.Anything, "alice", mock.Anything).Return(boom).Once()

	_, err := svc.AddTask(ctx, model.Task{Title: "Math"}, alice)
	assert.ErrorIs(t, err, boom)

	tasks, err := local.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "local write is kept when the remote write fails")
	remote.AssertExpectations(t)
}

func TestTaskService_UpdateAndDelete(t *testing.T) {
	svc, local, remote := setupService(t)
	ctx := context.Background()

	created, err := svc.AddTask(ctx, model.Task{Title: "Math"}, alice)
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, model.ToggleFinished(created), alice)
	require.NoError(t, err)
	assert.True(t, updated.IsFinished)

	stored, err := local.Get(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsFinished)

	docs, err := remote.GetAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, string(docs[0].Body), `"isFinished":true`)

	require.NoError(t, svc.DeleteTask(ctx, created, alice))
	_, err = local.Get(ctx, "alice", created.ID)
	assert.ErrorIs(t, err, repo.ErrorNotFound)
	docs, err = remote.GetAll(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestTaskService_ClearAll(t *testing.T) {
	local := setupLocal(t)
	remote := new(MockRemoteStore)
	svc := NewTaskService(local, remote, zap.NewNop())
	ctx := context.Background()

	_, err := local.Insert(ctx, model.Task{Title: "a", UserID: "alice"})
	require.NoError(t, err)

	boom := errors.New("delete failed")
	remote.On("GetAll", mock.Anything, "alice").Return([]repo.Document{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil)
	remote.On("Delete", mock.Anything, "alice", "1").Return(nil)
	remote.On("Delete", mock.Anything, "alice", "2").Return(boom)
	remote.On("Delete", mock.Anything, "alice", "3").Return(nil)

	err = svc.ClearAll(ctx, alice)
	assert.ErrorIs(t, err, boom)

	tasks, err := local.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	remote.AssertNumberOfCalls(t, "Delete", 3)
}

func TestTaskService_SyncFromRemote(t *testing.T) {
	svc, local, remote := setupService(t)
	ctx := context.Background()

	_, err := local.Insert(ctx, model.Task{Title: "local only", UserID: "alice"})
	require.NoError(t, err)

	require.NoError(t, remote.Set(ctx, "alice", repo.Document{ID: "4", Body: []byte(`{"id":4,"title":"History Essay","isFinished":true,"subtasks":[{"title":"Outline","isFinished":false,"logTime":3}]}`)}))
	require.NoError(t, remote.Set(ctx, "alice", repo.Document{ID: "5", Body: []byte(`{"title":5}`)}))
	require.NoError(t, remote.Set(ctx, "alice", repo.Document{ID: "6", Body: []byte(`{"id":99,"title":"Physics"}`)}))

	n, err := svc.SyncFromRemote(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "undecodable documents are dropped")

	first, err := local.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(4), first[0].ID)
	assert.Equal(t, "History Essay", first[0].Title)
	assert.Equal(t, int64(3), first[0].Subtasks[0].LogTime)
	assert.Equal(t, int64(6), first[1].ID, "document id wins over body id")
	assert.Equal(t, "alice", first[1].UserID)

	_, err = svc.SyncFromRemote(ctx, alice)
	require.NoError(t, err)
	second, err := local.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second, "sync is idempotent")
}

func TestTaskService_SyncNumbersTasksWithoutID(t *testing.T) {
	svc, local, remote := setupService(t)
	ctx := context.Background()

	require.NoError(t, remote.Set(ctx, "alice", repo.Document{ID: "0", Body: []byte(`{"id":0,"title":"Legacy"}`)}))
	require.NoError(t, remote.Set(ctx, "alice", repo.Document{ID: "3", Body: []byte(`{"id":3,"title":"Math"}`)}))

	n, err := svc.SyncFromRemote(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tasks, err := local.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, int64(3), tasks[0].ID)
	assert.Equal(t, int64(4), tasks[1].ID)
	assert.Equal(t, "Legacy", tasks[1].Title)

	docs, err := remote.GetAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"3", "4"}, []string{docs[0].ID, docs[1].ID}, "document moved under the new id")

	_, err = svc.SyncFromRemote(ctx, alice)
	require.NoError(t, err)
	again, err := local.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, tasks, again)
}

func TestTaskService_SyncDocumentIDs(t *testing.T) {
	tests := []struct {
		name      string
		docs      []repo.Document
		wantTasks map[int64]string
		wantDocs  []string
	}{
		{
			name:      "non-decimal document id uses body id",
			docs:      []repo.Document{{ID: "abc", Body: []byte(`{"id":7,"title":"Essay"}`)}},
			wantTasks: map[int64]string{7: "Essay"},
			wantDocs:  []string{"7"},
		},
		{
			name: "duplicate id keeps the document stored under it",
			docs: []repo.Document{
				{ID: "5", Body: []byte(`{"id":5,"title":"Five"}`)},
				{ID: "abc", Body: []byte(`{"id":5,"title":"Stray"}`)},
			},
			wantTasks: map[int64]string{5: "Five"},
			wantDocs:  []string{"5", "abc"},
		},
		{
			name: "stray copy listed first still loses",
			docs: []repo.Document{
				{ID: "0005", Body: []byte(`{"id":1,"title":"Stray"}`)},
				{ID: "5", Body: []byte(`{"id":5,"title":"Five"}`)},
			},
			wantTasks: map[int64]string{5: "Five"},
			wantDocs:  []string{"0005", "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, local, remote := setupService(t)
			ctx := context.Background()
			for _, d := range tt.docs {
				require.NoError(t, remote.Set(ctx, "alice", d))
			}

			n, err := svc.SyncFromRemote(ctx, alice)
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantTasks), n)

			tasks, err := local.List(ctx, "alice")
			require.NoError(t, err)
			got := make(map[int64]string, len(tasks))
			for _, task := range tasks {
				got[task.ID] = task.Title
			}
			assert.Equal(t, tt.wantTasks, got)

			docs, err := remote.GetAll(ctx, "alice")
			require.NoError(t, err)
			ids := make([]string, 0, len(docs))
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, tt.wantDocs, ids)
		})
	}
}

func TestTaskService_SyncRemoteError(t *testing.T) {
	local := setupLocal(t)
	remote := new(MockRemoteStore)
	svc := NewTaskService(local, remote, zap.NewNop())
	ctx := context.Background()

	_, err := local.Insert(ctx, model.Task{Title: "keep", UserID: "alice"})
	require.NoError(t, err)

	boom := errors.New("unavailable")
	remote.On("GetAll", mock.Anything, "alice").Return([]repo.Document(nil), boom)

	_, err = svc.SyncFromRemote(ctx, alice)
	assert.ErrorIs(t, err, boom)

	tasks, err := local.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "local rows survive a failed fetch")
}

func TestConcurrent_AddTaskUniqueIDs(t *testing.T) {
	svc, local, remote := setupService(t)
	ctx := context.Background()

	const goroutines = 10

	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = svc.AddTask(ctx, model.Task{Title: fmt.Sprintf("Concurrent Task %d", idx)}, alice)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d should not error", i)
	}

	tasks, err := local.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, goroutines)

	seen := make(map[int64]bool)
	for _, task := range tasks {
		assert.False(t, seen[task.ID], "duplicate id %d", task.ID)
		seen[task.ID] = true
	}

	docs, err := remote.GetAll(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, docs, goroutines, "no remote document collisions")
}
