package repo

import (
	"context"

	"github.com/BuzzLyutic/study-planner/internal/model"
)

// LocalStore is the on-device task table, keyed by (owner id, task id).
type LocalStore interface {
	Watch(ctx context.Context, ownerID string) (<-chan []model.Task, error)
	List(ctx context.Context, ownerID string) ([]model.Task, error)
	Get(ctx context.Context, ownerID string, id int64) (model.Task, error)
	Insert(ctx context.Context, t model.Task) (model.Task, error)
	Update(ctx context.Context, t model.Task) error
	Delete(ctx context.Context, ownerID string, id int64) error
	ClearForOwner(ctx context.Context, ownerID string) error
	ReplaceForOwner(ctx context.Context, ownerID string, tasks []model.Task) ([]model.Task, error)
}

// RemoteStore is a per-owner document collection. Documents are independent:
// there are no transactions spanning more than one of them.
type RemoteStore interface {
	Set(ctx context.Context, ownerID string, doc Document) error
	GetAll(ctx context.Context, ownerID string) ([]Document, error)
	Delete(ctx context.Context, ownerID, docID string) error
}

// Document is one remote record. Body holds the task serialized as JSON.
type Document struct {
	ID   string
	Body []byte
}
