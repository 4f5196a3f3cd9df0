package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/study-planner/migrations"
)

// DocumentRepo is the remote store backed by Postgres: one JSONB row per
// (owner, document id).
type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{
		pool: pool,
	}
}

func (r *DocumentRepo) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, migrations.CreateTaskDocuments)
	return err
}

func (r *DocumentRepo) Set(ctx context.Context, ownerID string, doc Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_documents (owner_id, doc_id, body)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (owner_id, doc_id) DO UPDATE
		SET body = EXCLUDED.body, updated_at = now()
	`, ownerID, doc.ID, string(doc.Body))
	return err
}

func (r *DocumentRepo) GetAll(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT doc_id, body::text
		FROM task_documents
		WHERE owner_id = $1
		ORDER BY doc_id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			d    Document
			body string
		)
		if err := rows.Scan(&d.ID, &body); err != nil {
			return nil, err
		}
		d.Body = []byte(body)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes one document. Deleting a missing document is not an error.
func (r *DocumentRepo) Delete(ctx context.Context, ownerID, docID string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM task_documents WHERE owner_id = $1 AND doc_id = $2", ownerID, docID)
	return err
}
