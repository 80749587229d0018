package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courseta-backend/internal/models"
)

type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

func (r *DocumentRepo) Create(ctx context.Context, d *models.Document) error {
	d.ID = uuid.New()
	d.Status = "pending"

	query := `INSERT INTO documents (id, type, title, source_url, file_path, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		d.ID, d.Type, d.Title, d.SourceURL, d.FilePath, d.Status,
	).Scan(&d.CreatedAt)
}

func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	d := &models.Document{}
	query := `SELECT d.id, d.type, d.title, d.source_url, d.file_path, d.status, d.created_at,
			(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d WHERE d.id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Type, &d.Title, &d.SourceURL, &d.FilePath, &d.Status, &d.CreatedAt, &d.ChunkCount,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepo) List(ctx context.Context) ([]models.Document, error) {
	query := `SELECT d.id, d.type, d.title, d.source_url, d.file_path, d.status, d.created_at,
			(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d ORDER BY d.created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Type, &d.Title, &d.SourceURL, &d.FilePath, &d.Status, &d.CreatedAt, &d.ChunkCount); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE documents SET status = $1 WHERE id = $2", status, id)
	return err
}

// Delete removes a document and, via the FK cascade, its chunks.
func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ReplaceChunks swaps a document's chunk set in one transaction, so retried
// ingest jobs never leave a half-written chunk set behind.
func (r *DocumentRepo) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []models.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("failed to clear old chunks: %w", err)
	}

	for i := range chunks {
		chunks[i].ID = uuid.New()
		chunks[i].DocumentID = documentID
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, chunk_index, chunk_text, embedding)
			VALUES ($1, $2, $3, $4, $5)`,
			chunks[i].ID, documentID, chunks[i].Index, chunks[i].Text, chunks[i].Embedding,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// AllChunks loads every chunk with its embedding, for index (re)builds.
func (r *DocumentRepo) AllChunks(ctx context.Context) ([]models.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, chunk_index, chunk_text, embedding FROM chunks ORDER BY document_id, chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.Embedding); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
