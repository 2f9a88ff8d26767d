package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"signflow/internal/lifecycle/models"
	"signflow/pkg/platform/sentinel"
	txcontext "signflow/pkg/platform/tx"
)

// PostgresRepository reads the documents table owned by the generator.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindDocument(ctx context.Context, id int64) (*models.Document, error) {
	var doc models.Document
	err := txcontext.Or(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, owner_id, storage_key FROM documents WHERE id = $1
	`, id).Scan(&doc.ID, &doc.OwnerID, &doc.StorageKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}
