package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/common"
	"github.com/dmitrijs2005/filescloud/internal/dbx"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
)

const fileColumns = "id, user_id, filename, storage_path, size, uploaded_at, deleted_at"

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the metadata row for a persisted upload and returns it with
// server-assigned fields populated. The storage path is unique; callers mint
// it before the blob write and never change it afterwards.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (user_id, filename, storage_path, size)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.OwnerID, file.Filename, file.StoragePath, file.Size).
		Scan(&file.ID, &file.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns a file row regardless of owner or deleted state. It backs
// share-link resolution, which is a pure capability check with no caller
// identity. If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return scanFile(r.db.QueryRowContext(ctx, query, id), common.ErrorNotFound)
}

// GetActiveOwned returns a non-deleted file owned by ownerID.
func (r *PostgresRepository) GetActiveOwned(ctx context.Context, id, ownerID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND user_id = $2 AND NOT is_deleted`
	return scanFile(r.db.QueryRowContext(ctx, query, id, ownerID), common.ErrNotFoundOrForbidden)
}

// GetDeletedOwned returns a trashed file owned by ownerID.
func (r *PostgresRepository) GetDeletedOwned(ctx context.Context, id, ownerID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND user_id = $2 AND is_deleted`
	return scanFile(r.db.QueryRowContext(ctx, query, id, ownerID), common.ErrNotFoundOrForbidden)
}

// ListActive returns a page of the owner's non-deleted files, newest first.
// An empty search matches everything; otherwise the filename is matched
// case-insensitively as a substring.
func (r *PostgresRepository) ListActive(ctx context.Context, ownerID, search string, limit, offset int) ([]*models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1 AND NOT is_deleted
		  AND ($2 = '' OR filename ILIKE '%' || $2 || '%')
		ORDER BY uploaded_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectFiles(rows)
}

// CountActive returns the total number of rows ListActive would page over.
func (r *PostgresRepository) CountActive(ctx context.Context, ownerID, search string) (int64, error) {
	query := `
		SELECT count(*)
		FROM files
		WHERE user_id = $1 AND NOT is_deleted
		  AND ($2 = '' OR filename ILIKE '%' || $2 || '%')
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, ownerID, search).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// ListDeleted returns the owner's trash, most recently deleted first.
func (r *PostgresRepository) ListDeleted(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1 AND is_deleted
		ORDER BY deleted_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectFiles(rows)
}

// SoftDelete moves an active owned file to the trash. Both soft-delete
// columns change in the one statement so they cannot drift. Zero rows
// affected means the file is absent, foreign, or already deleted.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id, ownerID string, at time.Time) error {
	query := `
		UPDATE files SET is_deleted = TRUE, deleted_at = $3
		WHERE id = $1 AND user_id = $2 AND NOT is_deleted
	`
	return r.execOwned(ctx, query, id, ownerID, at)
}

// Restore returns a trashed owned file to the active state.
func (r *PostgresRepository) Restore(ctx context.Context, id, ownerID string) error {
	query := `
		UPDATE files SET is_deleted = FALSE, deleted_at = NULL
		WHERE id = $1 AND user_id = $2 AND is_deleted
	`
	return r.execOwned(ctx, query, id, ownerID)
}

// Delete removes the metadata row of a trashed owned file. The share link,
// if any, goes with it via ON DELETE CASCADE. Purging an active file is
// rejected the same way as a foreign or absent one.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM files WHERE id = $1 AND user_id = $2 AND is_deleted`
	return r.execOwned(ctx, query, id, ownerID)
}

// SelectExpiredTrash returns every file, across all users, deleted before
// the cutoff.
func (r *PostgresRepository) SelectExpiredTrash(ctx context.Context, cutoff time.Time) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE is_deleted AND deleted_at < $1`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectFiles(rows)
}

func (r *PostgresRepository) execOwned(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFoundOrForbidden
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func scanFile(row *sql.Row, notFound error) (*models.File, error) {
	file := &models.File{}
	var deletedAt sql.NullTime
	err := row.Scan(&file.ID, &file.OwnerID, &file.Filename, &file.StoragePath,
		&file.Size, &file.UploadedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		file.DeletedAt = &t
	}
	return file, nil
}

func collectFiles(rows *sql.Rows) ([]*models.File, error) {
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		file := &models.File{}
		var deletedAt sql.NullTime
		if err := rows.Scan(&file.ID, &file.OwnerID, &file.Filename, &file.StoragePath,
			&file.Size, &file.UploadedAt, &deletedAt); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			file.DeletedAt = &t
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
