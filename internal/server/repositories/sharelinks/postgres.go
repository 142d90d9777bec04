package sharelinks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filescloud/internal/common"
	"github.com/dmitrijs2005/filescloud/internal/dbx"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
)

// PostgresRepository implements share-link storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert writes the link configuration keyed by file_id. The unique
// constraint on file_id makes "one active link per file" structural: a
// reconfiguration lands on the same row, replacing token and policy while
// leaving download_count alone.
func (r *PostgresRepository) Upsert(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	query := `
		INSERT INTO share_links (file_id, token, expires_at, password, download_limit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_id)
		DO UPDATE SET
			token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at,
			password = EXCLUDED.password,
			download_limit = EXCLUDED.download_limit
		RETURNING id, created_at, download_count
	`
	err := r.db.QueryRowContext(ctx, query,
		link.FileID, link.Token, link.ExpiresAt, link.Password, link.DownloadLimit).
		Scan(&link.ID, &link.CreatedAt, &link.DownloadCount)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

// GetByToken returns the link carrying the given token.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	query := `
		SELECT id, file_id, token, created_at, expires_at, password, download_limit, download_count
		FROM share_links
		WHERE token = $1
	`
	return scanLink(r.db.QueryRowContext(ctx, query, token))
}

// GetByFileID returns the file's link.
func (r *PostgresRepository) GetByFileID(ctx context.Context, fileID string) (*models.ShareLink, error) {
	query := `
		SELECT id, file_id, token, created_at, expires_at, password, download_limit, download_count
		FROM share_links
		WHERE file_id = $1
	`
	return scanLink(r.db.QueryRowContext(ctx, query, fileID))
}

// ConsumeSlot performs the atomic check-then-increment of the download
// counter. The WHERE clause is the limit check; the row lock taken by
// UPDATE serializes concurrent resolutions of the same token, so two racing
// downloads cannot both claim the last slot.
func (r *PostgresRepository) ConsumeSlot(ctx context.Context, token string) (int64, error) {
	query := `
		UPDATE share_links
		SET download_count = download_count + 1
		WHERE token = $1 AND (download_limit = 0 OR download_count < download_limit)
		RETURNING download_count
	`
	var count int64
	err := r.db.QueryRowContext(ctx, query, token).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrDownloadLimitExceeded
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func scanLink(row *sql.Row) (*models.ShareLink, error) {
	link := &models.ShareLink{}
	var expiresAt sql.NullTime
	var password sql.NullString
	err := row.Scan(&link.ID, &link.FileID, &link.Token, &link.CreatedAt,
		&expiresAt, &password, &link.DownloadLimit, &link.DownloadCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		link.ExpiresAt = &t
	}
	if password.Valid {
		p := password.String
		link.Password = &p
	}
	return link, nil
}
