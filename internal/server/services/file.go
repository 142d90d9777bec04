package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/common"
	"github.com/dmitrijs2005/filescloud/internal/logging"
	"github.com/dmitrijs2005/filescloud/internal/server/blob"
	"github.com/dmitrijs2005/filescloud/internal/server/config"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
	"github.com/dmitrijs2005/filescloud/internal/server/repositories/repomanager"
)

// FilePage is one page of a user's active files plus the total match count.
type FilePage struct {
	Files []*models.File
	Total int64
}

// FileService implements the file lifecycle: upload, listing, the trash
// round-trip, download, and the retention sweep.
type FileService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	blobs         blob.Store
	logger        logging.Logger
	maxUploadSize int64
	allowedExts   map[string]struct{}
	itemsPerPage  int
}

// NewFileService constructs a FileService using repositories, the blob store,
// and server config.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, logger logging.Logger, cfg *config.Config) *FileService {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &FileService{
		db:            db,
		repomanager:   m,
		blobs:         blobs,
		logger:        logger,
		maxUploadSize: cfg.MaxUploadSize,
		allowedExts:   allowed,
		itemsPerPage:  cfg.ItemsPerPage,
	}
}

// Upload validates the filename and size, persists the bytes under a freshly
// minted storage key, and then inserts the metadata row. Bytes always land
// before metadata; if the insert fails the blob is removed again so no
// unreferenced bytes survive the request.
func (s *FileService) Upload(ctx context.Context, ownerID, filename string, r io.Reader, declaredSize int64) (*models.File, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := s.allowedExts[ext]; !ok {
		return nil, common.ErrUnsupportedType
	}
	if s.maxUploadSize > 0 && declaredSize > s.maxUploadSize {
		return nil, common.ErrPayloadTooLarge
	}

	key, err := s.mintStorageKey(ownerID, filename)
	if err != nil {
		return nil, common.ErrorInternal
	}

	size, err := s.blobs.Put(ctx, key, r)
	if err != nil {
		return nil, err
	}

	file, err := s.repomanager.Files(s.db).Create(ctx, &models.File{
		OwnerID:     ownerID,
		Filename:    filename,
		StoragePath: key,
		Size:        size,
	})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, key); rmErr != nil {
			s.logger.Error(ctx, "removing orphaned blob after failed insert", "key", key, "error", rmErr)
		}
		return nil, fmt.Errorf("error creating file record: %w", err)
	}
	return file, nil
}

// List returns one page of the owner's active files, newest upload first.
// Pages are numbered from 1.
func (s *FileService) List(ctx context.Context, ownerID, search string, page int) (*FilePage, error) {
	if page < 1 {
		page = 1
	}
	repo := s.repomanager.Files(s.db)

	total, err := repo.CountActive(ctx, ownerID, search)
	if err != nil {
		return nil, err
	}
	files, err := repo.ListActive(ctx, ownerID, search, s.itemsPerPage, (page-1)*s.itemsPerPage)
	if err != nil {
		return nil, err
	}
	return &FilePage{Files: files, Total: total}, nil
}

// ListTrash returns the owner's deleted files, newest deletion first.
func (s *FileService) ListTrash(ctx context.Context, ownerID string) ([]*models.File, error) {
	return s.repomanager.Files(s.db).ListDeleted(ctx, ownerID)
}

// SoftDelete moves an active owned file into the trash. Its share link, if
// any, stays in place; resolution is unaffected by the trash state.
func (s *FileService) SoftDelete(ctx context.Context, fileID, ownerID string) error {
	return s.repomanager.Files(s.db).SoftDelete(ctx, fileID, ownerID, time.Now())
}

// Restore brings a trashed owned file back to the active state.
func (s *FileService) Restore(ctx context.Context, fileID, ownerID string) error {
	return s.repomanager.Files(s.db).Restore(ctx, fileID, ownerID)
}

// Purge permanently removes a trashed owned file: blob first, then metadata.
// A failed blob removal is logged and the metadata delete proceeds anyway,
// because a dangling blob is recoverable while a dangling metadata row would
// resurrect a file the user asked to destroy.
func (s *FileService) Purge(ctx context.Context, fileID, ownerID string) error {
	repo := s.repomanager.Files(s.db)

	file, err := repo.GetDeletedOwned(ctx, fileID, ownerID)
	if err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, file.StoragePath); err != nil {
		s.logger.Error(ctx, "removing blob during purge", "key", file.StoragePath, "error", err)
	}
	return repo.Delete(ctx, fileID, ownerID)
}

// Download returns the metadata and a reader over the bytes of an active
// owned file. The caller closes the reader.
func (s *FileService) Download(ctx context.Context, fileID, ownerID string) (*models.File, io.ReadCloser, error) {
	file, err := s.repomanager.Files(s.db).GetActiveOwned(ctx, fileID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, file.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return file, rc, nil
}

// OpenShared returns a reader over a file's bytes without an ownership check.
// Share-link resolution performs its own gating before calling this.
func (s *FileService) OpenShared(ctx context.Context, file *models.File) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, file.StoragePath)
}

// SweepExpiredTrash purges every file, across all users, whose deletion
// predates now-retention. Each file is handled independently so one failure
// does not stall the sweep; rerunning is harmless since purged rows no longer
// match. Returns the number of files purged.
func (s *FileService) SweepExpiredTrash(ctx context.Context, retention time.Duration, now time.Time) (int, error) {
	repo := s.repomanager.Files(s.db)

	expired, err := repo.SelectExpiredTrash(ctx, now.Add(-retention))
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, file := range expired {
		if err := s.blobs.Remove(ctx, file.StoragePath); err != nil {
			s.logger.Error(ctx, "removing blob during sweep", "key", file.StoragePath, "error", err)
		}
		if err := repo.Delete(ctx, file.ID, file.OwnerID); err != nil {
			s.logger.Error(ctx, "deleting file record during sweep", "file_id", file.ID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}

// mintStorageKey builds "<ownerID>/<random hex>_<sanitized filename>". The
// random prefix keeps repeated uploads of the same name from colliding.
func (s *FileService) mintStorageKey(ownerID, filename string) (string, error) {
	prefix, err := common.MakeRandHexString(common.StorageKeyPrefixBytes)
	if err != nil {
		return "", err
	}
	return ownerID + "/" + prefix + "_" + sanitizeFilename(filename), nil
}

// sanitizeFilename strips any path components and characters that have no
// business in a storage key.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		out = "file"
	}
	return out
}
