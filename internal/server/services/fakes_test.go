package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filescloud/internal/dbx"
	"github.com/dmitrijs2005/filescloud/internal/logging"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
	filesrepo "github.com/dmitrijs2005/filescloud/internal/server/repositories/files"
	refreshtokensrepo "github.com/dmitrijs2005/filescloud/internal/server/repositories/refreshtokens"
	sharelinksrepo "github.com/dmitrijs2005/filescloud/internal/server/repositories/sharelinks"
	usersrepo "github.com/dmitrijs2005/filescloud/internal/server/repositories/users"
)

// --- shared helpers and fakes for the service tests ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error

	lastLoginErr error
	lastLoginIDs []string
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}
func (f *fakeUsersRepo) GetByLogin(ctx context.Context, userName string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}
func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.getOut, f.getErr
}
func (f *fakeUsersRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	f.lastLoginIDs = append(f.lastLoginIDs, id)
	return f.lastLoginErr
}
func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error { return nil }

type fakeRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error

	delErr    error
	deleted   []string
	createErr error
	created   []string
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	f.created = append(f.created, token)
	return f.createErr
}
func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}
func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	return f.delErr
}

type fakeFilesRepo struct {
	createOut *models.File
	createErr error

	byID    map[string]*models.File
	byIDErr error

	activeOwnedOut *models.File
	activeOwnedErr error

	deletedOwnedOut *models.File
	deletedOwnedErr error

	listOut  []*models.File
	listErr  error
	countOut int64

	softDeleteErr error
	restoreErr    error
	deleteErr     error
	deletedIDs    []string

	expiredOut []*models.File
	expiredErr error
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	file.ID = "f-new"
	file.UploadedAt = time.Now()
	return file, nil
}
func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byID[id], nil
}
func (f *fakeFilesRepo) GetActiveOwned(ctx context.Context, id, ownerID string) (*models.File, error) {
	if f.activeOwnedErr != nil {
		return nil, f.activeOwnedErr
	}
	return f.activeOwnedOut, nil
}
func (f *fakeFilesRepo) GetDeletedOwned(ctx context.Context, id, ownerID string) (*models.File, error) {
	if f.deletedOwnedErr != nil {
		return nil, f.deletedOwnedErr
	}
	return f.deletedOwnedOut, nil
}
func (f *fakeFilesRepo) ListActive(ctx context.Context, ownerID, search string, limit, offset int) ([]*models.File, error) {
	return f.listOut, f.listErr
}
func (f *fakeFilesRepo) CountActive(ctx context.Context, ownerID, search string) (int64, error) {
	return f.countOut, f.listErr
}
func (f *fakeFilesRepo) ListDeleted(ctx context.Context, ownerID string) ([]*models.File, error) {
	return f.listOut, f.listErr
}
func (f *fakeFilesRepo) SoftDelete(ctx context.Context, id, ownerID string, at time.Time) error {
	return f.softDeleteErr
}
func (f *fakeFilesRepo) Restore(ctx context.Context, id, ownerID string) error {
	return f.restoreErr
}
func (f *fakeFilesRepo) Delete(ctx context.Context, id, ownerID string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}
func (f *fakeFilesRepo) SelectExpiredTrash(ctx context.Context, cutoff time.Time) ([]*models.File, error) {
	return f.expiredOut, f.expiredErr
}

type fakeShareLinksRepo struct {
	upsertOut *models.ShareLink
	upsertErr error
	upserted  []*models.ShareLink

	byToken    *models.ShareLink
	byTokenErr error

	byFileID    *models.ShareLink
	byFileIDErr error

	consumeOut int64
	consumeErr error
	consumed   []string
}

func (f *fakeShareLinksRepo) Upsert(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	f.upserted = append(f.upserted, link)
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if f.upsertOut != nil {
		return f.upsertOut, nil
	}
	return link, nil
}
func (f *fakeShareLinksRepo) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	if f.byTokenErr != nil {
		return nil, f.byTokenErr
	}
	return f.byToken, nil
}
func (f *fakeShareLinksRepo) GetByFileID(ctx context.Context, fileID string) (*models.ShareLink, error) {
	if f.byFileIDErr != nil {
		return nil, f.byFileIDErr
	}
	return f.byFileID, nil
}
func (f *fakeShareLinksRepo) ConsumeSlot(ctx context.Context, token string) (int64, error) {
	if f.consumeErr != nil {
		return 0, f.consumeErr
	}
	f.consumed = append(f.consumed, token)
	return f.consumeOut, nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	r  *fakeRefreshRepo
	f  *fakeFilesRepo
	sl *fakeShareLinksRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository                 { return m.f }
func (m *fakeRepoManager) ShareLinks(db dbx.DBTX) sharelinksrepo.Repository       { return m.sl }

type fakeBlobStore struct {
	data map[string][]byte

	putErr    error
	openErr   error
	removeErr error
	removed   []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{data: map[string][]byte{}}
}

func (b *fakeBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if b.putErr != nil {
		return 0, b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.data[key] = data
	return int64(len(data)), nil
}
func (b *fakeBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return io.NopCloser(bytes.NewReader(b.data[key])), nil
}
func (b *fakeBlobStore) Remove(ctx context.Context, key string) error {
	b.removed = append(b.removed, key)
	if b.removeErr != nil {
		return b.removeErr
	}
	delete(b.data, key)
	return nil
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
