package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/common"
	"github.com/dmitrijs2005/filescloud/internal/server/config"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
)

func newFileService(t *testing.T, db *sql.DB, rm *fakeRepoManager, blobs *fakeBlobStore) *FileService {
	t.Helper()
	cfg := &config.Config{
		MaxUploadSize:     1 << 20,
		AllowedExtensions: []string{"txt", "pdf", "png"},
		ItemsPerPage:      10,
	}
	return NewFileService(db, rm, blobs, discardLogger(), cfg)
}

func TestUpload_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{f: &fakeFilesRepo{}}
	blobs := newFakeBlobStore()
	s := newFileService(t, db, rm, blobs)

	f, err := s.Upload(context.Background(), "u1", "notes.txt", strings.NewReader("hello"), 5)
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if f.Size != 5 || f.OwnerID != "u1" || f.Filename != "notes.txt" {
		t.Fatalf("unexpected file: %+v", f)
	}
	if !strings.HasPrefix(f.StoragePath, "u1/") || !strings.HasSuffix(f.StoragePath, "_notes.txt") {
		t.Fatalf("unexpected storage key: %q", f.StoragePath)
	}
	if _, ok := blobs.data[f.StoragePath]; !ok {
		t.Fatalf("blob not stored under %q", f.StoragePath)
	}
}

func TestUpload_ExtensionRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	blobs := newFakeBlobStore()
	s := newFileService(t, db, &fakeRepoManager{f: &fakeFilesRepo{}}, blobs)

	for _, name := range []string{"evil.exe", "noext", "archive.TAR.GZ"} {
		_, err := s.Upload(context.Background(), "u1", name, strings.NewReader("x"), 1)
		if !errors.Is(err, common.ErrUnsupportedType) {
			t.Fatalf("%s: want ErrUnsupportedType, got %v", name, err)
		}
	}
	if len(blobs.data) != 0 {
		t.Fatalf("rejected upload left bytes behind: %v", blobs.data)
	}
}

func TestUpload_ExtensionCaseInsensitive(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newFileService(t, db, &fakeRepoManager{f: &fakeFilesRepo{}}, newFakeBlobStore())

	if _, err := s.Upload(context.Background(), "u1", "SCAN.PDF", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Upload error: %v", err)
	}
}

func TestUpload_DeclaredSizeOverCap(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newFileService(t, db, &fakeRepoManager{f: &fakeFilesRepo{}}, newFakeBlobStore())

	_, err := s.Upload(context.Background(), "u1", "big.txt", strings.NewReader("x"), 2<<20)
	if !errors.Is(err, common.ErrPayloadTooLarge) {
		t.Fatalf("want ErrPayloadTooLarge, got %v", err)
	}
}

func TestUpload_BlobRemovedOnInsertFailure(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{f: &fakeFilesRepo{createErr: errors.New("insert failed")}}
	blobs := newFakeBlobStore()
	s := newFileService(t, db, rm, blobs)

	_, err := s.Upload(context.Background(), "u1", "notes.txt", strings.NewReader("hello"), 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(blobs.removed) != 1 {
		t.Fatalf("orphaned blob not cleaned up, removed=%v", blobs.removed)
	}
	if len(blobs.data) != 0 {
		t.Fatalf("bytes survived a failed upload: %v", blobs.data)
	}
}

func TestUpload_StorageWriteFailure(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	blobs := newFakeBlobStore()
	blobs.putErr = common.ErrStorageWriteFailed
	s := newFileService(t, db, &fakeRepoManager{f: &fakeFilesRepo{}}, blobs)

	_, err := s.Upload(context.Background(), "u1", "notes.txt", strings.NewReader("hello"), 5)
	if !errors.Is(err, common.ErrStorageWriteFailed) {
		t.Fatalf("want ErrStorageWriteFailed, got %v", err)
	}
}

func TestList_PageClamping(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{f: &fakeFilesRepo{
		listOut:  []*models.File{{ID: "f1"}},
		countOut: 1,
	}}
	s := newFileService(t, db, rm, newFakeBlobStore())

	page, err := s.List(context.Background(), "u1", "", 0)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if page.Total != 1 || len(page.Files) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestSoftDelete_PropagatesNotFoundOrForbidden(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{f: &fakeFilesRepo{softDeleteErr: common.ErrNotFoundOrForbidden}}
	s := newFileService(t, db, rm, newFakeBlobStore())

	err := s.SoftDelete(context.Background(), "f1", "intruder")
	if !errors.Is(err, common.ErrNotFoundOrForbidden) {
		t.Fatalf("want ErrNotFoundOrForbidden, got %v", err)
	}
}

func TestPurge_RemovesBytesThenMetadata(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	deleted := time.Now()
	repo := &fakeFilesRepo{deletedOwnedOut: &models.File{ID: "f1", OwnerID: "u1", StoragePath: "u1/k", DeletedAt: &deleted}}
	blobs := newFakeBlobStore()
	blobs.data["u1/k"] = []byte("x")
	s := newFileService(t, db, &fakeRepoManager{f: repo}, blobs)

	if err := s.Purge(context.Background(), "f1", "u1"); err != nil {
		t.Fatalf("Purge error: %v", err)
	}
	if len(blobs.removed) != 1 || blobs.removed[0] != "u1/k" {
		t.Fatalf("blob not removed: %v", blobs.removed)
	}
	if len(repo.deletedIDs) != 1 || repo.deletedIDs[0] != "f1" {
		t.Fatalf("metadata not deleted: %v", repo.deletedIDs)
	}
}

func TestPurge_ProceedsPastBlobFailure(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	deleted := time.Now()
	repo := &fakeFilesRepo{deletedOwnedOut: &models.File{ID: "f1", OwnerID: "u1", StoragePath: "u1/k", DeletedAt: &deleted}}
	blobs := newFakeBlobStore()
	blobs.removeErr = errors.New("backend down")
	s := newFileService(t, db, &fakeRepoManager{f: repo}, blobs)

	if err := s.Purge(context.Background(), "f1", "u1"); err != nil {
		t.Fatalf("Purge error: %v", err)
	}
	if len(repo.deletedIDs) != 1 {
		t.Fatalf("metadata should be deleted despite blob failure: %v", repo.deletedIDs)
	}
}

func TestPurge_ActiveFileRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{f: &fakeFilesRepo{deletedOwnedErr: common.ErrNotFoundOrForbidden}}
	s := newFileService(t, db, rm, newFakeBlobStore())

	err := s.Purge(context.Background(), "f1", "u1")
	if !errors.Is(err, common.ErrNotFoundOrForbidden) {
		t.Fatalf("want ErrNotFoundOrForbidden, got %v", err)
	}
}

func TestDownload_StreamsOwnedFile(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeFilesRepo{activeOwnedOut: &models.File{ID: "f1", OwnerID: "u1", Filename: "a.txt", StoragePath: "u1/k"}}
	blobs := newFakeBlobStore()
	blobs.data["u1/k"] = []byte("payload")
	s := newFileService(t, db, &fakeRepoManager{f: repo}, blobs)

	f, rc, err := s.Download(context.Background(), "f1", "u1")
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if f.Filename != "a.txt" || string(data) != "payload" {
		t.Fatalf("unexpected download: %+v %q", f, data)
	}
}

func TestSweepExpiredTrash_PurgesAndCounts(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	deleted := time.Now().Add(-1000 * time.Hour)
	repo := &fakeFilesRepo{expiredOut: []*models.File{
		{ID: "f1", OwnerID: "u1", StoragePath: "u1/a", DeletedAt: &deleted},
		{ID: "f2", OwnerID: "u2", StoragePath: "u2/b", DeletedAt: &deleted},
	}}
	blobs := newFakeBlobStore()
	blobs.data["u1/a"] = []byte("x")
	blobs.data["u2/b"] = []byte("y")
	s := newFileService(t, db, &fakeRepoManager{f: repo}, blobs)

	n, err := s.SweepExpiredTrash(context.Background(), 720*time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 purged, got %d", n)
	}
	if len(blobs.data) != 0 {
		t.Fatalf("bytes survived the sweep: %v", blobs.data)
	}
}

func TestSweepExpiredTrash_SkipsFailedDeletes(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	deleted := time.Now().Add(-1000 * time.Hour)
	repo := &fakeFilesRepo{
		expiredOut: []*models.File{{ID: "f1", OwnerID: "u1", StoragePath: "u1/a", DeletedAt: &deleted}},
		deleteErr:  errors.New("db down"),
	}
	s := newFileService(t, db, &fakeRepoManager{f: repo}, newFakeBlobStore())

	n, err := s.SweepExpiredTrash(context.Background(), 720*time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if n != 0 {
		t.Fatalf("want 0 purged, got %d", n)
	}
}

func TestSweepExpiredTrash_EmptyTrash(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newFileService(t, db, &fakeRepoManager{f: &fakeFilesRepo{}}, newFakeBlobStore())

	n, err := s.SweepExpiredTrash(context.Background(), 720*time.Hour, time.Now())
	if err != nil || n != 0 {
		t.Fatalf("want clean no-op, got n=%d err=%v", n, err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`C:\docs\budget.xlsx`: "budget.xlsx",
		"weird name (1).txt":  "weird_name__1_.txt",
		"..":                  "file",
		"":                    "file",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
