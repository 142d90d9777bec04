package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/common"
	"github.com/dmitrijs2005/filescloud/internal/server/config"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
	"github.com/dmitrijs2005/filescloud/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager) *UserService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	return NewUserService(db, rm, cfg)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	return string(h)
}

func TestRegister_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{createOut: &models.User{ID: "u1", UserName: "alice"}}}
	s := newUserService(t, db, rm)

	u, err := s.Register(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{createErr: common.ErrUsernameTaken}}
	s := newUserService(t, db, rm)

	_, err := s.Register(context.Background(), "alice", "pw")
	if !errors.Is(err, common.ErrUsernameTaken) {
		t.Fatalf("want ErrUsernameTaken, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	u := &fakeUsersRepo{getOut: &models.User{ID: "u1", UserName: "alice", PasswordHash: hashOf(t, "pw"), IsActive: true}}
	rm := &fakeRepoManager{u: u, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm)

	pair, err := s.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty token pair: %+v", pair)
	}
	if len(u.lastLoginIDs) != 1 || u.lastLoginIDs[0] != "u1" {
		t.Fatalf("last login not recorded: %v", u.lastLoginIDs)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{ID: "u1", PasswordHash: hashOf(t, "pw"), IsActive: true}},
		r: &fakeRefreshRepo{},
	}
	s := newUserService(t, db, rm)

	_, err := s.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestLogin_UnknownUserIndistinguishable(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}, r: &fakeRefreshRepo{}}
	s := newUserService(t, db, rm)

	_, err := s.Login(context.Background(), "ghost", "pw")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{ID: "u1", PasswordHash: hashOf(t, "pw"), IsActive: false}},
		r: &fakeRefreshRepo{},
	}
	s := newUserService(t, db, rm)

	_, err := s.Login(context.Background(), "alice", "pw")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestRefreshToken_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	r := &fakeRefreshRepo{findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)}}
	rm := &fakeRepoManager{r: r}
	s := newUserService(t, db, rm)

	pair, err := s.RefreshToken(context.Background(), "refresh-xyz")
	if err != nil {
		t.Fatalf("RefreshToken error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty token pair: %+v", pair)
	}
	if len(r.created) != 1 {
		t.Fatalf("expected one rotated token, got %d", len(r.created))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshToken_Expired(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(-time.Minute)}},
	}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "refresh-xyz")
	if !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("want ErrRefreshTokenExpired, got %v", err)
	}
}

func TestRefreshToken_Unknown(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{r: &fakeRefreshRepo{findErr: common.ErrorNotFound}}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "ghost")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestLogout_DeletesStoredToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	r := &fakeRefreshRepo{}
	rm := &fakeRepoManager{r: r}
	s := newUserService(t, db, rm)

	if err := s.Logout(context.Background(), "refresh-xyz"); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if len(r.deleted) != 1 || r.deleted[0] != "refresh-xyz" {
		t.Fatalf("token not deleted: %v", r.deleted)
	}
}

func TestLogout_RepoError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{r: &fakeRefreshRepo{delErr: errors.New("boom")}}
	s := newUserService(t, db, rm)

	if err := s.Logout(context.Background(), "refresh-xyz"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRefreshToken_RolledBackOnDeleteError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(time.Hour)},
			delErr:  errors.New("boom"),
		},
	}
	s := newUserService(t, db, rm)

	if _, err := s.RefreshToken(context.Background(), "refresh-xyz"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
