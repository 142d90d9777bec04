// Package httpapi exposes the service layer over HTTP: JSON endpoints for
// authenticated file management and the public share-link download route.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/common"
	"github.com/dmitrijs2005/filescloud/internal/logging"
	"github.com/dmitrijs2005/filescloud/internal/server/config"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
	"github.com/dmitrijs2005/filescloud/internal/server/services"
	"github.com/dmitrijs2005/filescloud/internal/timex"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserProvider is the slice of UserService the handlers need.
type UserProvider interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// FileProvider is the slice of FileService the handlers need.
type FileProvider interface {
	Upload(ctx context.Context, ownerID, filename string, r io.Reader, declaredSize int64) (*models.File, error)
	List(ctx context.Context, ownerID, search string, page int) (*services.FilePage, error)
	ListTrash(ctx context.Context, ownerID string) ([]*models.File, error)
	SoftDelete(ctx context.Context, fileID, ownerID string) error
	Restore(ctx context.Context, fileID, ownerID string) error
	Purge(ctx context.Context, fileID, ownerID string) error
	Download(ctx context.Context, fileID, ownerID string) (*models.File, io.ReadCloser, error)
	OpenShared(ctx context.Context, file *models.File) (io.ReadCloser, error)
	SweepExpiredTrash(ctx context.Context, retention time.Duration, now time.Time) (int, error)
}

// ShareProvider is the slice of ShareService the handlers need.
type ShareProvider interface {
	IssueOrUpdate(ctx context.Context, fileID, ownerID string, cfg services.ShareConfig) (*models.ShareLink, error)
	Get(ctx context.Context, fileID, ownerID string) (*models.ShareLink, error)
	Resolve(ctx context.Context, token, suppliedPassword string, now time.Time) (*models.File, error)
}

// Handlers holds the request handlers and their dependencies.
type Handlers struct {
	users  UserProvider
	files  FileProvider
	shares ShareProvider
	logger logging.Logger
	cfg    *config.Config
}

// NewHandlers wires the services into a handler set.
func NewHandlers(users UserProvider, files FileProvider, shares ShareProvider, logger logging.Logger, cfg *config.Config) *Handlers {
	return &Handlers{users: users, files: files, shares: shares, logger: logger, cfg: cfg}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type fileResponse struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	Size       int64      `json:"size"`
	UploadedAt time.Time  `json:"uploaded_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

type filePageResponse struct {
	Files []fileResponse `json:"files"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
}

type shareRequest struct {
	ExpiresIn     timex.Duration `json:"expires_in"`
	Password      string         `json:"password"`
	DownloadLimit int64          `json:"download_limit"`
}

type shareResponse struct {
	Token         string     `json:"token"`
	URL           string     `json:"url"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	PasswordSet   bool       `json:"password_set"`
	DownloadLimit int64      `json:"download_limit"`
	DownloadCount int64      `json:"download_count"`
}

type sweepResponse struct {
	Purged int `json:"purged"`
}

func toFileResponse(f *models.File) fileResponse {
	return fileResponse{
		ID:         f.ID,
		Filename:   f.Filename,
		Size:       f.Size,
		UploadedAt: f.UploadedAt,
		DeletedAt:  f.DeletedAt,
	}
}

func toShareResponse(l *models.ShareLink) shareResponse {
	return shareResponse{
		Token:         l.Token,
		URL:           "/shared/" + l.Token,
		CreatedAt:     l.CreatedAt,
		ExpiresAt:     l.ExpiresAt,
		PasswordSet:   l.Password != nil && *l.Password != "",
		DownloadLimit: l.DownloadLimit,
		DownloadCount: l.DownloadCount,
	}
}

// fileIDParam extracts and validates the {id} route parameter. A malformed
// ID gets the same answer as an absent file, so probing stays uninformative.
func fileIDParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", common.ErrNotFoundOrForbidden
	}
	return id, nil
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username and password required"})
		return
	}
	user, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Username: user.UserName})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	pair, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "refresh_token required"})
		return
	}
	pair, err := h.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "refresh_token required"})
		return
	}
	if err := h.users.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	if h.cfg.MaxUploadSize > 0 {
		// headroom for the multipart framing around the capped payload
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize+1<<20)
	}

	src, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, common.ErrPayloadTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' required"})
		return
	}
	defer src.Close()

	file, err := h.files.Upload(r.Context(), ownerID, header.Filename, src, header.Size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileResponse(file))
}

func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	search := r.URL.Query().Get("search")

	result, err := h.files.List(r.Context(), ownerID, search, page)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := filePageResponse{Files: make([]fileResponse, 0, len(result.Files)), Total: result.Total, Page: page}
	for _, f := range result.Files {
		resp.Files = append(resp.Files, toFileResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListTrash(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	files, err := h.files.ListTrash(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]fileResponse, 0, len(files))
	for _, f := range files {
		resp = append(resp, toFileResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	id, err := fileIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	file, rc, err := h.files.Download(r.Context(), id, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	h.streamFile(w, r, file, rc)
}

func (h *Handlers) SoftDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	id, err := fileIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.files.SoftDelete(r.Context(), id, ownerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Restore(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	id, err := fileIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.files.Restore(r.Context(), id, ownerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Purge(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	id, err := fileIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.files.Purge(r.Context(), id, ownerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CreateShare(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.DownloadLimit < 0 || req.ExpiresIn.Duration < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "negative limits not allowed"})
		return
	}

	id, err := fileIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	link, err := h.shares.IssueOrUpdate(r.Context(), id, ownerID, services.ShareConfig{
		ExpiresIn:     req.ExpiresIn.Duration,
		Password:      req.Password,
		DownloadLimit: req.DownloadLimit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShareResponse(link))
}

func (h *Handlers) GetShare(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	id, err := fileIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	link, err := h.shares.Get(r.Context(), id, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShareResponse(link))
}

// SharedDownload is the unauthenticated capability route. The password can
// arrive as a form/query value or in the X-Share-Password header.
func (h *Handlers) SharedDownload(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")
	if password == "" {
		password = r.Header.Get(common.SharePasswordHeaderName)
	}

	file, err := h.shares.Resolve(r.Context(), chi.URLParam(r, "token"), password, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	rc, err := h.files.OpenShared(r.Context(), file)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	h.streamFile(w, r, file, rc)
}

// Sweep is the external scheduler's entry point for trash retention.
func (h *Handlers) Sweep(w http.ResponseWriter, r *http.Request) {
	if h.cfg.SweepKey == "" || r.Header.Get("X-Sweep-Key") != h.cfg.SweepKey {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	purged, err := h.files.SweepExpiredTrash(r.Context(), h.cfg.TrashRetention, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Purged: purged})
}

func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) streamFile(w http.ResponseWriter, r *http.Request, file *models.File, rc io.ReadCloser) {
	contentType := mime.TypeByExtension(filepath.Ext(file.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))

	if _, err := io.Copy(w, rc); err != nil {
		// headers are gone; all we can do is note the broken stream
		h.logger.Warn(r.Context(), "interrupted download", "file_id", file.ID, "error", err)
	}
}
