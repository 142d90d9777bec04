package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/common"
	"github.com/dmitrijs2005/filescloud/internal/dbx"
	"github.com/dmitrijs2005/filescloud/internal/server/config"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
	"github.com/dmitrijs2005/filescloud/internal/server/repositories/repomanager"
)

// ShareConfig carries the policy knobs for a share link. Zero values mean
// "no constraint": no expiry, no password, unlimited downloads.
type ShareConfig struct {
	ExpiresIn     time.Duration
	Password      string
	DownloadLimit int64
}

// ShareService implements the share-link engine: issuing and reconfiguring
// per-file links and resolving tokens into downloadable files.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewShareService constructs a ShareService using repositories and server config.
func NewShareService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *ShareService {
	return &ShareService{db: db, repomanager: m}
}

// IssueOrUpdate creates the file's share link or reconfigures the existing
// one. Either way a fresh token is minted, so every save invalidates URLs
// already in circulation. The download counter carries over untouched.
func (s *ShareService) IssueOrUpdate(ctx context.Context, fileID, ownerID string, cfg ShareConfig) (*models.ShareLink, error) {
	// ownership gate; a foreign, absent, or trashed file reads as not found.
	// Managing a link requires the file out of the trash, even though a link
	// issued earlier keeps resolving while the file sits there.
	if _, err := s.repomanager.Files(s.db).GetActiveOwned(ctx, fileID, ownerID); err != nil {
		return nil, err
	}

	token, err := common.MakeRandHexString(common.ShareTokenBytes)
	if err != nil {
		return nil, common.ErrorInternal
	}

	link := &models.ShareLink{
		FileID:        fileID,
		Token:         token,
		DownloadLimit: cfg.DownloadLimit,
	}
	if cfg.ExpiresIn > 0 {
		t := time.Now().Add(cfg.ExpiresIn)
		link.ExpiresAt = &t
	}
	if cfg.Password != "" {
		p := cfg.Password
		link.Password = &p
	}

	return s.repomanager.ShareLinks(s.db).Upsert(ctx, link)
}

// Get returns the file's current share link for its owner, or
// common.ErrorNotFound when the file has never been shared.
func (s *ShareService) Get(ctx context.Context, fileID, ownerID string) (*models.ShareLink, error) {
	// same active-only gate as IssueOrUpdate
	if _, err := s.repomanager.Files(s.db).GetActiveOwned(ctx, fileID, ownerID); err != nil {
		return nil, err
	}
	return s.repomanager.ShareLinks(s.db).GetByFileID(ctx, fileID)
}

// Resolve turns a token plus optional password into a downloadable file,
// running every gate and the slot consumption in one transaction so a
// concurrent rotation or a racing download sees consistent state.
//
// Gates run in order: token lookup, expiry, password, download limit. A
// failed password attempt stops before the limit gate and consumes nothing.
// The slot is claimed before any bytes are streamed; a client that
// disconnects mid-download does not get its slot back.
func (s *ShareService) Resolve(ctx context.Context, token, suppliedPassword string, now time.Time) (*models.File, error) {
	var file *models.File

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		link, err := s.repomanager.ShareLinks(tx).GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenNotFound
			}
			return err
		}

		if link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
			return common.ErrLinkExpired
		}

		if link.Password != nil && *link.Password != "" {
			if suppliedPassword == "" {
				return common.ErrPasswordRequired
			}
			if suppliedPassword != *link.Password {
				return common.ErrPasswordMismatch
			}
		}

		if _, err := s.repomanager.ShareLinks(tx).ConsumeSlot(ctx, token); err != nil {
			if errors.Is(err, common.ErrDownloadLimitExceeded) {
				// zero rows also happens when a concurrent save rotated the
				// token away between the lookup and the claim; re-read so a
				// dead token reads as dead, not as an exhausted limit
				if _, lerr := s.repomanager.ShareLinks(tx).GetByToken(ctx, token); errors.Is(lerr, common.ErrorNotFound) {
					return common.ErrTokenNotFound
				}
			}
			return err
		}

		// deliberately unscoped: a link keeps working while its file sits in
		// the trash
		file, err = s.repomanager.Files(tx).GetByID(ctx, link.FileID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}
