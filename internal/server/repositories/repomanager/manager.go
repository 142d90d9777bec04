package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filescloud/internal/dbx"
	"github.com/dmitrijs2005/filescloud/internal/server/repositories/files"
	"github.com/dmitrijs2005/filescloud/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/filescloud/internal/server/repositories/sharelinks"
	"github.com/dmitrijs2005/filescloud/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Files(db dbx.DBTX) files.Repository
	ShareLinks(db dbx.DBTX) sharelinks.Repository
}
