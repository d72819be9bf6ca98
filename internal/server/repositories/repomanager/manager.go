package repomanager

import (
	"context"
	"database/sql"

	"github.com/realforestry/hortus-auth/internal/dbx"
	"github.com/realforestry/hortus-auth/internal/server/repositories/accounts"
	"github.com/realforestry/hortus-auth/internal/server/repositories/refreshtokens"
)

// RepositoryManager vends repositories bound to either a pool or a
// transaction handle.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
