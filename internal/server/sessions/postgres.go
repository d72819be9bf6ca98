package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/dbx"
	"github.com/realforestry/hortus-auth/internal/server/models"
	"github.com/realforestry/hortus-auth/internal/server/repositories/repomanager"
)

// PostgresStore keeps sessions in the refresh_tokens table. Writers lock the
// owning account row first so issue and rotate for one account serialize;
// the UNIQUE(account_id) constraint backs this up.
type PostgresStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      RefreshIssuer
	now         func() time.Time
}

func NewPostgresStore(db *sql.DB, m repomanager.RepositoryManager, issuer RefreshIssuer) *PostgresStore {
	return &PostgresStore{db: db, repomanager: m, issuer: issuer, now: time.Now}
}

func (s *PostgresStore) Issue(ctx context.Context, accountID string) (*models.IssuedToken, error) {
	var issued *models.IssuedToken

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		if err := repo.LockAccount(ctx, accountID); err != nil {
			return err
		}

		var err error
		issued, err = s.replace(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return issued, nil
}

func (s *PostgresStore) Redeem(ctx context.Context, token string, rotate bool) (*Redemption, error) {
	hash := HashToken(token)

	current, err := s.repomanager.RefreshTokens(s.db).Find(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, err
	}

	var (
		result  *Redemption
		expired bool
	)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		if err := repo.LockAccount(ctx, current.AccountID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return err
		}

		// Re-read under the account lock; a concurrent issue or rotate may
		// have replaced the row since the first lookup.
		row, err := repo.FindForUpdate(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return err
		}

		if !s.now().Before(row.Expires) {
			expired = true
			return repo.Delete(ctx, hash)
		}

		result = &Redemption{AccountID: row.AccountID}
		if !rotate {
			return nil
		}

		result.Next, err = s.replace(ctx, tx, row.AccountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, common.ErrRefreshTokenExpired
	}

	return result, nil
}

func (s *PostgresStore) RevokeAll(ctx context.Context, accountID string) error {
	return s.repomanager.RefreshTokens(s.db).DeleteByAccount(ctx, accountID)
}

// replace must run inside a transaction holding the account lock.
func (s *PostgresStore) replace(ctx context.Context, tx dbx.DBTX, accountID string) (*models.IssuedToken, error) {
	repo := s.repomanager.RefreshTokens(tx)

	if err := repo.DeleteByAccount(ctx, accountID); err != nil {
		return nil, err
	}

	value, expires, err := s.issuer.IssueRefresh(accountID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := repo.Create(ctx, accountID, HashToken(value), expires); err != nil {
		return nil, err
	}

	return &models.IssuedToken{Value: value, AccountID: accountID, Expires: expires}, nil
}
