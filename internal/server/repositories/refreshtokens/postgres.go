package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/dbx"
	"github.com/realforestry/hortus-auth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx). The locking methods only make sense inside a *sql.Tx.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LockAccount(ctx context.Context, accountID string) error {
	query :=
		`SELECT id FROM accounts
		 WHERE id = $1 AND deleted_at IS NULL
		 FOR UPDATE
		 `

	var id string
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, accountID, tokenHash string, expires time.Time) error {
	query :=
		`INSERT INTO refresh_tokens (token_hash, account_id, expires_at)
		 VALUES ($1, $2, $3)
		 `

	if _, err := r.db.ExecContext(ctx, query, tokenHash, accountID, expires); err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query :=
		`SELECT token_hash, account_id, expires_at, created_at
		 FROM refresh_tokens
		 WHERE token_hash = $1
		 `
	return r.findOne(ctx, query, tokenHash)
}

func (r *PostgresRepository) FindForUpdate(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query :=
		`SELECT token_hash, account_id, expires_at, created_at
		 FROM refresh_tokens
		 WHERE token_hash = $1
		 FOR UPDATE
		 `
	return r.findOne(ctx, query, tokenHash)
}

func (r *PostgresRepository) findOne(ctx context.Context, query, tokenHash string) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&t.TokenHash, &t.AccountID, &t.Expires, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, tokenHash string) error {
	query :=
		`DELETE FROM refresh_tokens
		 WHERE token_hash = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	query :=
		`DELETE FROM refresh_tokens
		 WHERE account_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
