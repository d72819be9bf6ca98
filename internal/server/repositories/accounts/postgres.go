package accounts

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

const accountColumns = `id, email, username, password_hash, full_name, avatar_url, is_verified,
		 otp_code, otp_issued_at, otp_attempts, roles, created_at, created_by, updated_at, updated_by`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (id, email, username, password_hash, full_name, avatar_url, is_verified,
		 otp_code, otp_issued_at, roles, created_at, created_by, updated_at, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 `

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, nullString(a.Username), a.PasswordHash, a.FullName, a.AvatarURL, a.Verified,
		nullStringPtr(a.OTPCode), nullTime(a.OTPIssuedAt), encodeRoles(a.Roles),
		a.CreatedAt, a.CreatedBy, a.UpdatedAt, a.UpdatedBy)

	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.findOne(ctx, `username = $1`, username)
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		 WHERE ` + where + ` AND deleted_at IS NULL
		 `

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdateOTP(ctx context.Context, id string, code *string, issuedAt *time.Time, updatedBy string) error {
	query :=
		`UPDATE accounts SET otp_code = $2, otp_issued_at = $3, otp_attempts = 0,
		 updated_by = $4, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, nullStringPtr(code), nullTime(issuedAt), updatedBy)
	return requireOneRow(res, err)
}

func (r *PostgresRepository) RecordOTPFailure(ctx context.Context, id, pendingCode string, maxAttempts int) (int, error) {
	query :=
		`UPDATE accounts SET otp_attempts = otp_attempts + 1,
		 otp_code = CASE WHEN otp_attempts + 1 >= $3 THEN NULL ELSE otp_code END,
		 otp_issued_at = CASE WHEN otp_attempts + 1 >= $3 THEN NULL ELSE otp_issued_at END,
		 updated_at = NOW()
		 WHERE id = $1 AND otp_code = $2 AND deleted_at IS NULL
		 RETURNING otp_attempts
		 `

	var attempts int
	err := r.db.QueryRowContext(ctx, query, id, pendingCode, maxAttempts).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id, code, updatedBy string) error {
	query :=
		`UPDATE accounts SET is_verified = TRUE, otp_code = NULL, otp_issued_at = NULL, otp_attempts = 0,
		 updated_by = $3, updated_at = NOW()
		 WHERE id = $1 AND otp_code = $2 AND deleted_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, code, updatedBy)
	return requireOneRow(res, err)
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash, expectedCode, updatedBy string) error {
	query :=
		`UPDATE accounts SET password_hash = $2, otp_code = NULL, otp_issued_at = NULL, otp_attempts = 0,
		 updated_by = $4, updated_at = NOW()
		 WHERE id = $1 AND ($3 = '' OR otp_code = $3) AND deleted_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, hash, expectedCode, updatedBy)
	return requireOneRow(res, err)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p models.Profile, updatedBy string) (*models.Account, error) {
	query :=
		`UPDATE accounts SET full_name = $2, avatar_url = $3, updated_by = $4, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id, p.FullName, p.AvatarURL, updatedBy))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a           models.Account
		username    sql.NullString
		otpCode     sql.NullString
		otpIssuedAt sql.NullTime
		roles       string
	)

	err := row.Scan(&a.ID, &a.Email, &username, &a.PasswordHash, &a.FullName, &a.AvatarURL, &a.Verified,
		&otpCode, &otpIssuedAt, &a.OTPAttempts, &roles, &a.CreatedAt, &a.CreatedBy, &a.UpdatedAt, &a.UpdatedBy)
	if err != nil {
		return nil, err
	}

	a.Username = username.String
	if otpCode.Valid {
		a.OTPCode = &otpCode.String
	}
	if otpIssuedAt.Valid {
		a.OTPIssuedAt = &otpIssuedAt.Time
	}
	a.Roles = decodeRoles(roles)
	return &a, nil
}

func requireOneRow(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
