package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/hitoshi/authgate/internal/model"
)

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// Create はidentityを作成する。IDはUUIDで採番する。
// emailの一意制約違反はErrDuplicateEmailとして返す。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	id := uuid.NewString()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		id, identity.Email, identity.PasswordHash, identity.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to insert identity: %w", ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	identity.ID = id
	return nil
}

// FindByEmail はメールアドレスでidentityを検索する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	identity := &model.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at
		 FROM identities
		 WHERE email = $1`,
		email,
	).Scan(&identity.ID, &identity.Email, &identity.PasswordHash, &identity.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity by email: %w", err)
	}

	return identity, nil
}

// Ping はデータベースへの疎通を確認する。
func (r *PostgresIdentityRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// isUniqueViolation はPostgreSQLの一意制約違反（23505）かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgerrcode.UniqueViolation
	}
	return false
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
var _ Pinger = (*PostgresIdentityRepo)(nil)
