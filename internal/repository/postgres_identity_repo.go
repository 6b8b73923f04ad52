package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/itemkeep/internal/model"
)

// 一意制約名（マイグレーションで定義）。
const (
	constraintIdentityUsername    = "identities_username_key"
	constraintIdentityFederatedID = "identities_federated_id_key"
)

const identityColumns = `id, username, password_hash, federated_id, created_at, updated_at`

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByID は指定IDのidentityを取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`,
		id,
	)
	identity, err := scanIdentity(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity by ID: %w", err)
	}
	return identity, nil
}

// FindByUsername はユーザー名でidentityを検索する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByUsername(ctx context.Context, username string) (*model.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE username = $1`,
		username,
	)
	identity, err := scanIdentity(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity by username: %w", err)
	}
	return identity, nil
}

// FindByFederatedID は外部IdP IDでidentityを検索する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByFederatedID(ctx context.Context, federatedID string) (*model.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE federated_id = $1`,
		federatedID,
	)
	identity, err := scanIdentity(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity by federated ID: %w", err)
	}
	return identity, nil
}

// Create はidentityを作成する。
// 一意制約違反は制約名に応じてmodel.ErrDuplicateUsernameまたはmodel.ErrDuplicateFederatedIDに変換する。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, username, password_hash, federated_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		identity.ID, identity.Username, nullString(identity.PasswordHash), nullString(identity.FederatedID),
		identity.CreatedAt, identity.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	if constraint, ok := uniqueViolationConstraint(err); ok {
		switch constraint {
		case constraintIdentityUsername:
			return model.ErrDuplicateUsername
		case constraintIdentityFederatedID:
			return model.ErrDuplicateFederatedID
		}
	}
	return fmt.Errorf("failed to create identity: %w", err)
}

// scanIdentity は1行分のidentityを読み取る。行が無い場合はnil,nilを返す。
func scanIdentity(row *sql.Row) (*model.Identity, error) {
	identity := &model.Identity{}
	var passwordHash, federatedID sql.NullString

	err := row.Scan(
		&identity.ID, &identity.Username, &passwordHash, &federatedID,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	identity.PasswordHash = nullStringValue(passwordHash)
	identity.FederatedID = nullStringValue(federatedID)
	return identity, nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
