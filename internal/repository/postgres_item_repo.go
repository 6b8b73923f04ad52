package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/itemkeep/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用したアイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	item := &model.Item{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at
		 FROM items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.Name, &item.Description, &item.CreatedAt, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アイテムの取得に失敗しました: %w", err)
	}
	return item, nil
}

// List は全アイテムを作成日時の昇順で返す。
func (r *PostgresItemRepo) List(ctx context.Context) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at
		 FROM items
		 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := make([]*model.Item, 0)
	for rows.Next() {
		item := &model.Item{}
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("アイテムの読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイテム一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// Create はアイテムを作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.Name, item.Description, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アイテムの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はアイテムの名前と説明を更新し、更新後のアイテムを返す。
// 見つからない場合はnilを返す。
func (r *PostgresItemRepo) Update(ctx context.Context, item *model.Item) (*model.Item, error) {
	updated := &model.Item{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE items SET name = $2, description = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`,
		item.ID, item.Name, item.Description, item.UpdatedAt,
	).Scan(&updated.ID, &updated.Name, &updated.Description, &updated.CreatedAt, &updated.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アイテムの更新に失敗しました: %w", err)
	}
	return updated, nil
}

// Delete は指定IDのアイテムを削除し、削除したアイテムを返す。
// 見つからない場合はnilを返す。
func (r *PostgresItemRepo) Delete(ctx context.Context, id string) (*model.Item, error) {
	deleted := &model.Item{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM items WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`,
		id,
	).Scan(&deleted.ID, &deleted.Name, &deleted.Description, &deleted.CreatedAt, &deleted.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アイテムの削除に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
