// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/itemkeep/internal/model"
)

// IdentityRepository は認証主体（Identity）の永続化インターフェース。
// ユーザー名・外部IdP IDの一意性はストアの一意インデックスで保証する。
type IdentityRepository interface {
	// FindByID は指定IDのidentityを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Identity, error)

	// FindByUsername はユーザー名でidentityを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Identity, error)

	// FindByFederatedID は外部IdP IDでidentityを検索する。見つからない場合はnilを返す。
	FindByFederatedID(ctx context.Context, federatedID string) (*model.Identity, error)

	// Create はidentityを作成する。既存レコードを上書きすることはない。
	// ユーザー名重複時はmodel.ErrDuplicateUsername、
	// 外部IdP ID重複時はmodel.ErrDuplicateFederatedIDを返す。
	Create(ctx context.Context, identity *model.Identity) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	// 有効期限の判定は呼び出し側で行う。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合も成功とする。
	DeleteByID(ctx context.Context, id string) error
}

// ItemRepository はアイテムの永続化インターフェース。
type ItemRepository interface {
	// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// List は全アイテムを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.Item, error)

	// Create はアイテムを作成する。
	Create(ctx context.Context, item *model.Item) error

	// Update はアイテムの名前と説明を更新し、更新後のアイテムを返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, item *model.Item) (*model.Item, error)

	// Delete は指定IDのアイテムを削除し、削除したアイテムを返す。
	// 見つからない場合はnilを返す。
	Delete(ctx context.Context, id string) (*model.Item, error)
}

// Pinger はヘルスチェック用にストアへの到達性を確認するインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}
