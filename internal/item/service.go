// Package item はアイテムの管理機能を提供する。
package item

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/itemkeep/internal/metrics"
	"github.com/hitoshi/itemkeep/internal/model"
	"github.com/hitoshi/itemkeep/internal/repository"
	"github.com/hitoshi/itemkeep/internal/security"
)

// maxNameLength はアイテム名の最大文字数（items.nameの列長）。
const maxNameLength = 255

// アイテム変更操作（メトリクスのラベル値）。
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// Service はアイテムのCRUDを提供する。
// 名前と説明はサニタイズ後のプレーンテキストとして保存する。
type Service struct {
	repo      repository.ItemRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	repo repository.ItemRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// List は全アイテムを作成日時の昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Item, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Get は指定IDのアイテムを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Item, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}
	return item, nil
}

// Create はアイテムを作成する。
func (s *Service) Create(ctx context.Context, name, description string) (*model.Item, error) {
	name, description, err := s.normalize(name, description)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := &model.Item{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.metrics.RecordItemMutation(OperationCreate)
	slog.Info("item created", slog.String("item_id", item.ID))
	return item, nil
}

// Update はアイテムの名前と説明を置き換える。
func (s *Service) Update(ctx context.Context, id, name, description string) (*model.Item, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	name, description, err = s.normalize(name, description)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, &model.Item{
		ID:          id,
		Name:        name,
		Description: description,
		UpdatedAt:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if updated == nil {
		return nil, model.NewItemNotFoundError(id)
	}

	s.metrics.RecordItemMutation(OperationUpdate)
	slog.Info("item updated", slog.String("item_id", id))
	return updated, nil
}

// Delete はアイテムを削除し、削除したアイテムを返す。
func (s *Service) Delete(ctx context.Context, id string) (*model.Item, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete item: %w", err)
	}
	if deleted == nil {
		return nil, model.NewItemNotFoundError(id)
	}

	s.metrics.RecordItemMutation(OperationDelete)
	slog.Info("item deleted", slog.String("item_id", id))
	return deleted, nil
}

// normalize は名前と説明をサニタイズし、必須チェックを行う。
func (s *Service) normalize(name, description string) (string, string, error) {
	name = s.sanitizer.PlainText(name)
	description = s.sanitizer.PlainText(description)

	if name == "" {
		return "", "", model.NewInvalidInputError("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", "", model.NewInvalidInputError("name is too long")
	}
	if description == "" {
		return "", "", model.NewInvalidInputError("description is required")
	}
	return name, description, nil
}

// parseID はIDがUUID形式かを検証し、正規化した文字列を返す。
func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", model.NewInvalidItemIDError(id)
	}
	return parsed.String(), nil
}
