// Package model はドメインモデルを定義する。
package model

import "time"

// Item は利用者が管理するアイテムを表す。
type Item struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
