package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLの一意制約違反エラーコード。
const pqUniqueViolation = "23505"

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// uniqueViolationConstraint は一意制約違反であれば違反した制約名を返す。
func uniqueViolationConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", false
	}
	if string(pqErr.Code) != pqUniqueViolation {
		return "", false
	}
	return pqErr.Constraint, true
}
