package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword は空パスワードのハッシュ化要求を表す。
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong はbcryptが扱える72バイトを超えるパスワードを表す。
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrPasswordMismatch はパスワードとハッシュの不一致を表す。
	ErrPasswordMismatch = errors.New("password does not match hash")
)

// maxPasswordBytes はbcryptの入力上限。
const maxPasswordBytes = 72

// normalizeCost はbcryptコストを有効範囲に収める。0以下は既定値を使う。
func normalizeCost(cost int) int {
	switch {
	case cost <= 0:
		return bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		return bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		return bcrypt.MaxCost
	default:
		return cost
	}
}

// HashPassword はパスワードのbcryptハッシュを生成する。
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), normalizeCost(cost))
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// ComparePasswordAndHash は平文パスワードがハッシュと一致するかを検証する。
// 不一致の場合はErrPasswordMismatchを返す。
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}
