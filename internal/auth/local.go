package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/itemkeep/internal/model"
	"github.com/hitoshi/itemkeep/internal/repository"
)

// maxUsernameLength はユーザー名の最大文字数（identities.usernameの列長）。
const maxUsernameLength = 255

// LocalAuthConfig はローカル認証の設定。
type LocalAuthConfig struct {
	BcryptCost int
}

// LocalAuthenticator はユーザー名・パスワードによる認証と登録を提供する。
type LocalAuthenticator struct {
	identities repository.IdentityRepository
	cost       int
	// dummyHash はユーザー不在時にも同コストの比較を行うためのハッシュ。
	dummyHash string
	now       func() time.Time
}

// NewLocalAuthenticator はLocalAuthenticatorを生成する。
func NewLocalAuthenticator(identities repository.IdentityRepository, config LocalAuthConfig) (*LocalAuthenticator, error) {
	cost := normalizeCost(config.BcryptCost)

	dummy, err := HashPassword(uuid.NewString(), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &LocalAuthenticator{
		identities: identities,
		cost:       cost,
		dummyHash:  dummy,
		now:        time.Now,
	}, nil
}

// Authenticate はユーザー名とパスワードを検証し、一致したidentityを返す。
// ユーザー不在・外部IdP専用identity・パスワード不一致はいずれも同じ
// InvalidCredentialsエラーになり、呼び出し側から区別できない。
func (a *LocalAuthenticator) Authenticate(ctx context.Context, username, password string) (*model.Identity, error) {
	username = strings.TrimSpace(username)

	identity, err := a.identities.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity == nil || !identity.HasPassword() {
		// 応答時間でユーザーの有無が判別できないよう比較だけは行う
		_ = ComparePasswordAndHash(password, a.dummyHash)
		return nil, model.NewInvalidCredentialsError()
	}

	if err := ComparePasswordAndHash(password, identity.PasswordHash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}

	return identity, nil
}

// Register はローカルidentityを新規作成する。
// 既存のユーザー名と重複した場合はDuplicateUsernameエラーを返し、既存レコードは変更しない。
func (a *LocalAuthenticator) Register(ctx context.Context, username, password string) (*model.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, model.NewInvalidInputError("username is required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, model.NewInvalidInputError("username is too long")
	}
	if password == "" {
		return nil, model.NewInvalidInputError("password is required")
	}

	hash, err := HashPassword(password, a.cost)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, model.NewInvalidInputError("password must be at most 72 bytes")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.now()
	identity := &model.Identity{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := a.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, model.ErrDuplicateUsername) {
			return nil, model.NewDuplicateUsernameError()
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return identity, nil
}
