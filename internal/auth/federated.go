package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/hitoshi/itemkeep/internal/model"
	"github.com/hitoshi/itemkeep/internal/repository"
	"github.com/hitoshi/itemkeep/internal/security"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名を返す。
	Name() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	// FetchUserInfo はトークンでユーザー情報を取得する。
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*OAuthUserInfo, error)
}

// ExchangeState はOAuthコールバック処理の状態を表す。
type ExchangeState string

const (
	StateInitiated      ExchangeState = "initiated"
	StateCodeReceived   ExchangeState = "code_received"
	StateTokenExchanged ExchangeState = "token_exchanged"
	StateProfileFetched ExchangeState = "profile_fetched"
	StateResolved       ExchangeState = "resolved"
	StateFailed         ExchangeState = "failed"
)

// PendingOAuthExchange は1回のコールバック処理の間だけ存在する一時的な交換状態。
// 永続化はしない。
type PendingOAuthExchange struct {
	Code     string
	State    ExchangeState
	Token    *oauth2.Token
	Profile  *OAuthUserInfo
	Identity *model.Identity
	// FailedAt は失敗した遷移の遷移先（例: トークン交換失敗ならTokenExchanged）。
	FailedAt ExchangeState
}

// advance は次の状態へ遷移する。終端状態からは遷移しない。
func (e *PendingOAuthExchange) advance(next ExchangeState) {
	if e.State == StateResolved || e.State == StateFailed {
		return
	}
	e.State = next
}

// fail はattemptedへの遷移に失敗したとしてFailedへ遷移し、FederatedErrorを返す。
func (e *PendingOAuthExchange) fail(attempted ExchangeState, err error) error {
	if e.State != StateFailed {
		e.FailedAt = attempted
		e.State = StateFailed
	}
	return &FederatedError{Stage: e.FailedAt, Err: err}
}

// FederatedError は外部IdP連携の失敗を表す。Stageは失敗した遷移の遷移先。
type FederatedError struct {
	Stage ExchangeState
	Err   error
}

// Error はerrorインターフェースを実装する。
func (e *FederatedError) Error() string {
	return fmt.Sprintf("federated login failed at %s: %v", e.Stage, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FederatedError) Unwrap() error {
	return e.Err
}

// CallbackParams はOAuthコールバックで受け取ったクエリパラメータ。
type CallbackParams struct {
	Code string
	// Error はIdPが返したerrorパラメータ（利用者による拒否など）。
	Error string
}

// FederatedAuthConfig は外部IdP連携の設定。
type FederatedAuthConfig struct {
	// Timeout はIdPへの送信リクエスト全体の上限。0以下の場合は10秒。
	Timeout time.Duration
}

const (
	defaultFederatedTimeout = 10 * time.Second
	// maxUsernameAttempts は連番サフィックスで衝突回避を試みる回数。
	maxUsernameAttempts = 5
	// maxDerivedUsernameRunes は表示名から導出するユーザー名の最大文字数。
	maxDerivedUsernameRunes = 64
	fallbackUsername        = "user"
)

// FederatedAuthenticator は外部IdPの認可コードを検証し、identityへ解決する。
type FederatedAuthenticator struct {
	provider   OAuthProvider
	identities repository.IdentityRepository
	sanitizer  security.TextSanitizer
	timeout    time.Duration
	now        func() time.Time
	randSuffix func() (string, error)
}

// NewFederatedAuthenticator はFederatedAuthenticatorを生成する。
func NewFederatedAuthenticator(
	provider OAuthProvider,
	identities repository.IdentityRepository,
	sanitizer security.TextSanitizer,
	config FederatedAuthConfig,
) *FederatedAuthenticator {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultFederatedTimeout
	}
	return &FederatedAuthenticator{
		provider:   provider,
		identities: identities,
		sanitizer:  sanitizer,
		timeout:    timeout,
		now:        time.Now,
		randSuffix: randomSuffix,
	}
}

// LoginURL はIdPの認可URLを生成する。
func (a *FederatedAuthenticator) LoginURL(state string) string {
	return a.provider.GetLoginURL(state)
}

// Authenticate はコールバックを処理し、対応するidentityを返す。
// 初回ログインの場合はidentityを作成する。失敗時は何も永続化しない。
func (a *FederatedAuthenticator) Authenticate(ctx context.Context, params CallbackParams) (*model.Identity, error) {
	exchange := &PendingOAuthExchange{State: StateInitiated}

	if params.Error != "" {
		return nil, exchange.fail(StateCodeReceived, fmt.Errorf("provider returned error: %s", params.Error))
	}
	if params.Code == "" {
		return nil, exchange.fail(StateCodeReceived, errors.New("missing authorization code"))
	}
	exchange.Code = params.Code
	exchange.advance(StateCodeReceived)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	token, err := a.provider.ExchangeCode(callCtx, exchange.Code)
	if err != nil {
		return nil, exchange.fail(StateTokenExchanged, err)
	}
	exchange.Token = token
	exchange.advance(StateTokenExchanged)

	profile, err := a.provider.FetchUserInfo(callCtx, token)
	if err != nil {
		return nil, exchange.fail(StateProfileFetched, err)
	}
	if profile.ProviderUserID == "" {
		return nil, exchange.fail(StateProfileFetched, errors.New("profile has no subject"))
	}
	exchange.Profile = profile
	exchange.advance(StateProfileFetched)

	identity, err := a.resolveIdentity(ctx, profile)
	if err != nil {
		return nil, exchange.fail(StateResolved, err)
	}
	exchange.Identity = identity
	exchange.advance(StateResolved)

	return identity, nil
}

// resolveIdentity は外部IdP IDに対応するidentityを取得し、無ければ作成する。
func (a *FederatedAuthenticator) resolveIdentity(ctx context.Context, profile *OAuthUserInfo) (*model.Identity, error) {
	federatedID := a.provider.Name() + ":" + profile.ProviderUserID

	existing, err := a.identities.FindByFederatedID(ctx, federatedID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if existing != nil {
		slog.Info("existing identity logged in",
			slog.String("identity_id", existing.ID),
			slog.String("provider", a.provider.Name()),
		)
		return existing, nil
	}

	base := a.deriveUsername(profile)
	for attempt := 1; attempt <= maxUsernameAttempts+1; attempt++ {
		candidate, err := a.usernameCandidate(base, attempt)
		if err != nil {
			return nil, err
		}

		identity, err := a.createFederated(ctx, candidate, federatedID)
		switch {
		case err == nil:
			slog.Info("new federated identity created",
				slog.String("identity_id", identity.ID),
				slog.String("provider", a.provider.Name()),
			)
			return identity, nil
		case errors.Is(err, model.ErrDuplicateUsername):
			continue
		case errors.Is(err, model.ErrDuplicateFederatedID):
			// 同じIdPユーザーの初回ログインが並行した場合は先行側のidentityを使う
			winner, findErr := a.identities.FindByFederatedID(ctx, federatedID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to re-read identity: %w", findErr)
			}
			if winner == nil {
				return nil, fmt.Errorf("identity for %s vanished after conflict", federatedID)
			}
			return winner, nil
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("could not allocate a unique username for %q", base)
}

// usernameCandidate はattempt回目の候補名を返す。
// 1回目はそのまま、2回目以降は -2, -3 … を付与し、最後はランダムサフィックスを付ける。
func (a *FederatedAuthenticator) usernameCandidate(base string, attempt int) (string, error) {
	switch {
	case attempt == 1:
		return base, nil
	case attempt <= maxUsernameAttempts:
		return fmt.Sprintf("%s-%d", base, attempt), nil
	default:
		suffix, err := a.randSuffix()
		if err != nil {
			return "", fmt.Errorf("failed to generate username suffix: %w", err)
		}
		return base + "-" + suffix, nil
	}
}

func (a *FederatedAuthenticator) createFederated(ctx context.Context, username, federatedID string) (*model.Identity, error) {
	now := a.now()
	identity := &model.Identity{
		ID:          uuid.New().String(),
		Username:    username,
		FederatedID: federatedID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.identities.Create(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// deriveUsername は表示名からユーザー名を導出する。
// 表示名が使えない場合はメールアドレスのローカル部、それも無ければ"user"を使う。
func (a *FederatedAuthenticator) deriveUsername(profile *OAuthUserInfo) string {
	if name := a.sanitizer.PlainText(profile.Name); name != "" {
		return truncateRunes(name, maxDerivedUsernameRunes)
	}

	if at := strings.Index(profile.Email, "@"); at > 0 {
		if local := a.sanitizer.PlainText(profile.Email[:at]); local != "" {
			return truncateRunes(local, maxDerivedUsernameRunes)
		}
	}

	return fallbackUsername
}

// truncateRunes は文字列を最大n文字に切り詰める。
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// randomSuffix は8桁の16進ランダム文字列を返す。
func randomSuffix() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
