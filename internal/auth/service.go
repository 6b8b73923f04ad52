// Package auth はローカル認証・外部IdP連携・セッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/itemkeep/internal/metrics"
	"github.com/hitoshi/itemkeep/internal/model"
)

// 認証結果（メトリクスのラベル値）。
const (
	resultSuccess            = "success"
	resultInvalidInput       = "invalid_input"
	resultInvalidCredentials = "invalid_credentials"
	resultDuplicate          = "duplicate"
	resultInvalidGrant       = "invalid_grant"
	resultFailed             = "failed"
	resultError              = "error"
)

// Service は認証に関するビジネスロジックを提供する。
// HTTPハンドラーはこのServiceのみを呼び出す。
type Service struct {
	local     *LocalAuthenticator
	federated *FederatedAuthenticator
	sessions  *SessionManager
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	local *LocalAuthenticator,
	federated *FederatedAuthenticator,
	sessions *SessionManager,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		local:     local,
		federated: federated,
		sessions:  sessions,
		metrics:   collector,
	}
}

// SessionMaxAge はセッションの有効期間を返す。Cookieの有効期限に使う。
func (s *Service) SessionMaxAge() time.Duration {
	return s.sessions.MaxAge()
}

// Register はローカルidentityを登録する。セッションは発行しない。
func (s *Service) Register(ctx context.Context, username, password string) (*model.Identity, error) {
	identity, err := s.local.Register(ctx, username, password)
	if err != nil {
		s.metrics.RecordRegistration(classifyResult(err))
		return nil, err
	}

	s.metrics.RecordRegistration(resultSuccess)
	slog.Info("identity registered", slog.String("identity_id", identity.ID))
	return identity, nil
}

// Login はユーザー名・パスワードで認証し、成功した場合はセッションを発行する。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Identity, *model.Session, error) {
	identity, err := s.local.Authenticate(ctx, username, password)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodLocal, classifyResult(err))
		return nil, nil, err
	}

	session, err := s.sessions.Establish(ctx, identity)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodLocal, resultError)
		return nil, nil, fmt.Errorf("failed to establish session: %w", err)
	}

	s.metrics.RecordLogin(metrics.MethodLocal, resultSuccess)
	slog.Info("identity logged in",
		slog.String("identity_id", identity.ID),
		slog.String("method", metrics.MethodLocal),
	)
	return identity, session, nil
}

// LoginURL は外部IdPの認可URLを生成する。
func (s *Service) LoginURL(state string) string {
	return s.federated.LoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 外部IdP連携の失敗はUpstreamFailureエラーとして返す。
func (s *Service) HandleCallback(ctx context.Context, params CallbackParams) (*model.Identity, *model.Session, error) {
	identity, err := s.federated.Authenticate(ctx, params)
	if err != nil {
		var fedErr *FederatedError
		stage := StateFailed
		if errors.As(err, &fedErr) {
			stage = fedErr.Stage
		}

		result := resultFailed
		if errors.Is(err, model.ErrInvalidGrant) {
			result = resultInvalidGrant
		}
		s.metrics.RecordLogin(metrics.MethodGoogle, result)

		slog.Warn("federated login failed",
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
		return nil, nil, fmt.Errorf("%w: %w", model.NewUpstreamFailureError(string(stage)), err)
	}

	session, err := s.sessions.Establish(ctx, identity)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodGoogle, resultError)
		return nil, nil, fmt.Errorf("failed to establish session: %w", err)
	}

	s.metrics.RecordLogin(metrics.MethodGoogle, resultSuccess)
	return identity, session, nil
}

// Logout はセッションを破棄する。空・不明なトークンでも成功する。
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return err
	}
	if token != "" {
		slog.Info("session destroyed")
	}
	return nil
}

// CurrentIdentity はセッショントークンから現在のidentityを返す。
// 未認証の場合はnil,nilを返す。
func (s *Service) CurrentIdentity(ctx context.Context, token string) (*model.Identity, error) {
	identity, result, err := s.sessions.resolve(ctx, token)
	if token != "" {
		s.metrics.RecordSessionResolve(result)
	}
	return identity, err
}

// classifyResult はエラーをメトリクスのラベル値に変換する。
func classifyResult(err error) string {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return resultError
	}
	switch apiErr.Code {
	case model.ErrCodeInvalidInput:
		return resultInvalidInput
	case model.ErrCodeInvalidCredentials:
		return resultInvalidCredentials
	case model.ErrCodeDuplicateUsername:
		return resultDuplicate
	default:
		return resultError
	}
}
