package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/itemkeep/internal/model"
	"github.com/hitoshi/itemkeep/internal/repository"
)

// sessionTokenBytes はセッショントークンの乱数バイト数（16進で64文字）。
const sessionTokenBytes = 32

// セッション解決結果（メトリクスのラベル値）。
const (
	ResolveValid   = "valid"
	ResolveMissing = "missing"
	ResolveExpired = "expired"
	ResolveOrphan  = "orphan"
	ResolveError   = "error"
)

// SessionConfig はセッション管理の設定。
type SessionConfig struct {
	MaxAge time.Duration
	// Clock は現在時刻の取得関数。nilの場合はtime.Now。
	Clock func() time.Time
}

// SessionManager はセッションの発行・解決・破棄を提供する。
// 有効期限は解決時に遅延評価し、バックグラウンドでの掃除は行わない。
type SessionManager struct {
	sessions   repository.SessionRepository
	identities repository.IdentityRepository
	maxAge     time.Duration
	now        func() time.Time
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(
	sessions repository.SessionRepository,
	identities repository.IdentityRepository,
	config SessionConfig,
) *SessionManager {
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		sessions:   sessions,
		identities: identities,
		maxAge:     config.MaxAge,
		now:        now,
	}
}

// MaxAge はセッションの有効期間を返す。
func (m *SessionManager) MaxAge() time.Duration {
	return m.maxAge
}

// Establish はidentityに対して新しいセッションを発行し永続化する。
// 同一identityの既存セッションはそのまま残る。
func (m *SessionManager) Establish(ctx context.Context, identity *model.Identity) (*model.Session, error) {
	token, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	session := &model.Session{
		ID:         token,
		IdentityID: identity.ID,
		ExpiresAt:  now.Add(m.maxAge),
		CreatedAt:  now,
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Resolve はトークンに紐づくidentityを返す。
// 空・不明・期限切れのトークンはnil,nilを返す。期限切れのセッションはベストエフォートで削除する。
func (m *SessionManager) Resolve(ctx context.Context, token string) (*model.Identity, error) {
	identity, _, err := m.resolve(ctx, token)
	return identity, err
}

// resolve はResolveの本体で、メトリクス用の結果ラベルも返す。
func (m *SessionManager) resolve(ctx context.Context, token string) (*model.Identity, string, error) {
	if token == "" {
		return nil, ResolveMissing, nil
	}

	session, err := m.sessions.FindByID(ctx, token)
	if err != nil {
		return nil, ResolveError, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ResolveMissing, nil
	}

	if session.IsExpired(m.now()) {
		if err := m.sessions.DeleteByID(ctx, token); err != nil {
			slog.Warn("failed to delete expired session",
				slog.String("identity_id", session.IdentityID),
				slog.String("error", err.Error()),
			)
		}
		return nil, ResolveExpired, nil
	}

	identity, err := m.identities.FindByID(ctx, session.IdentityID)
	if err != nil {
		return nil, ResolveError, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil {
		return nil, ResolveOrphan, nil
	}

	return identity, ResolveValid, nil
}

// Destroy はセッションを破棄する。空・不明なトークンに対しては何もしない。
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.DeleteByID(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
