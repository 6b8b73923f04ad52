// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/itemkeep/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// requestContextKey はリクエストコンテキストにRequestContextを格納するためのキー。
var requestContextKey = contextKey("request_context")

// RequestContext はリクエストごとの認証状態。
// セッションミドルウェアが1回だけ生成し、以降は読み取り専用として扱う。
type RequestContext struct {
	// Identity は認証済みの主体。未認証の場合はnil。
	Identity *model.Identity
	// SessionToken はCookieから読み取ったトークン。未送信の場合は空。
	SessionToken string
}

// IsAuthenticated は認証済みかを返す。
func (rc RequestContext) IsAuthenticated() bool {
	return rc.Identity != nil
}

// IdentityID は認証済みidentityのIDを返す。未認証の場合は空文字列。
func (rc RequestContext) IdentityID() string {
	if rc.Identity == nil {
		return ""
	}
	return rc.Identity.ID
}

// SessionResolver はセッショントークンからidentityを解決するインターフェース。
// auth.Serviceが実装する。
type SessionResolver interface {
	CurrentIdentity(ctx context.Context, token string) (*model.Identity, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// RequestContextをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証でもリクエストは拒否せず、認可は各ルートのRequireAuthenticatedで行う。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := RequestContext{}

			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				rc.SessionToken = cookie.Value

				identity, err := resolver.CurrentIdentity(r.Context(), cookie.Value)
				if err != nil {
					// ストア障害時は未認証として扱う
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
				} else {
					rc.Identity = identity
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithRequestContext(r.Context(), rc)))
		})
	}
}

// FromContext はリクエストコンテキストからRequestContextを取得する。
// セッションミドルウェアを通過していない場合は未認証のRequestContextを返す。
func FromContext(ctx context.Context) RequestContext {
	rc, ok := ctx.Value(requestContextKey).(RequestContext)
	if !ok {
		return RequestContext{}
	}
	return rc
}

// ContextWithRequestContext はコンテキストにRequestContextを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}
