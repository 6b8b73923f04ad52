package middleware

import (
	"net/http"

	"github.com/hitoshi/itemkeep/internal/model"
)

// Decision は認可判定の結果。
type Decision int

const (
	// Deny は未認証のため拒否することを示す。
	Deny Decision = iota
	// Allow は許可することを示す。
	Allow
)

// String はログ出力用の表現を返す。
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Authorize はRequestContextに認証済みidentityがあればAllowを返す純粋関数。
func Authorize(rc RequestContext) Decision {
	if rc.IsAuthenticated() {
		return Allow
	}
	return Deny
}

// RequireAuthenticated は未認証リクエストに401を返すルート単位のミドルウェア。
// セッションミドルウェアの内側に配置する。
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Authorize(FromContext(r.Context())) == Deny {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}
