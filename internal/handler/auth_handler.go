// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/hitoshi/itemkeep/internal/auth"
	"github.com/hitoshi/itemkeep/internal/middleware"
	"github.com/hitoshi/itemkeep/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	// oauthStateMaxAge はstate Cookieの有効期間（秒）。
	oauthStateMaxAge = 600
	// loginPageRedirect は未認証時にフロントエンドへ案内するログインページ。
	loginPageRedirect = "/login.html"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL(state string) string
	HandleCallback(ctx context.Context, params auth.CallbackParams) (*model.Identity, *model.Session, error)
	Register(ctx context.Context, username, password string) (*model.Identity, error)
	Login(ctx context.Context, username, password string) (*model.Identity, *model.Session, error)
	Logout(ctx context.Context, token string) error
	SessionMaxAge() time.Duration
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL         string
	LoginFailureURL string
	CookieDomain    string
	CookieSecure    bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// credentialsRequest はregister/loginのリクエストボディ。
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate は必須項目と長さを検証する。
func (r credentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 72)),
	)
}

// userResponse はレスポンスに含めるidentityの公開情報。
type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Federated bool   `json:"federated,omitempty"`
}

func toUserResponse(identity *model.Identity) *userResponse {
	if identity == nil {
		return nil
	}
	return &userResponse{
		ID:        identity.ID,
		Username:  identity.Username,
		Federated: identity.IsFederated(),
	}
}

// authStatusResponse はlogin/check-authのレスポンス。
type authStatusResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *userResponse `json:"user"`
	Redirect      string        `json:"redirect,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.LoginURL(state), http.StatusFound)
}

// GoogleCallback はOAuthコールバックを処理する。
// どの段階で失敗してもログイン失敗ページへリダイレクトする。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	h.clearStateCookie(w)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.redirectLoginFailure(w, r)
		return
	}

	// 2. 認可コードの交換とidentityの解決
	identity, session, err := h.service.HandleCallback(r.Context(), auth.CallbackParams{
		Code:  query.Get("code"),
		Error: query.Get("error"),
	})
	if err != nil {
		attrs := []any{slog.String("error", err.Error())}
		var fedErr *auth.FederatedError
		if errors.As(err, &fedErr) {
			attrs = append(attrs, slog.String("stage", string(fedErr.Stage)))
		}
		slog.Warn("oauth callback failed", attrs...)
		h.redirectLoginFailure(w, r)
		return
	}

	// 3. セッションCookieを設定してフロントエンドへ
	h.setSessionCookie(w, session)
	slog.Info("federated login succeeded", slog.String("identity_id", identity.ID))
	http.Redirect(w, r, h.config.BaseURL, http.StatusFound)
}

// Register はローカルidentityを登録する。セッションは発行しない。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		handleServiceError(w, model.NewInvalidInputError(err.Error()))
		return
	}

	if _, err := h.service.Register(r.Context(), req.Username, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

// Login はユーザー名とパスワードで認証し、セッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": verrs})
			return
		}
		handleServiceError(w, model.NewInvalidInputError(err.Error()))
		return
	}

	identity, session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials {
			writeJSON(w, http.StatusUnauthorized, authStatusResponse{Authenticated: false})
			return
		}
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, authStatusResponse{
		Authenticated: true,
		User:          toUserResponse(identity),
	})
}

// Logout はセッションを破棄する。ストア障害時もCookieはクリアする。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// CheckAuth は現在の認証状態を返す。
// GET /auth/check-auth
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	rc := middleware.FromContext(r.Context())
	if middleware.Authorize(rc) != middleware.Allow {
		writeJSON(w, http.StatusUnauthorized, authStatusResponse{
			Authenticated: false,
			Redirect:      loginPageRedirect,
		})
		return
	}

	writeJSON(w, http.StatusOK, authStatusResponse{
		Authenticated: true,
		User:          toUserResponse(rc.Identity),
	})
}

// Protected は認証済みの場合のみ到達する確認用エンドポイント。
// GET /auth/protected
func (h *AuthHandler) Protected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "You are authenticated!"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.service.SessionMaxAge() / time.Second),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) redirectLoginFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.config.LoginFailureURL, http.StatusFound)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
