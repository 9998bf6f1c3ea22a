// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/milijuli/sewa/internal/middleware"
	"github.com/milijuli/sewa/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
	// StateSecret はoauth_state CookieのHMAC署名鍵（SESSION_SECRET）。
	StateSecret string
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
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

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    signState(h.config.StateSecret, state),
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || !verifyState(h.config.StateSecret, stateCookie.Value, state) {
		slog.WarnContext(r.Context(), "oauth state mismatch")
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_OAUTH_STATE",
			Message:  "The sign-in request could not be verified.",
			Category: "auth",
			Action:   "Start the sign-in again.",
		})
		return
	}
	h.clearCookie(w, oauthStateCookie, "")

	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "MISSING_OAUTH_CODE",
			Message:  "The sign-in response did not include an authorization code.",
			Category: "auth",
			Action:   "Start the sign-in again.",
		})
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.ErrorContext(r.Context(), "oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     "AUTHENTICATION_FAILED",
			Message:  "Sign-in with Google failed.",
			Category: "auth",
			Action:   "Try again in a moment.",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.ErrorContext(r.Context(), "failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	h.clearCookie(w, middleware.SessionCookieName, h.config.CookieDomain)
	http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// signState はstateにHMAC-SHA256署名を付けたCookie値 "<state>.<mac>" を返す。
func signState(secret, state string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(state))
	return state + "." + hex.EncodeToString(mac.Sum(nil))
}

// verifyState はCookie値の署名を検証し、クエリのstateと一致するかを返す。
func verifyState(secret, cookieValue, state string) bool {
	signed, _, ok := strings.Cut(cookieValue, ".")
	if !ok || signed != state {
		return false
	}
	return hmac.Equal([]byte(cookieValue), []byte(signState(secret, state)))
}
