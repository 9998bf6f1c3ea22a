package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newGoogleTestServers(t *testing.T, userInfo map[string]any) (token, info *httptest.Server) {
	t.Helper()
	token = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("code") == "invalid-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(token.Close)

	info = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if userInfo == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
	t.Cleanup(info.Close)
	return token, info
}

func TestGoogleOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	raw := provider.GetLoginURL("test-state-value")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("login URL is not parseable: %v", err)
	}
	q := u.Query()

	tests := []struct {
		param string
		want  string
	}{
		{"client_id", "test-client-id"},
		{"redirect_uri", "http://localhost:8080/auth/google/callback"},
		{"state", "test-state-value"},
		{"response_type", "code"},
		{"scope", "openid email profile"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			if got := q.Get(tt.param); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.param, got, tt.want)
			}
		})
	}
	if q.Has("access_type") {
		t.Error("offline access should not be requested")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	token, info := newGoogleTestServers(t, map[string]any{
		"sub":            "google-sub-12345",
		"email":          "donor@gmail.com",
		"email_verified": true,
		"name":           " Google Donor ",
		"picture":        "https://lh3.googleusercontent.com/a/x",
	})
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		TokenURL:     token.URL,
		UserInfoURL:  info.URL,
	})

	got, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if got.Provider != ProviderGoogle {
		t.Errorf("provider = %q, want %q", got.Provider, ProviderGoogle)
	}
	if got.ProviderUserID != "google-sub-12345" {
		t.Errorf("providerUserID = %q, want %q", got.ProviderUserID, "google-sub-12345")
	}
	if got.Email != "donor@gmail.com" {
		t.Errorf("email = %q, want %q", got.Email, "donor@gmail.com")
	}
	if got.Name != "Google Donor" {
		t.Errorf("name = %q, want %q", got.Name, "Google Donor")
	}
	if got.AvatarURL != "https://lh3.googleusercontent.com/a/x" {
		t.Errorf("avatarURL = %q", got.AvatarURL)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_UnverifiedEmailDropped(t *testing.T) {
	token, info := newGoogleTestServers(t, map[string]any{
		"sub":            "google-sub-1",
		"email":          "unverified@example.com",
		"email_verified": false,
	})
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{TokenURL: token.URL, UserInfoURL: info.URL})

	got, err := provider.ExchangeCode(context.Background(), "code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if got.Email != "" {
		t.Errorf("email = %q, want empty for unverified address", got.Email)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		userInfo map[string]any
	}{
		{"トークン交換失敗", "invalid-code", map[string]any{"sub": "x"}},
		{"ユーザー情報取得失敗", "valid-code", nil},
		{"subが空", "valid-code", map[string]any{"email": "a@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, info := newGoogleTestServers(t, tt.userInfo)
			provider := NewGoogleOAuthProvider(GoogleOAuthConfig{TokenURL: token.URL, UserInfoURL: info.URL})

			if _, err := provider.ExchangeCode(context.Background(), tt.code); err == nil {
				t.Fatal("expected error from ExchangeCode")
			}
		})
	}
}
