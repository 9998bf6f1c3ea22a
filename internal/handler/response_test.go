package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/llm"
	"github.com/milijuli/sewa/internal/middleware"
	"github.com/milijuli/sewa/internal/model"
)

// --- テストヘルパー ---

const testProjectID = "0b6d7c1e-6f3a-4c55-9a57-1d3f2c9a7e10"

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// jsonRequest はJSONボディ付きのリクエストを生成するヘルパー。
func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディをoutにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// --- handleServiceError テスト ---

func TestHandleServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"入力検証エラー", model.NewValidationError("bad"), http.StatusBadRequest, model.ErrCodeValidation},
		{"プロジェクトなし", model.NewProjectNotFoundError("p"), http.StatusNotFound, model.ErrCodeProjectNotFound},
		{"受付終了", model.NewProjectClosedError(), http.StatusConflict, model.ErrCodeProjectClosed},
		{"物品寄付なし", model.NewInKindNotFoundError("x"), http.StatusNotFound, model.ErrCodeInKindNotFound},
		{"不正な状態遷移", model.NewInvalidStatusTransitionError(model.PhysicalStatusDistributed, model.PhysicalStatusPledged), http.StatusConflict, model.ErrCodeInvalidStatusChange},
		{"ユーザーなし", model.NewUserNotFoundError(), http.StatusNotFound, model.ErrCodeUserNotFound},
		{"フィード未検出", model.NewFeedNotDetectedError("https://example.com"), http.StatusUnprocessableEntity, model.ErrCodeFeedNotDetected},
		{"不正なURL", model.NewInvalidURLError("bad"), http.StatusBadRequest, model.ErrCodeInvalidURL},
		{"SSRF", model.NewSSRFBlockedError(), http.StatusForbidden, model.ErrCodeSSRFBlocked},
		{"取得失敗", model.NewFetchFailedError("timeout"), http.StatusBadGateway, model.ErrCodeFetchFailed},
		{"取得元の重複", model.NewDuplicateUpdateSourceError(), http.StatusConflict, model.ErrCodeDuplicateUpdateSource},
		{"生成無効", model.NewGenerationDisabledError(), http.StatusServiceUnavailable, model.ErrCodeGenerationDisabled},
		{"ラップされたAPIError", fmt.Errorf("wrap: %w", model.NewProjectClosedError()), http.StatusConflict, model.ErrCodeProjectClosed},
		{"モデル利用不可", fmt.Errorf("both models: %w", llm.ErrModelUnavailable), http.StatusServiceUnavailable, model.ErrCodeGenerationUnavailable},
		{"出力検証エラー", fmt.Errorf("seo: %w", assistant.ErrInvalidOutput), http.StatusBadGateway, model.ErrCodeGenerationFailed},
		{"未知のエラー", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			w := httptest.NewRecorder()

			handleServiceError(w, req, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := parseAPIErrorResponse(t, w)["code"]; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestHandleServiceError_InternalErrorDoesNotLeakDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	w := httptest.NewRecorder()

	handleServiceError(w, req, errors.New("pq: password authentication failed"))

	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Errorf("response leaks internal error: %s", w.Body.String())
	}
}

// --- decodeJSON テスト ---

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name   string
		body   string
		wantOK bool
	}{
		{"正常なJSON", `{"name":"Sita"}`, true},
		{"未知のフィールド", `{"name":"Sita","admin":true}`, false},
		{"JSONが2つ", `{"name":"a"}{"name":"b"}`, false},
		{"不正なJSON", `{"name":`, false},
		{"空ボディ", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(http.MethodPost, "/api/x", tt.body)
			w := httptest.NewRecorder()

			var p payload
			ok := decodeJSON(w, req, &p)
			if ok != tt.wantOK {
				t.Fatalf("decodeJSON() = %v, want %v", ok, tt.wantOK)
			}
			if !ok && w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	big := `{"name":"` + string(bytes.Repeat([]byte("a"), maxRequestBody)) + `"}`
	req := jsonRequest(http.MethodPost, "/api/x", big)
	w := httptest.NewRecorder()

	var p struct {
		Name string `json:"name"`
	}
	if decodeJSON(w, req, &p) {
		t.Fatal("expected oversized body to be rejected")
	}
}

func TestPathUUID(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		wantOK bool
	}{
		{"UUID", testProjectID, true},
		{"大文字のUUID", "0B6D7C1E-6F3A-4C55-9A57-1D3F2C9A7E10", true},
		{"UUIDでない", "not-a-uuid", false},
		{"空", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tt.value)
			id, ok := pathUUID(req, "id")
			if ok != tt.wantOK {
				t.Fatalf("pathUUID() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && id != testProjectID {
				t.Errorf("id = %q, want %q", id, testProjectID)
			}
		})
	}
}
