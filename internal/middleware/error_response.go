package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/milijuli/sewa/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ミドルウェア層で返すエラー。ハンドラー層のエラーはmodelパッケージのコンストラクタで作る。
var (
	errInternal = &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
	errAuthRequired = &model.APIError{
		Code:     "AUTH_REQUIRED",
		Message:  "Sign-in is required.",
		Category: "auth",
		Action:   "Sign in with Google and try again.",
	}
	errCSRFInvalid = &model.APIError{
		Code:     "CSRF_TOKEN_INVALID",
		Message:  "CSRF token validation failed.",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
	errRateLimited = &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
)

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は500を書き込む。詳細はログのみに記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, errInternal)
}

// WriteUnauthorized は未認証の統一レスポンスを書き込む。
func WriteUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, errAuthRequired)
}

func writeCSRFInvalid(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, errCSRFInvalid)
}

// writeTooManyRequests は429とRetry-After（秒）を書き込む。
func writeTooManyRequests(w http.ResponseWriter, retryAfterSec int) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, errRateLimited)
}
