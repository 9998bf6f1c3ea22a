package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/llm"
	"github.com/milijuli/sewa/internal/middleware"
	"github.com/milijuli/sewa/internal/model"
)

// maxRequestBody はJSONリクエストボディの上限（64KB）。
const maxRequestBody = 64 << 10

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをoutにデコードする。
// 未知のフィールド、複数のJSON値、上限超過はエラーとして扱う。
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeInvalidRequest(w)
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeInvalidRequest(w)
		return false
	}
	return true
}

func writeInvalidRequest(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "The request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	})
}

// writeNotFound はリソースが存在しない場合の404レスポンスを書き込む。
func writeNotFound(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, http.StatusNotFound, apiErr)
}

// pathUUID はURLパラメータをUUIDとして検証して返す。不正な値の場合はfalseを返す。
func pathUUID(r *http.Request, name string) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// queryInt はクエリパラメータを整数として返す。未指定ならdef、不正な値ならfalseを返す。
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// requireUserID はコンテキストのユーザーIDを返す。未認証なら401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return "", false
	}
	return userID, true
}

// optionalUserID は認証済みならユーザーIDを、匿名なら空文字を返す。
func optionalUserID(r *http.Request) string {
	userID, _ := middleware.UserIDFromContext(r.Context())
	return userID
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	case llm.IsUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(r.Context(), "generation unavailable", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewGenerationUnavailableError())
		return
	case errors.Is(err, assistant.ErrInvalidOutput):
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewGenerationFailedError())
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeProjectNotFound, model.ErrCodeInKindNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeProjectClosed, model.ErrCodeInvalidStatusChange, model.ErrCodeDuplicateUpdateSource:
		return http.StatusConflict
	case model.ErrCodeFeedNotDetected:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed, model.ErrCodeGenerationFailed:
		return http.StatusBadGateway
	case model.ErrCodeGenerationUnavailable, model.ErrCodeGenerationDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
