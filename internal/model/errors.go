// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, project, donation, generation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeProjectNotFound       = "PROJECT_NOT_FOUND"
	ErrCodeProjectClosed         = "PROJECT_CLOSED"
	ErrCodeInKindNotFound        = "IN_KIND_NOT_FOUND"
	ErrCodeInvalidStatusChange   = "INVALID_STATUS_TRANSITION"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeFeedNotDetected       = "FEED_NOT_DETECTED"
	ErrCodeInvalidURL            = "INVALID_URL"
	ErrCodeSSRFBlocked           = "SSRF_BLOCKED"
	ErrCodeFetchFailed           = "FETCH_FAILED"
	ErrCodeDuplicateUpdateSource = "DUPLICATE_UPDATE_SOURCE"
	ErrCodeGenerationUnavailable = "GENERATION_UNAVAILABLE"
	ErrCodeGenerationFailed      = "GENERATION_FAILED"
	ErrCodeGenerationDisabled    = "GENERATION_DISABLED"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("Invalid input: %s", reason),
		Category: "validation",
		Action:   "Check the highlighted fields and try again.",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("Project not found: %s", projectID),
		Category: "project",
		Action:   "Return to the project list and pick an existing campaign.",
	}
}

// NewProjectClosedError は受付終了したプロジェクトへの寄付エラーを生成する。
func NewProjectClosedError() *APIError {
	return &APIError{
		Code:     ErrCodeProjectClosed,
		Message:  "This project is no longer accepting donations.",
		Category: "donation",
		Action:   "Browse other active projects to continue supporting the cause.",
	}
}

// NewInKindNotFoundError は物品寄付未検出エラーを生成する。
func NewInKindNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInKindNotFound,
		Message:  fmt.Sprintf("In-kind donation not found: %s", id),
		Category: "donation",
		Action:   "Check the pledge id.",
	}
}

// NewInvalidStatusTransitionError は物品寄付の状態遷移が許可されない場合のエラーを生成する。
func NewInvalidStatusTransitionError(from, to PhysicalDonationStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatusChange,
		Message:  fmt.Sprintf("Cannot change in-kind status from %s to %s.", from, to),
		Category: "validation",
		Action:   "Pledges move pledged → received → distributed, or pledged → cancelled.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewFeedNotDetectedError は更新フィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("No RSS/Atom feed could be detected at %s", url),
		Category: "project",
		Action:   "Enter the feed URL directly, or a page that links to it.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: "validation",
		Action:   "Enter a URL starting with http:// or https://.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "Access to the given URL is blocked by the security policy.",
		Category: "validation",
		Action:   "Use a public website URL. Local and private network addresses are not allowed.",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("Failed to fetch the URL: %s", reason),
		Category: "project",
		Action:   "Check the URL and try again later.",
	}
}

// NewDuplicateUpdateSourceError は同一フィードの二重登録エラーを生成する。
func NewDuplicateUpdateSourceError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUpdateSource,
		Message:  "This feed is already registered for the project.",
		Category: "project",
		Action:   "Check the project's update sources.",
	}
}

// NewGenerationUnavailableError は生成モデルが一時的に利用できない場合のエラーを生成する。
func NewGenerationUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationUnavailable,
		Message:  "The writing assistant is temporarily unavailable.",
		Category: "generation",
		Action:   "Try again in a few minutes.",
	}
}

// NewGenerationFailedError は生成結果が不正だった場合のエラーを生成する。
func NewGenerationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  "The writing assistant returned an unusable response.",
		Category: "generation",
		Action:   "Try again, or rephrase the input.",
	}
}

// NewGenerationDisabledError は生成機能が未設定の場合のエラーを生成する。
func NewGenerationDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationDisabled,
		Message:  "The writing assistant is not configured on this server.",
		Category: "system",
		Action:   "Contact the site administrator.",
	}
}
