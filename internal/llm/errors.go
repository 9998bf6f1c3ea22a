package llm

import (
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// unavailableStatuses はモデル利用不可とみなすAPIステータス。
var unavailableStatuses = map[string]bool{
	"NOT_FOUND":          true,
	"UNAVAILABLE":        true,
	"RESOURCE_EXHAUSTED": true,
}

// IsUnavailable はerrがモデル利用不可（代替モデルへ切り替えるべき状態）を示すかを返す。
// 対象はErrModelUnavailable、およびHTTP 404/429/503相当のAPIエラー。
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrModelUnavailable) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return unavailableAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return unavailableAPIError(*apiErrPtr)
	}
	return false
}

func unavailableAPIError(e genai.APIError) bool {
	switch e.Code {
	case http.StatusNotFound, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return unavailableStatuses[e.Status]
}
