package gateway

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/leavend/refgen/internal/domain"
)

const (
	quotaHint    = "check your plan and billing details or wait before retrying"
	notFoundHint = "verify the model name or set GEMINI_MODEL to an available model"
)

// Classify maps a provider failure onto the gateway taxonomy. Status codes
// from genai.APIError take precedence; otherwise the message is scanned for
// "429"/"quota" (QuotaExceeded) and "404"/"not found" (ModelNotFound).
func Classify(err error) *domain.Error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}

	msg := err.Error()
	switch statusCode(err) {
	case http.StatusTooManyRequests:
		return quotaExceeded(msg, err)
	case http.StatusNotFound:
		return modelNotFound(msg, err)
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "quota"):
		return quotaExceeded(msg, err)
	case strings.Contains(lower, "404"), strings.Contains(lower, "not found"):
		return modelNotFound(msg, err)
	default:
		return domain.Gateway(domain.ReasonUnknown, "generation failed: "+msg, "", err)
	}
}

func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

func quotaExceeded(msg string, err error) *domain.Error {
	return domain.Gateway(domain.ReasonQuotaExceeded, "API quota exceeded: "+msg, quotaHint, err)
}

func modelNotFound(msg string, err error) *domain.Error {
	return domain.Gateway(domain.ReasonModelNotFound, "model not available: "+msg, notFoundHint, err)
}
