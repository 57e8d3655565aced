package sources

import (
	"fmt"
	"strings"

	"github.com/HyphaGroup/sourcehub/internal/logger"
)

// ServerNotFound is raised by CallTool/SearchAcrossSources when the named
// kind has no running client.
type ServerNotFound struct {
	DisplayName string
}

func (e *ServerNotFound) Error() string {
	return fmt.Sprintf("sources: server not found: %s", e.DisplayName)
}

// sensitivePatterns mirrors the teacher's error-sanitization list; source
// configs carry env overlays that may include API keys, so the same
// substring screen applies here.
var sensitivePatterns = []string{
	"API_KEY", "api_key", "token", "password", "secret", "credential",
}

var internalErrorPatterns = []string{
	"failed to exec", "failed to start", "connection refused",
	"no such file", "permission denied", "timeout", "context canceled", "EOF",
}

// Sanitize returns a caller-safe error for operation, logging the full
// error internally regardless of what is returned.
func Sanitize(err error, operation string) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	lower := strings.ToLower(errStr)

	for _, pattern := range sensitivePatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			logger.Error("%s failed (sensitive): %v", operation, err)
			return fmt.Errorf("%s failed: internal configuration error", operation)
		}
	}
	for _, pattern := range internalErrorPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			logger.Error("%s failed (internal): %v", operation, err)
			return fmt.Errorf("%s failed: internal error", operation)
		}
	}
	if isUserFacingError(lower) {
		return err
	}

	logger.Error("%s failed: %v", operation, err)
	return fmt.Errorf("%s failed: %s", operation, genericErrorMessage(errStr))
}

func isUserFacingError(lower string) bool {
	patterns := []string{"not found", "not configured", "already exists", "invalid", "required", "must be", "cannot be", "is not", "exceeded", "limit"}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func genericErrorMessage(errStr string) string {
	if len(errStr) < 50 {
		return errStr
	}
	return "an unexpected error occurred"
}
