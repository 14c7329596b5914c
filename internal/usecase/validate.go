// File: internal/usecase/validate.go
package usecase

import (
	"fmt"
	"strings"

	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/model"
)

// The two validators below are pure functions with no I/O. Every session
// mutation funnels through them.

func validateSessionID(id string, minLen, maxLen int) error {
	if len(id) < minLen || len(id) > maxLen {
		return domain.NewValidationError("sessionId",
			fmt.Sprintf("session id must be %d-%d characters", minLen, maxLen))
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return domain.NewValidationError("sessionId", "session id must be alphanumeric")
		}
	}
	return nil
}

// validateMessageContent trims content and enforces the configured bound.
// It returns the trimmed form that must be stored.
func validateMessageContent(content string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", domain.NewValidationError("message", "message cannot be empty")
	}
	if len(trimmed) > maxLen {
		return "", domain.NewValidationError("message",
			fmt.Sprintf("message cannot exceed %d characters", maxLen))
	}
	return trimmed, nil
}

func validateRole(role string) error {
	if role != model.RoleUser && role != model.RoleAssistant {
		return domain.NewValidationError("role", "role must be user or assistant")
	}
	return nil
}
