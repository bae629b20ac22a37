package llm

import (
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "STREAMCHAT_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewClient creates a chat client. mock forces the MockClient; so does
// STREAMCHAT_MODE=MOCK.
func NewClient(url string, timeout time.Duration, mock bool, logger *zap.Logger) Client {
	if mock || os.Getenv(EnvMode) == ModeMock {
		logger.Info("mock mode enabled, using mock chat client")
		return NewMockClient()
	}
	return NewHTTPClient(url, timeout)
}
