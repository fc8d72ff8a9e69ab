package llm

import (
	"os"
	"time"
)

const (
	// EnvSwarmMode is the environment variable name for mode selection.
	EnvSwarmMode = "SWARM_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates an LLM client based on the SWARM_MODE environment
// variable. SWARM_MODE=MOCK returns a MockClient; otherwise a real Client.
func NewLLMClient(baseURL, apiKey string, timeout time.Duration) LLMClient {
	if os.Getenv(EnvSwarmMode) == ModeMock {
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, timeout)
}
