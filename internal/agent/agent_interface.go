package agent

import "context"

// Processor generates the next reply for a transcript.
// Implemented by GeminiClient and wrapped by BreakerClient.
type Processor interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Ensure implementations satisfy Processor.
var (
	_ Processor = (*GeminiClient)(nil)
	_ Processor = (*BreakerClient)(nil)
)
