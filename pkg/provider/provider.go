// Package provider declares the LLM provider boundary as an opaque
// request/response plus streaming-chunks collaborator. No concrete
// provider (OpenAI, Anthropic, Ollama, ...) is implemented here or
// anywhere in this module; callers supply their own LLMProvider and the
// engine only ever depends on this interface.
package provider

import (
	"context"

	"github.com/orchestr8/engine/pkg/decision"
)

// Chunk is one piece of a streaming completion. A chunk with Done set
// marks the end of the stream; a non-nil Err ends the
// stream early and is the last value the consumer will see.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// LLMProvider is the full provider contract: the synchronous
// request/response shape the decision engine's reasoning fallback uses
// (decision.Provider), plus a streaming variant for callers that want
// incremental output, delivered as a lazy, non-restartable sequence of
// content chunks.
//
// Embedding decision.Provider means any LLMProvider also satisfies
// decision.Provider directly, so it can be passed to
// decision.NewEngine/workflow.NewEngine without an adapter.
type LLMProvider interface {
	decision.Provider

	// Stream behaves like Complete but delivers Text incrementally on
	// the returned channel. The channel is closed after the final
	// chunk (Done true, or a non-nil Err). Closing ctx stops delivery;
	// the stream is not resumable from where it left off.
	Stream(ctx context.Context, req decision.ProviderRequest) (<-chan Chunk, error)
}
