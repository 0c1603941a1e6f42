package decision

import "context"

// ProviderRequest is the sanitized payload sent to the LLM provider for
// the reasoning fallback. The engine strips tenant
// identifiers from Context before embedding it in the prompt.
type ProviderRequest struct {
	System   string
	Messages []ProviderMessage
}

// ProviderMessage is one turn of a provider request.
type ProviderMessage struct {
	Role    string
	Content string
}

// ProviderResponse is the provider's answer.
type ProviderResponse struct {
	Content string
}

// Provider is the opaque LLM collaborator: treated only as a
// request/response boundary. Only the request/response shape used by
// the reasoning fallback is modeled here; no concrete implementation
// belongs in this module.
type Provider interface {
	Complete(ctx context.Context, req ProviderRequest) (ProviderResponse, error)
}
