package domain

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// classifier and responder stages.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelSettings selects the completion model and its sampling parameters.
type ModelSettings struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// OutputSchema requests strict structured output from the completion service.
type OutputSchema struct {
	Name       string
	Definition []byte
}

// CompletionRequest is one call to the completion service.
type CompletionRequest struct {
	Settings ModelSettings
	Messages []ChatMessage
	Schema   *OutputSchema
}
