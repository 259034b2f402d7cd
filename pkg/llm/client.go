package llm

import "context"

// Message is one chat-completion turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a chat-completion call. Model, Temperature and MaxTokens are fixed
// per call site (ParseStrategy and GenerateSignal each use their own constants);
// ResponseFormat carries an optional JSON-schema name for providers that support
// structured outputs natively.
type ChatRequest struct {
	Model          string
	Messages       []Message
	Temperature    float64
	MaxTokens      int
	ResponseFormat string
}

// Choice is one completion candidate.
type Choice struct {
	Message      Message
	FinishReason string
}

// Usage reports token accounting for a completed call, fed directly into
// BudgetGuard.RecordUsage.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the result of a non-streaming chat-completion call.
type ChatResponse struct {
	Model   string
	Choices []Choice
	Usage   Usage
}

// StreamResponse is one incremental chunk of a streamed chat-completion call.
type StreamResponse struct {
	Delta string
	Done  bool
	Err   error
}

// Client is the round engine's upstream chat-completion contract. ChatStructured
// additionally unmarshals the first choice's content into target via
// ParseStructured, returning the raw response alongside the decoded value so callers
// can still inspect usage and finish reason.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamResponse, error)
	ChatStructured(ctx context.Context, req *ChatRequest, target interface{}) (*ChatResponse, error)
	GetConfig() *Config
	Close() error
}
