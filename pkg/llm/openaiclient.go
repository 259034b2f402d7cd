package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zeromicro/go-zero/core/logx"
)

// openaiClient implements Client against an OpenAI-compatible chat-completions
// endpoint (the teacher points this at Zenmux's OpenAI-compatible gateway via
// Config.BaseURL; any OpenAI-compatible provider works the same way).
type openaiClient struct {
	cfg    *Config
	client *openai.Client
	queue  *Queue
	budget *BudgetGuard
}

// NewClient builds a Client backed by cfg. All Chat/ChatStructured calls for
// ParseStrategy and GenerateSignal are routed through queue, which enforces the
// process-wide pacing and 429 back-off described in spec §4.3.
func NewClient(cfg *Config, queue *Queue, budget *BudgetGuard) Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	}
	c := openai.NewClient(opts...)
	SetVerboseLogging(cfg.VerboseLogging)
	return &openaiClient{cfg: cfg, client: c, queue: queue, budget: budget}
}

func (c *openaiClient) GetConfig() *Config { return c.cfg }

func (c *openaiClient) Close() error { return nil }

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (c *openaiClient) doChat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}
	if c.budget != nil {
		if err := c.budget.AllowAttempt(); err != nil {
			return nil, err
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.F(model),
		Messages:    openai.F(toOpenAIMessages(req.Messages)),
		Temperature: openai.F(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.F(int64(req.MaxTokens))
	}

	if isVerboseLoggingEnabled() {
		logx.WithContext(ctx).Infof("llm: request model=%s messages=%+v", model, req.Messages)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyUpstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty choices in chat-completion response")
	}

	out := &ChatResponse{
		Model: string(resp.Model),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Message:      Message{Role: string(choice.Message.Role), Content: choice.Message.Content},
			FinishReason: string(choice.FinishReason),
		})
	}
	if c.budget != nil {
		c.budget.RecordUsage(model, int64(out.Usage.TotalTokens))
	}
	if isVerboseLoggingEnabled() {
		logx.WithContext(ctx).Infof("llm: response model=%s usage=%+v choices=%+v", out.Model, out.Usage, out.Choices)
	}
	return out, nil
}

func (c *openaiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var out *ChatResponse
	err := c.queue.Run(ctx, func() error {
		resp, err := c.doChat(ctx, req)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *openaiClient) ChatStructured(ctx context.Context, req *ChatRequest, target interface{}) (*ChatResponse, error) {
	resp, err := c.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return resp, fmt.Errorf("llm: no choices to decode")
	}
	if err := ParseStructured(resp.Choices[0].Message.Content, target); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *openaiClient) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamResponse, error) {
	out := make(chan StreamResponse)
	go func() {
		defer close(out)
		resp, err := c.Chat(ctx, req)
		if err != nil {
			out <- StreamResponse{Err: err, Done: true}
			return
		}
		if len(resp.Choices) > 0 {
			out <- StreamResponse{Delta: resp.Choices[0].Message.Content}
		}
		out <- StreamResponse{Done: true}
	}()
	return out, nil
}
