package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/config"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Service is the language-model client boundary. It wraps one configured
// provider behind eino's chat model abstraction and exposes a complete-
// response call and the correlated streaming call the hub dispatches to.
type Service struct {
	chatModel    model.ToolCallingChatModel
	agent        *react.Agent
	defaultModel string
}

// NewService builds the chat model for the configured provider. The ollama
// runtime is reached through the openai-compatible provider entry.
func NewService(ctx context.Context, cfg *config.Config, provider string) (*Service, error) {
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai", "ollama":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	var reactAgent *react.Agent
	if cfg.BasicConfig.EnableWebSearch {
		var tools []tool.BaseTool
		if ws := InitWebSearch(); ws != nil {
			tools = append(tools, ws)
		}
		if len(tools) > 0 {
			reactAgent, err = react.NewAgent(ctx, &react.AgentConfig{
				ToolCallingModel: chatModel,
				ToolsConfig: compose.ToolsNodeConfig{
					Tools: tools,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("init react agent: %w", err)
			}
		}
	}

	return &Service{
		chatModel:    chatModel,
		agent:        reactAgent,
		defaultModel: provCfg.Model,
	}, nil
}

// ChatResult is one complete model response.
type ChatResult struct {
	Message *schema.Message
	ModelID string
}

// ResolveModelID returns the per-request override or the provider default.
func (s *Service) ResolveModelID(modelID string) string {
	if modelID != "" {
		return modelID
	}
	return s.defaultModel
}

// GetResponse runs a non-streaming generation over the ordered history.
func (s *Service) GetResponse(ctx context.Context, msgs []*schema.Message, modelID string) (*ChatResult, error) {
	var opts []model.Option
	if modelID != "" {
		opts = append(opts, model.WithModel(modelID))
	}

	var (
		resp *schema.Message
		err  error
	)
	if s.agent != nil {
		resp, err = s.agent.Generate(ctx, msgs)
	} else {
		resp, err = s.chatModel.Generate(ctx, msgs, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}
	return &ChatResult{Message: resp, ModelID: s.ResolveModelID(modelID)}, nil
}

// StreamResponse starts an incremental generation and returns the correlated
// chunk stream. Each chunk carries a fresh streaming id shared across the
// whole invocation; the terminal chunk has HasFinished set. Cancelling ctx or
// closing the reader stops the underlying model stream promptly.
func (s *Service) StreamResponse(ctx context.Context, msgs []*schema.Message, modelID string) (*schema.StreamReader[*models.StreamingChatResponse], error) {
	var opts []model.Option
	if modelID != "" {
		opts = append(opts, model.WithModel(modelID))
	}

	var (
		src *schema.StreamReader[*schema.Message]
		err error
	)
	if s.agent != nil {
		src, err = s.agent.Stream(ctx, msgs)
	} else {
		src, err = s.chatModel.Stream(ctx, msgs, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("start model stream: %w", err)
	}
	return Correlate(ctx, src, s.ResolveModelID(modelID)), nil
}

// StreamPrompt is a convenience wrapper for a single user prompt.
func (s *Service) StreamPrompt(ctx context.Context, prompt string, modelID string) (*schema.StreamReader[*models.StreamingChatResponse], error) {
	msgs := []*schema.Message{schema.UserMessage(prompt)}
	return s.StreamResponse(ctx, msgs, modelID)
}

// GetResponseText runs a one-shot prompt (with optional system prompt) and
// returns the plain response text.
func (s *Service) GetResponseText(ctx context.Context, userPrompt, systemPrompt, modelID string) (string, error) {
	var msgs []*schema.Message
	if systemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(systemPrompt))
	}
	msgs = append(msgs, schema.UserMessage(userPrompt))

	res, err := s.GetResponse(ctx, msgs, modelID)
	if err != nil {
		return "", err
	}
	log.Printf("response generated, model: %s", res.ModelID)
	return res.Message.Content, nil
}
