package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mviana/docchat/backend/internal/config"
	chatmodel "github.com/mviana/docchat/backend/internal/model/chat"
)

// systemInstruction is the single leading system entry of every outbound
// prompt. No other system turn is ever synthesized mid-conversation.
const systemInstruction = "You are a helpful assistant. Analyze the provided documents and answer questions about them."

// Service wraps the completion-service boundary: it turns conversation
// history plus the final user entry into a streamed model response.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the prompt/model chain from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled indicates whether responses arrive incrementally.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Stream produces the model response as a sequence of fragments. When
// streaming is disabled by configuration the full response is delivered
// as a single fragment, so callers consume one shape either way.
func (s *Service) Stream(ctx context.Context, history []chatmodel.Message, query string) (*schema.StreamReader[*schema.Message], error) {
	input := buildChainInput(history, query)

	if !s.StreamingEnabled() {
		response, err := s.chain.Invoke(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to run chat chain: %w", err)
		}
		return schema.StreamReaderFromArray([]*schema.Message{response}), nil
	}

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat chain output: %w", err)
	}
	return stream, nil
}

// Generate runs one non-streamed completion.
func (s *Service) Generate(ctx context.Context, history []chatmodel.Message, query string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, buildChainInput(history, query))
	if err != nil {
		return nil, fmt.Errorf("failed to run chat chain: %w", err)
	}
	return response, nil
}

func buildChainInput(history []chatmodel.Message, query string) map[string]any {
	return map[string]any{
		"system":  systemInstruction,
		"history": buildHistoryMessages(history),
		"query":   query,
	}
}

// buildHistoryMessages role-maps the prior transcript, content unmodified.
func buildHistoryMessages(messages []chatmodel.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chatmodel.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chatmodel.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		case chatmodel.RoleSystem:
			history = append(history, schema.SystemMessage(msg.Content))
		}
	}
	return history
}
