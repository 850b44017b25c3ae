package llm

import (
	"codegen-app/internal/config"
	"codegen-app/internal/logger"
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

// OpenRouterBackend implements Backend against any OpenAI-compatible chat completions endpoint
type OpenRouterBackend struct {
	client openai.Client
	config *config.LLMConfig
}

// NewOpenRouterBackend creates a backend from LLM configuration
func NewOpenRouterBackend(llmConfig *config.LLMConfig, opts ...option.RequestOption) *OpenRouterBackend {
	options := []option.RequestOption{
		option.WithBaseURL(llmConfig.BaseURL),
		option.WithHeader("X-Title", "Codegen App"),
	}
	if llmConfig.APIKey != "" {
		options = append(options, option.WithAPIKey(llmConfig.APIKey))
	} else {
		logger.Log.Info("LLM API key is not set, will try unauthenticated access")
	}
	options = append(options, opts...)

	return &OpenRouterBackend{
		client: openai.NewClient(options...),
		config: llmConfig,
	}
}

func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return messages
}

// Stream starts a streaming completion. Transport errors that happen after the
// first byte are delivered as the final chunk.
func (b *OpenRouterBackend) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         b.config.Model,
		"temperature":   fmt.Sprintf("%.2f", b.config.Temperature),
		"message_count": len(req.Messages),
	}).Info("Calling LLM API (streaming)")

	stream := b.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages:    buildMessages(req),
		Model:       openai.ChatModel(b.config.Model),
		Temperature: openai.Float(b.config.Temperature),
	})

	chunks := make(chan StreamChunk)

	go func() {
		defer close(chunks)
		defer stream.Close()

		var total int
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			content := chunk.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			total += len(content)
			chunks <- StreamChunk{Content: content}
		}

		if err := stream.Err(); err != nil {
			logger.Log.WithError(err).Error("LLM stream failed")
			chunks <- StreamChunk{Err: fmt.Errorf("error reading stream: %w", err)}
			return
		}

		logger.Log.WithField("response_length", total).Debug("LLM stream completed")
	}()

	return chunks, nil
}
