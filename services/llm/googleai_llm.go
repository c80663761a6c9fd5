package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
)

type GoogleAIClient struct {
	client *googleai.GoogleAI
	model  string
}

func NewGoogleAIClient(ctx context.Context) (*GoogleAIClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	model := os.Getenv("GEMINI_MODEL") // e.g., "gemini-2.5-pro"
	if apiKey == "" {
		secretPath := "/run/secrets/gemini_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the Gemini API Key from Podman Secrets")
		} else {
			slog.Error("GEMINI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gemini-2.5-flash"
		slog.Warn("GEMINI_MODEL not set, defaulting to gemini-2.5-flash")
	}
	slog.Info("Initializing Google AI client", "model", model)

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google AI client: %w", err)
	}
	return &GoogleAIClient{
		client: client,
		model:  model,
	}, nil
}

// Name implements the LLMClient interface
func (g *GoogleAIClient) Name() string {
	return "googleai"
}

// Generate implements the LLMClient interface
func (g *GoogleAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	messages := []datatypes.Message{
		{Role: "user", Content: prompt},
	}
	return g.Chat(ctx, messages, params)
}

// Chat implements the LLMClient interface
func (g *GoogleAIClient) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	slog.Debug("Generating text via Google AI", "model", g.model)

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		switch strings.ToLower(msg.Role) {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	callOpts := make([]llms.CallOption, 0)
	if params.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.MaxTokens != nil {
		callOpts = append(callOpts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if params.TopP != nil {
		callOpts = append(callOpts, llms.WithTopP(float64(*params.TopP)))
	}
	if params.TopK != nil {
		callOpts = append(callOpts, llms.WithTopK(*params.TopK))
	}
	if len(params.Stop) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(params.Stop))
	}

	resp, err := g.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		slog.Error("Google AI API call failed", "error", err)
		return "", fmt.Errorf("Google AI API call failed: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		slog.Warn("Google AI returned no choices or empty content")
		return "", fmt.Errorf("Google AI returned no choices")
	}
	slog.Debug("Received response from Google AI", "stop_reason", resp.Choices[0].StopReason)
	return resp.Choices[0].Content, nil
}
