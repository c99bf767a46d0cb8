package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GroqConfig configures the OpenAI-compatible Groq provider.
type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// GroqProvider talks to Groq's OpenAI-compatible chat completions endpoint.
type GroqProvider struct {
	config GroqConfig
	client *http.Client
}

func NewGroqProvider(cfg GroqConfig) *GroqProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	return &GroqProvider{
		config: cfg,
		client: &http.Client{},
	}
}

func (p *GroqProvider) Name() string {
	return "groq"
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error interface{} `json:"error"`
}

func (p *GroqProvider) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, openAIMessage{Role: role, Content: m.Content})
	}

	payload := map[string]interface{}{
		"model":    p.config.Model,
		"messages": messages,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.ForceJSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode groq response: %v", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("groq api error: %v", result.Error)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("groq api error: empty choices")
	}

	return result.Choices[0].Message.Content, nil
}
