package ai

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GeminiProvider serves completions through the Gemini API.
type GeminiProvider struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{
		apiKey: apiKey,
		model:  model,
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// geminiRole maps an internal chat role onto the Gemini wire role.
func geminiRole(r Role) genai.Role {
	if r == RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	p.once.Do(func() {
		p.client, p.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if p.initErr != nil {
		return "", fmt.Errorf("gemini client: %w", p.initErr)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		contents = append(contents, genai.NewContentFromText(m.Content, geminiRole(m.Role)))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.ForceJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini api error: empty response")
	}
	return text, nil
}
