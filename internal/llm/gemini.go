package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/iWorld-y/azure_radar/internal/config"
)

// GeminiGenerator 基于 Gemini API 的生成器
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator 创建 Gemini 客户端
func NewGeminiGenerator(ctx context.Context, cfg config.LLMConfig) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: cfg.Model, temperature: cfg.Temperature}, nil
}

// Generate implements Generator
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	var gc *genai.GenerateContentConfig
	if g.temperature > 0 {
		gc = &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), gc)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	return fromGeminiResponse(resp), nil
}

// ListModels 列出支持 generateContent 的模型
func (g *GeminiGenerator) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return names, fmt.Errorf("list models: %w", err)
		}
		for _, action := range m.SupportedActions {
			if action == "generateContent" {
				names = append(names, m.Name)
				break
			}
		}
	}
	return names, nil
}

// fromGeminiResponse 区分正常文本、提示词拦截和候选结果拦截
func fromGeminiResponse(resp *genai.GenerateContentResponse) *Generation {
	gen := &Generation{}
	if resp == nil {
		return gen
	}

	gen.Text = resp.Text()
	if gen.Text != "" {
		return gen
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		gen.BlockReason = string(fb.BlockReason)
		gen.BlockMessage = fb.BlockReasonMessage
		return gen
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		c := resp.Candidates[0]
		switch c.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist,
			genai.FinishReasonSPII, genai.FinishReasonRecitation:
			gen.BlockReason = string(c.FinishReason)
			gen.BlockMessage = c.FinishMessage
		}
	}
	return gen
}
