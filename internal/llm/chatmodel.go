package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/azure_radar/internal/config"
)

// finishContentFilter OpenAI 兼容接口的内容过滤结束原因
const finishContentFilter = "content_filter"

// ChatModelGenerator 基于 OpenAI 兼容接口的生成器 (DeepSeek、Qwen、Azure OpenAI 等)
type ChatModelGenerator struct {
	cm model.ChatModel
}

var _ Generator = (*ChatModelGenerator)(nil)

// NewChatModelGenerator 创建 OpenAI 兼容的 ChatModel
func NewChatModelGenerator(ctx context.Context, cfg config.LLMConfig) (*ChatModelGenerator, error) {
	mc := &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		mc.Temperature = &t
	}

	cm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return &ChatModelGenerator{cm: cm}, nil
}

// NewChatModelGeneratorWith 使用已有的 ChatModel
func NewChatModelGeneratorWith(cm model.ChatModel) *ChatModelGenerator {
	return &ChatModelGenerator{cm: cm}
}

// Generate implements Generator
func (g *ChatModelGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	messages := []*schema.Message{
		{Role: schema.User, Content: prompt},
	}

	resp, err := g.cm.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("chat model generate: %w", err)
	}

	gen := &Generation{}
	if resp == nil {
		return gen, nil
	}
	gen.Text = resp.Content
	if gen.Text == "" && resp.ResponseMeta != nil && resp.ResponseMeta.FinishReason == finishContentFilter {
		gen.BlockReason = finishContentFilter
	}
	return gen, nil
}
