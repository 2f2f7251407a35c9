// Package llm 封装生成式模型调用
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/iWorld-y/azure_radar/internal/config"
)

// ErrAPIKeyMissing 未配置模型 API Key
var ErrAPIKeyMissing = errors.New("llm api key is not configured")

// Generation 一次生成的结果，文本与拦截原因至多一个非空
type Generation struct {
	Text         string
	BlockReason  string
	BlockMessage string
}

// Blocked 是否被服务端拦截
func (g *Generation) Blocked() bool {
	return g != nil && g.BlockReason != ""
}

// Generator 根据单条提示词生成文本
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Generation, error)
}

// NewGenerator 根据配置创建模型客户端
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case config.ProviderGemini, "":
		gen, err = NewGeminiGenerator(ctx, cfg)
	case config.ProviderOpenAI:
		gen, err = NewChatModelGenerator(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return gen, nil
}

// Describe 将调用错误整理为可读描述，包含错误类型和响应体
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timeout - %v", err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		desc := fmt.Sprintf("genai.APIError - %v", err)
		if len(apiErr.Details) > 0 {
			if body, mErr := json.Marshal(apiErr.Details); mErr == nil {
				desc += " Response Body: " + string(body)
			}
		}
		return desc
	}

	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	return fmt.Sprintf("%T - %v", root, err)
}
