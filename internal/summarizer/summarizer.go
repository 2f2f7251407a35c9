// Package summarizer 调用生成式模型生成类别分析和执行摘要
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/azure_radar/internal/config"
	"github.com/iWorld-y/azure_radar/internal/format"
	"github.com/iWorld-y/azure_radar/internal/llm"
	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
)

// ExecutiveSummaryName 执行摘要在提示信息中使用的名称
const ExecutiveSummaryName = "Executive Summary"

// NoExecutiveSummary 没有可用的类别摘要时返回
const NoExecutiveSummary = "An executive summary could not be generated as there were no detailed category summaries available."

// Options 摘要生成选项
type Options struct {
	// KeyName 缺少密钥时提示的配置名
	KeyName string
	// ServiceName 错误信息中的服务名
	ServiceName string
	RPM         int
	QPS         int
	// Timeout 单次调用超时，0 表示不限
	Timeout time.Duration
	Retry   llm.RetryPolicy
}

// OptionsFromConfig 根据配置生成选项
func OptionsFromConfig(cfg *config.Config) Options {
	service := "Gemini"
	if cfg.LLM.Provider == config.ProviderOpenAI {
		service = "OpenAI"
	}
	return Options{
		KeyName:     cfg.LLM.APIKeyName(),
		ServiceName: service,
		RPM:         cfg.Concurrency.RPM,
		QPS:         cfg.Concurrency.QPS,
		Timeout:     cfg.LLM.Timeout,
		Retry:       llm.DefaultRetryPolicy(cfg.LLM.MaxRetries),
	}
}

// Summarizer 类别分析与执行摘要
type Summarizer struct {
	gen     llm.Generator
	opts    Options
	limiter *rate.Limiter
}

// NewSummarizer 创建 Summarizer，gen 为 nil 表示未配置密钥
func NewSummarizer(gen llm.Generator, opts Options) *Summarizer {
	if opts.KeyName == "" {
		opts.KeyName = "GEMINI_API_KEY"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "Gemini"
	}

	limit := rate.Inf
	if opts.RPM > 0 {
		limit = rate.Limit(float64(opts.RPM) / 60.0)
	}
	burst := opts.QPS
	if burst < 1 {
		burst = 1
	}
	if limit == rate.Inf {
		logger.Log.Infof("限流器已配置: Limit=unlimited, Burst=%d", burst)
	} else {
		logger.Log.Infof("限流器已配置: Limit=%.2f req/s, Burst=%d", float64(limit), burst)
	}

	return &Summarizer{
		gen:     gen,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// SummarizeCategory 生成单个类别的分析，任何失败都转换为带标签的结果
func (s *Summarizer) SummarizeCategory(ctx context.Context, category, resourceText string) model.Summary {
	if s.gen == nil {
		logger.Log.Errorf("%s 未配置，跳过类别 [%s] 的分析", s.opts.KeyName, category)
		return s.keyMissing()
	}

	if resourceText == "" || format.IsSentinel(resourceText) {
		logger.Log.Infof("类别 [%s] 没有可分析的数据，跳过模型调用", category)
		if resourceText == "" {
			resourceText = format.NoResources
		}
		return model.Skipped(resourceText)
	}

	logger.Log.Infof("正在生成类别分析: %s", category)
	gen, err := s.generate(ctx, category, CategoryPrompt(category, resourceText))
	if err != nil {
		logger.Log.Errorf("调用模型失败 [%s]: %v", category, err)
		return model.Failed(fmt.Sprintf("Error generating summary for %s due to API call failure: %s", category, llm.Describe(err)))
	}
	return s.classify(category, gen)
}

// SummarizeAll 基于成功生成的类别分析生成执行摘要
func (s *Summarizer) SummarizeAll(ctx context.Context, outcomes []model.CategoryOutcome) model.Summary {
	combined := combineSummaries(outcomes)
	if strings.TrimSpace(combined) == "" {
		logger.Log.Warn("没有可用的类别分析，无法生成执行摘要")
		return model.Skipped(NoExecutiveSummary)
	}

	if s.gen == nil {
		logger.Log.Errorf("%s 未配置，跳过执行摘要", s.opts.KeyName)
		return s.keyMissing()
	}

	logger.Log.Info("正在生成执行摘要...")
	gen, err := s.generate(ctx, ExecutiveSummaryName, ExecutivePrompt(combined))
	if err != nil {
		logger.Log.Errorf("生成执行摘要失败: %v", err)
		return model.Failed("Error generating Executive Summary due to API call failure: " + llm.Describe(err))
	}
	return s.classify(ExecutiveSummaryName, gen)
}

func (s *Summarizer) keyMissing() model.Summary {
	return model.Failed(fmt.Sprintf("Error: %s not configured properly.", s.opts.KeyName))
}

// classify 区分正常文本、拦截和空响应
func (s *Summarizer) classify(name string, gen *llm.Generation) model.Summary {
	if gen != nil {
		if text := strings.TrimSpace(gen.Text); text != "" {
			logger.Log.Infof("成功获取 [%s] 的分析", name)
			return model.Succeeded(text)
		}
		if gen.Blocked() {
			msg := fmt.Sprintf("Content generation blocked by API for %s. Reason: %s", name, gen.BlockReason)
			if gen.BlockMessage != "" {
				msg += " - " + gen.BlockMessage
			}
			logger.Log.Warn(msg)
			return model.Blocked(msg)
		}
	}
	logger.Log.Warnf("模型返回空响应 (无文本也无拦截原因): %s", name)
	return model.Failed(fmt.Sprintf("Error: %s API returned an empty response for %s.", s.opts.ServiceName, name))
}

// generate 限流后调用模型，遇到 429 按退避策略重试
func (s *Summarizer) generate(ctx context.Context, name, prompt string) (*llm.Generation, error) {
	var lastErr error
	for i := 0; i <= s.opts.Retry.MaxRetries; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("limiter wait error: %w", err)
		}

		gen, err := s.attempt(ctx, prompt)
		if err == nil {
			return gen, nil
		}
		lastErr = err
		if !llm.IsRateLimitError(err) || i == s.opts.Retry.MaxRetries {
			return nil, err
		}

		delay := s.opts.Retry.Backoff(i, err)
		logger.Log.Warnf("[%s] 触发限流，%v 后进行第 %d 次重试", name, delay, i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// attempt 单次调用，超时视为服务失败
func (s *Summarizer) attempt(ctx context.Context, prompt string) (*llm.Generation, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.gen.Generate(ctx, prompt)
}
