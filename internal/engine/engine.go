// Package engine 按类别并发查询资源并生成分析
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iWorld-y/azure_radar/internal/config"
	"github.com/iWorld-y/azure_radar/internal/format"
	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
	"github.com/iWorld-y/azure_radar/internal/resourcegraph"
	"github.com/iWorld-y/azure_radar/internal/summarizer"
)

// Engine 核心处理引擎
type Engine struct {
	cfg        *config.Config
	querier    resourcegraph.Querier
	summarizer *summarizer.Summarizer
}

// NewEngine 创建引擎实例
func NewEngine(cfg *config.Config, querier resourcegraph.Querier, sum *summarizer.Summarizer) *Engine {
	return &Engine{
		cfg:        cfg,
		querier:    querier,
		summarizer: sum,
	}
}

// RunOptions 运行选项
type RunOptions struct {
	ProgressCallback func(status string, progress int)
}

// ConfigErrorSummary 类别缺少可用查询
func ConfigErrorSummary(category string) string {
	return fmt.Sprintf("Configuration error: KQL query missing or invalid for '%s'. Cannot fetch resources.", category)
}

// NoResourcesSummary 查询失败或没有结果
func NoResourcesSummary(category, subscriptionID string) string {
	return fmt.Sprintf("No Azure resources were found (or query failed) in the '%s' category for the subscription '%s'.", category, subscriptionID)
}

// SelectCategories 根据 run_categories 选出本次要处理的类别，保持配置顺序
func SelectCategories(cfg *config.Config) []model.CategoryDefinition {
	if !cfg.RunCategories.Set {
		return cfg.Categories
	}

	wanted := make(map[string]bool, len(cfg.RunCategories.Names))
	for _, name := range cfg.RunCategories.Names {
		if _, ok := cfg.Category(name); !ok {
			logger.Log.Warnf("run_categories 中的类别 [%s] 未在类别配置中定义，已忽略", name)
			continue
		}
		wanted[name] = true
	}

	selected := make([]model.CategoryDefinition, 0, len(wanted))
	for _, def := range cfg.Categories {
		if wanted[def.Name] {
			selected = append(selected, def)
		}
	}
	if len(selected) == 0 {
		logger.Log.Warn("没有需要处理的类别")
	}
	return selected
}

// Run 执行一次完整的汇总：并发处理所有类别，等待全部完成后生成执行摘要
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.RunResult, error) {
	if e.cfg.SubscriptionID == "" {
		return nil, resourcegraph.ErrNoSubscription
	}

	result := &model.RunResult{
		ID:             uuid.NewString(),
		SubscriptionID: e.cfg.SubscriptionID,
		StartedAt:      time.Now(),
	}
	progress(opts, "starting", 0)

	categories := SelectCategories(e.cfg)
	logger.Log.Infof("开始处理订阅 [%s]，共 %d 个类别", e.cfg.SubscriptionID, len(categories))

	outcomes := make([]model.CategoryOutcome, len(categories))
	var mu sync.Mutex
	var wg sync.WaitGroup
	completed := 0

	for i, def := range categories {
		wg.Add(1)
		go func(i int, def model.CategoryDefinition) {
			defer wg.Done()
			outcomes[i] = e.processCategory(ctx, def)

			mu.Lock()
			completed++
			progress(opts, fmt.Sprintf("processed category: %s", def.Name), 10+completed*70/len(categories))
			mu.Unlock()
		}(i, def)
	}
	wg.Wait()
	result.Outcomes = outcomes

	progress(opts, "generating executive summary", 85)
	result.ExecutiveSummary = e.summarizer.SummarizeAll(ctx, outcomes)

	result.FinishedAt = time.Now()
	progress(opts, "completed", 100)
	return result, nil
}

// processCategory 单个类别：查询、格式化、分析
func (e *Engine) processCategory(ctx context.Context, def model.CategoryDefinition) model.CategoryOutcome {
	outcome := model.CategoryOutcome{CategoryName: def.Name, Resources: []model.Value{}}
	logger.Log.Infof("正在处理类别: %s", def.Name)

	if !def.HasQuery() {
		logger.Log.Warnf("类别 [%s] 缺少有效的 KQL 查询，跳过", def.Name)
		outcome.Summary = model.Failed(ConfigErrorSummary(def.Name))
		return outcome
	}

	resources, err := e.querier.Query(ctx, e.cfg.SubscriptionID, def.Query)
	if err != nil {
		logger.Log.Errorf("查询类别失败 [%s]: %v", def.Name, err)
		resources = nil
	}
	if len(resources) == 0 {
		logger.Log.Infof("类别 [%s] 没有找到资源，或查询失败", def.Name)
		outcome.Summary = model.Skipped(NoResourcesSummary(def.Name, e.cfg.SubscriptionID))
		return outcome
	}

	fields := def.FieldsForAI
	if len(fields) == 0 {
		fields = firstRecordKeys(resources)
		logger.Log.Warnf("类别 [%s] 未配置有效的 fields_for_ai，使用第一条资源的字段: %v", def.Name, fields)
	}

	text := format.Resources(resources, fields)
	logger.Log.Debugf("类别 [%s] 提示词数据:\n%s", def.Name, text)

	outcome.Summary = e.summarizer.SummarizeCategory(ctx, def.Name, text)
	outcome.Resources = resources
	return outcome
}

// firstRecordKeys 第一条合法记录的字段名
func firstRecordKeys(resources []model.Value) []string {
	for _, res := range resources {
		if rec, ok := res.AsRecord(); ok {
			return rec.Keys()
		}
	}
	return []string{}
}

func progress(opts RunOptions, status string, pct int) {
	if opts.ProgressCallback != nil {
		opts.ProgressCallback(status, pct)
	}
}
