package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/iWorld-y/azure_radar/internal/config"
	"github.com/iWorld-y/azure_radar/internal/convert"
	"github.com/iWorld-y/azure_radar/internal/engine"
	"github.com/iWorld-y/azure_radar/internal/llm"
	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
	"github.com/iWorld-y/azure_radar/internal/report"
	"github.com/iWorld-y/azure_radar/internal/resourcegraph"
	"github.com/iWorld-y/azure_radar/internal/storage"
	"github.com/iWorld-y/azure_radar/internal/summarizer"
)

var (
	flagconf   string
	listModels bool
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.BoolVar(&listModels, "list-models", false, "list Gemini models that support generateContent and exit")
}

func main() {
	flag.Parse()

	if listModels {
		runListModels()
		return
	}

	// 1. 加载配置
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}

	ctx := context.Background()

	// 3. 初始化 LLM，未配置密钥时各类别返回错误摘要
	gen, err := llm.NewGenerator(ctx, cfg.LLM)
	if errors.Is(err, llm.ErrAPIKeyMissing) {
		logger.Log.Warnf("%s 未配置，将跳过所有 AI 分析", cfg.LLM.APIKeyName())
		gen = nil
	} else if err != nil {
		logger.Log.Fatalf("LLM 初始化失败: %v", err)
	}

	start := time.Now()
	logger.Log.Infof("启动 Azure 环境汇总, 开始时间: %s", start.Format(time.DateTime))

	// 4. 初始化 Azure 凭据和查询客户端
	cred, err := resourcegraph.NewCredential()
	if err != nil {
		logger.Log.Fatalf("Azure 认证初始化失败: %v. 请确认已执行 az login 或配置了其他凭据", err)
	}
	querier, err := resourcegraph.NewClient(cred, cfg.Azure)
	if err != nil {
		logger.Log.Fatalf("Resource Graph 客户端初始化失败: %v", err)
	}

	// 5. 处理所有类别
	sum := summarizer.NewSummarizer(gen, summarizer.OptionsFromConfig(cfg))
	eng := engine.NewEngine(cfg, querier, sum)
	result, err := eng.Run(ctx, engine.RunOptions{
		ProgressCallback: func(status string, progress int) {
			logger.Log.Debugf("[%3d%%] %s", progress, status)
		},
	})
	if err != nil {
		logger.Log.Fatalf("运行失败: %v", err)
	}

	// 6. 输出报告
	md := writeOutputs(ctx, cfg, result)

	// 7. 保存到数据库
	if cfg.DB.Host != "" {
		saveRun(ctx, cfg, result, md)
	} else {
		logger.Log.Info("未配置数据库信息，跳过保存")
	}

	end := time.Now()
	logger.Log.Infof("运行结束, 结束时间: %s, 总耗时: %s", end.Format(time.DateTime), end.Sub(start).Round(time.Millisecond))
}

func writeOutputs(ctx context.Context, cfg *config.Config, result *model.RunResult) string {
	paths := report.PreparePaths(cfg.Output.Dir, cfg.SubscriptionID, result.StartedAt)
	logger.Log.Infof("输出目录: %s", paths.Dir)

	md := report.Assemble(result, cfg.Categories)
	if err := os.WriteFile(paths.Markdown, []byte(md), 0o644); err != nil {
		logger.Log.Fatalf("写入 Markdown 报告失败: %v", err)
	}
	logger.Log.Infof("✅ Markdown 报告已生成: %s", paths.Markdown)

	if cfg.Output.HTML {
		if err := writeHTML(paths.HTML, cfg.SubscriptionID, md); err != nil {
			logger.Log.Errorf("生成 HTML 失败: %v", err)
		} else {
			logger.Log.Infof("HTML 报告已生成: %s", paths.HTML)
		}
	}

	if cfg.Output.WordEnabled() {
		conv := convert.NewConverter(cfg.Output.PandocPath, cfg.Output.ConvertTimeout)
		if err := conv.ToDocx(ctx, paths.Markdown, paths.Word); err != nil {
			logger.Log.Warnf("Word 转换失败，仅保留 Markdown 报告: %v", err)
		}
	}
	return md
}

func writeHTML(path, subscriptionID, md string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return report.RenderHTML(f, "Azure Environment Summary - "+subscriptionID, md)
}

func saveRun(ctx context.Context, cfg *config.Config, result *model.RunResult, md string) {
	store, err := storage.NewStorage(cfg.DB)
	if err != nil {
		logger.Log.Errorf("无法连接数据库: %v", err)
		return
	}
	defer store.Close()

	if err := store.SaveRun(ctx, result, md); err != nil {
		logger.Log.Errorf("保存运行记录失败: %v", err)
		return
	}
	logger.Log.Infof("运行记录已保存到数据库: %s", result.ID)
}

// runListModels 只需要 LLM 配置，不检查订阅和类别文件
func runListModels() {
	cfg, err := config.LoadBase(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}

	ctx := context.Background()
	gen, err := llm.NewGenerator(ctx, cfg.LLM)
	if err != nil {
		logger.Log.Fatalf("LLM 初始化失败: %v", err)
	}
	printModels(ctx, gen)
}

func printModels(ctx context.Context, gen llm.Generator) {
	gemini, ok := gen.(*llm.GeminiGenerator)
	if !ok {
		logger.Log.Fatal("仅支持列出 Gemini 模型，请配置 gemini 提供方和 API Key")
	}
	names, err := gemini.ListModels(ctx)
	if err != nil {
		logger.Log.Fatalf("获取模型列表失败: %v", err)
	}
	for _, name := range names {
		fmt.Println(name)
	}
}
