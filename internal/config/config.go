package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
)

// LLM 提供方
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultCategoriesFile 未配置 categories 时在配置文件同目录查找的类别文件
const DefaultCategoriesFile = "azure_categories_config.json"

// Config 项目配置结构体，加载完成后只读
type Config struct {
	SubscriptionID string            `yaml:"subscription_id"`
	LLM            LLMConfig         `yaml:"llm"`
	Concurrency    ConcurrencyConfig `yaml:"concurrency"`
	Azure          AzureConfig       `yaml:"azure"`
	RunCategories  CategoryFilter    `yaml:"run_categories"`
	CategoriesFile string            `yaml:"categories_file"`
	Output         OutputConfig      `yaml:"output"`
	Log            LogConfig         `yaml:"log"`
	DB             DBConfig          `yaml:"db"`

	// Categories 按配置文件中的顺序排列
	Categories []model.CategoryDefinition `yaml:"-"`

	InlineCategories yaml.Node `yaml:"categories"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
	MaxRetries  int           `yaml:"max_retries"`
}

// APIKeyName 缺少密钥时提示的环境变量名
func (c LLMConfig) APIKeyName() string {
	if c.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GEMINI_API_KEY"
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// AzureConfig Resource Graph 查询配置
type AzureConfig struct {
	QueryTimeout time.Duration `yaml:"query_timeout"`
	PageSize     int           `yaml:"page_size"`
	MaxPages     int           `yaml:"max_pages"`
}

// OutputConfig 输出文件配置
type OutputConfig struct {
	Dir            string        `yaml:"dir"`
	HTML           bool          `yaml:"html"`
	Word           *bool         `yaml:"word"`
	PandocPath     string        `yaml:"pandoc_path"`
	ConvertTimeout time.Duration `yaml:"convert_timeout"`
}

// WordEnabled 默认生成 Word 文档
func (c OutputConfig) WordEnabled() bool {
	return c.Word == nil || *c.Word
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// legacyConfig 兼容旧版 config.json 的大写键
type legacyConfig struct {
	GeminiAPIKey   string         `yaml:"GEMINI_API_KEY"`
	SubscriptionID string         `yaml:"AZURE_SUBSCRIPTION_ID"`
	PandocPath     string         `yaml:"PANDOC_EXE_PATH"`
	RunCategories  CategoryFilter `yaml:"RUN_CATEGORIES"`
}

// LoadConfig 从指定路径加载配置和类别定义
func LoadConfig(path string) (*Config, error) {
	cfg, err := LoadBase(path)
	if err != nil {
		return nil, err
	}

	if cfg.SubscriptionID == "" {
		return nil, errors.New("subscription_id is not configured (set subscription_id or AZURE_SUBSCRIPTION_ID)")
	}
	if cfg.LLM.APIKey == "" {
		logger.Log.Warnf("%s 未配置，所有类别将跳过 AI 分析", cfg.LLM.APIKeyName())
	}

	if cfg.InlineCategories.Kind != 0 {
		cfg.Categories, err = ParseCategories(&cfg.InlineCategories)
		if err != nil {
			return nil, fmt.Errorf("inline categories: %w", err)
		}
	} else {
		catPath := cfg.CategoriesFile
		if catPath == "" {
			catPath = DefaultCategoriesFile
		}
		if !filepath.IsAbs(catPath) {
			catPath = filepath.Join(filepath.Dir(path), catPath)
		}
		cfg.Categories, err = LoadCategories(catPath)
		if err != nil {
			return nil, err
		}
	}
	logger.Log.Infof("已加载 %d 个资源类别", len(cfg.Categories))

	if cfg.RunCategories.Set {
		if len(cfg.RunCategories.Names) == 0 {
			logger.Log.Warn("run_categories 为空列表，本次不会处理任何类别")
		} else {
			logger.Log.Infof("仅处理指定类别: %v", cfg.RunCategories.Names)
		}
	}

	return cfg, nil
}

// LoadBase 只解析配置文件、环境变量和默认值，不校验订阅也不加载类别，供 -list-models 使用
func LoadBase(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.mergeLegacy(legacy)
	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.LLM.Provider != ProviderGemini && cfg.LLM.Provider != ProviderOpenAI {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
	return &cfg, nil
}

// Category 按名称查找类别定义
func (c *Config) Category(name string) (model.CategoryDefinition, bool) {
	for _, def := range c.Categories {
		if def.Name == name {
			return def, true
		}
	}
	return model.CategoryDefinition{}, false
}

func (c *Config) mergeLegacy(l legacyConfig) {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = l.GeminiAPIKey
	}
	if c.SubscriptionID == "" {
		c.SubscriptionID = l.SubscriptionID
	}
	if c.Output.PandocPath == "" {
		c.Output.PandocPath = l.PandocPath
	}
	if !c.RunCategories.Set {
		c.RunCategories = l.RunCategories
	}
}

func (c *Config) applyEnv() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderGemini
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(c.LLM.APIKeyName())
	}
	if c.SubscriptionID == "" {
		c.SubscriptionID = os.Getenv("AZURE_SUBSCRIPTION_ID")
	}
	if c.Output.PandocPath == "" {
		c.Output.PandocPath = os.Getenv("PANDOC_EXE_PATH")
	}
}

func (c *Config) applyDefaults() {
	if c.LLM.Model == "" && c.LLM.Provider == ProviderGemini {
		c.LLM.Model = "gemini-2.0-flash"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 3
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 30
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 2
	}
	if c.Azure.QueryTimeout <= 0 {
		c.Azure.QueryTimeout = 60 * time.Second
	}
	if c.Azure.PageSize <= 0 {
		c.Azure.PageSize = 1000
	}
	if c.Azure.MaxPages <= 0 {
		c.Azure.MaxPages = 20
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "OUTPUT"
	}
	if c.Output.ConvertTimeout <= 0 {
		c.Output.ConvertTimeout = 2 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
}
