package model

import "time"

// CategoryDefinition 资源类别定义
type CategoryDefinition struct {
	Name string
	// Query 为空表示配置中 query 缺失或不是字符串
	Query string
	// FieldsForAI 为 nil 表示未配置或格式不合法
	FieldsForAI []string
	// FieldsForTable 为 nil 表示未配置或格式不合法
	FieldsForTable []string
}

// HasQuery 类别是否可查询
func (c CategoryDefinition) HasQuery() bool {
	return c.Query != ""
}

// SummaryKind 类别分析结果的标签
type SummaryKind int

const (
	// SummarySuccess 模型生成的分析文本
	SummarySuccess SummaryKind = iota
	// SummarySkipped 没有数据或没有可提取的细节，未调用模型
	SummarySkipped
	// SummaryBlocked 模型拒绝生成内容
	SummaryBlocked
	// SummaryError 配置错误或服务调用失败
	SummaryError
)

func (k SummaryKind) String() string {
	switch k {
	case SummarySuccess:
		return "success"
	case SummarySkipped:
		return "skipped"
	case SummaryBlocked:
		return "blocked"
	default:
		return "error"
	}
}

// Summary 带标签的分析结果，Text 总是非空
type Summary struct {
	Kind SummaryKind
	Text string
}

// Succeeded 构造成功结果
func Succeeded(text string) Summary { return Summary{Kind: SummarySuccess, Text: text} }

// Skipped 构造跳过结果
func Skipped(text string) Summary { return Summary{Kind: SummarySkipped, Text: text} }

// Blocked 构造拦截结果
func Blocked(text string) Summary { return Summary{Kind: SummaryBlocked, Text: text} }

// Failed 构造错误结果
func Failed(text string) Summary { return Summary{Kind: SummaryError, Text: text} }

// CategoryOutcome 单个类别的处理结果
type CategoryOutcome struct {
	CategoryName string
	Summary      Summary
	// Resources 不为 nil
	Resources []Value
}

// RunResult 一次运行的全部结果
type RunResult struct {
	ID               string
	SubscriptionID   string
	StartedAt        time.Time
	FinishedAt       time.Time
	Outcomes         []CategoryOutcome
	ExecutiveSummary Summary
}
