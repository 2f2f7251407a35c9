// Package report 生成 Markdown 报告并渲染为 HTML
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
)

const (
	// EmptyRun 没有处理任何类别
	EmptyRun = "**No categories were processed or no data was generated.**"
	// NoHeaders 无法确定表头
	NoHeaders = "_Could not determine table headers for resource data._"
	// NoResourceDetails 没有资源且摘要未说明原因
	NoResourceDetails = "_No specific resource details to list for this category (query might have returned empty)._"

	description = "This report provides an AI-generated summary and a curated list of core resource details for Azure resources, " +
		"grouped by common categories, based on data retrieved via Azure Resource Graph."
	maxFallbackHeaders = 4
)

// DefaultTableFields 未配置 fields_for_table 时优先使用的列
var DefaultTableFields = []string{"name", "location", "type", "resourceGroup"}

// noResourcePhrases 摘要中已说明没有资源的措辞
var noResourcePhrases = []string{
	"No Azure resources were found",
	"query failed",
	"No resources were found",
	"No resources found",
	"No relevant details extracted",
}

// Assemble 生成完整的 Markdown 报告，defs 提供各类别的表格列配置
func Assemble(result *model.RunResult, defs []model.CategoryDefinition) string {
	sub := result.SubscriptionID
	if sub == "" {
		sub = "Unknown (Not Found in Config)"
	}
	generatedAt := result.FinishedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Azure Environment Summary for Subscription: %s\n\n", sub)
	fmt.Fprintf(&sb, "_Report generated on: %s UTC_\n\n", generatedAt.UTC().Format(time.DateTime))
	sb.WriteString(description + "\n\n")

	if len(result.Outcomes) == 0 {
		sb.WriteString(EmptyRun + "\n")
		return sb.String()
	}

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(result.ExecutiveSummary.Text + "\n\n")
	sb.WriteString("---\n\n")

	byName := make(map[string]model.CategoryDefinition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}

	for _, outcome := range result.Outcomes {
		writeCategory(&sb, outcome, byName[outcome.CategoryName])
	}
	return sb.String()
}

func writeCategory(sb *strings.Builder, outcome model.CategoryOutcome, def model.CategoryDefinition) {
	name := outcome.CategoryName
	fmt.Fprintf(sb, "## %s\n\n", name)
	fmt.Fprintf(sb, "**AI-Generated Analysis:**\n\n%s\n\n", outcome.Summary.Text)

	switch {
	case len(outcome.Resources) > 0:
		fmt.Fprintf(sb, "**Core Resource Details for %s:**\n\n", name)
		headers := TableHeaders(def, outcome.Resources)
		if len(headers) == 0 {
			sb.WriteString(NoHeaders + "\n\n")
		} else {
			sb.WriteString(Table(headers, outcome.Resources))
			sb.WriteString("\n")
		}
	case !mentionsNoResources(outcome.Summary.Text):
		sb.WriteString(NoResourceDetails + "\n\n")
	}

	sb.WriteString("---\n\n")
}

// TableHeaders 表头：fields_for_table，其次默认列与第一条记录的交集，最后取第一条记录的前几个字段
func TableHeaders(def model.CategoryDefinition, resources []model.Value) []string {
	if len(def.FieldsForTable) > 0 {
		return def.FieldsForTable
	}
	logger.Log.Warnf("类别 [%s] 未配置 fields_for_table，使用默认表头", def.Name)

	if len(resources) == 0 {
		return nil
	}
	first, ok := resources[0].AsRecord()
	if !ok {
		return DefaultTableFields
	}

	headers := make([]string, 0, len(DefaultTableFields))
	for _, field := range DefaultTableFields {
		if first.Has(field) {
			headers = append(headers, field)
		}
	}
	if len(headers) > 0 {
		return headers
	}

	keys := first.Keys()
	if len(keys) > maxFallbackHeaders {
		keys = keys[:maxFallbackHeaders]
	}
	return keys
}

// Table GFM 表格，每行的单元格数与表头一致
func Table(headers []string, resources []model.Value) string {
	var sb strings.Builder
	writeRow(&sb, escapeAll(headers))

	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&sb, sep)

	for _, res := range resources {
		writeRow(&sb, RowCells(headers, res))
	}
	return sb.String()
}

// RowCells 一条资源对应的单元格
func RowCells(headers []string, res model.Value) []string {
	cells := make([]string, len(headers))
	rec, ok := res.AsRecord()
	if !ok {
		for i := range cells {
			cells[i] = " "
		}
		if len(cells) > 0 {
			cells[0] = fmt.Sprintf("Malformed resource data (expected map, got %s)", res.TypeName())
		}
		return cells
	}

	for i, header := range headers {
		cells[i] = cellText(rec.Get(header))
	}
	return cells
}

func cellText(v model.Value) string {
	switch v.Kind() {
	case model.KindAbsent:
		return " "
	case model.KindList:
		items := v.Items()
		if len(items) == 0 {
			return "[]"
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, item.String())
		}
		return escapeCell(strings.Join(parts, ", "))
	case model.KindMap:
		if rec, _ := v.AsRecord(); rec.Len() == 0 {
			return "{}"
		}
		return "{...}"
	default:
		return escapeCell(v.String())
	}
}

// escapeCell 转义竖线，换行会截断表格行
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func escapeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = escapeCell(v)
	}
	return out
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func mentionsNoResources(summary string) bool {
	for _, phrase := range noResourcePhrases {
		if strings.Contains(summary, phrase) {
			return true
		}
	}
	return false
}
