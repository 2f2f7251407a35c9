// Package format 将资源记录整理为可嵌入提示词的文本
package format

import (
	"fmt"
	"strings"

	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
)

const (
	// NoResources 资源列表为空
	NoResources = "No resources found in this category."
	// NoRelevantDetails 没有任何记录产出条目
	NoRelevantDetails = "No relevant details extracted for resources in this category based on the requested field list."
)

// IsSentinel 文本是否为格式化阶段的占位文本
func IsSentinel(text string) bool {
	return strings.HasPrefix(text, "No resources") || strings.HasPrefix(text, "No relevant")
}

// Resources 将资源列表格式化为提示词文本。
// fields 为 nil 时使用第一条合法记录的全部字段。
func Resources(resources []model.Value, fields []string) string {
	if len(resources) == 0 {
		return NoResources
	}

	entries := make([]string, 0, len(resources))
	extracted := false
	for idx, res := range resources {
		rec, ok := res.AsRecord()
		if !ok {
			logger.Log.Warnf("资源 %d 不是对象 (%s): %s", idx, res.TypeName(), res.String())
			continue
		}

		if fields == nil {
			logger.Log.Warn("未提供字段列表，使用资源的全部字段生成提示词")
			fields = rec.Keys()
		}

		details := make([]string, 0, len(fields))
		for _, field := range fields {
			v := rec.Get(field)
			if v.IsAbsent() || v.IsEmptyString() {
				continue
			}
			details = append(details, fmt.Sprintf("%s: %s", field, valueText(v)))
		}

		name := labelOr(rec.Get("name"), "Unnamed Resource")
		typ := labelOr(rec.Get("type"), "Unknown Type")
		if len(details) > 0 {
			extracted = true
			entries = append(entries, fmt.Sprintf("- Name: %s, Type: %s, Details: (%s)", name, typ, strings.Join(details, ", ")))
		} else {
			entries = append(entries, fmt.Sprintf("- Name: %s, Type: %s (No specific details extracted based on the requested field list)", name, typ))
		}
	}

	// 所有记录都没有请求的字段时没有可分析的内容
	if !extracted {
		return NoRelevantDetails
	}
	return strings.Join(entries, "\n")
}

func valueText(v model.Value) string {
	switch v.Kind() {
	case model.KindList:
		items := v.Items()
		if len(items) == 0 {
			return "(empty list)"
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, item.String())
		}
		return strings.Join(parts, ", ")
	case model.KindMap:
		if rec, _ := v.AsRecord(); rec.Len() == 0 {
			return "(empty map)"
		}
		return v.JSON()
	default:
		return v.String()
	}
}

func labelOr(v model.Value, fallback string) string {
	if v.IsAbsent() || v.IsEmptyString() {
		return fallback
	}
	return v.String()
}
