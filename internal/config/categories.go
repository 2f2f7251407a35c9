package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
)

// ErrInvalidCategories 类别配置为空或不是映射
var ErrInvalidCategories = errors.New("categories configuration is empty, not a mapping, or invalid")

// CategoryFilter run_categories 配置项
type CategoryFilter struct {
	// Set 为 false 表示未配置或格式不合法，处理全部类别
	Set   bool
	Names []string
}

// UnmarshalYAML 格式不合法时忽略该配置并告警
func (f *CategoryFilter) UnmarshalYAML(value *yaml.Node) error {
	names, ok := stringList(value)
	if !ok {
		if value.ShortTag() != "!!null" {
			logger.Log.Warnf("run_categories 不是字符串列表 (line %d)，忽略该配置并处理全部类别", value.Line)
		}
		*f = CategoryFilter{}
		return nil
	}
	*f = CategoryFilter{Set: true, Names: names}
	return nil
}

// LoadCategories 从 YAML 或 JSON 文件加载类别定义
func LoadCategories(path string) ([]model.CategoryDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse categories %s: %w", path, err)
	}

	defs, err := ParseCategories(&root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseCategories 解析类别映射，保持文档中的顺序。
// query 或字段列表格式不合法时只告警，类别本身保留。
func ParseCategories(node *yaml.Node) ([]model.CategoryDefinition, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, ErrInvalidCategories
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode || len(node.Content) == 0 {
		return nil, ErrInvalidCategories
	}

	defs := make([]model.CategoryDefinition, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		body := node.Content[i+1]
		if seen[name] {
			return nil, fmt.Errorf("duplicate category %q (line %d)", name, node.Content[i].Line)
		}
		seen[name] = true

		def := model.CategoryDefinition{Name: name}
		if body.Kind != yaml.MappingNode {
			logger.Log.Warnf("类别 [%s] 的定义不是映射，将视为无效查询", name)
			defs = append(defs, def)
			continue
		}

		for j := 0; j+1 < len(body.Content); j += 2 {
			key, val := body.Content[j].Value, body.Content[j+1]
			switch key {
			case "query":
				if val.Kind == yaml.ScalarNode && val.ShortTag() == "!!str" {
					def.Query = val.Value
				}
			case "fields_for_ai":
				def.FieldsForAI = fieldList(name, key, val)
			case "fields_for_table":
				def.FieldsForTable = fieldList(name, key, val)
			}
		}
		if !def.HasQuery() {
			logger.Log.Warnf("类别 [%s] 的 query 缺失或不是字符串", name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func fieldList(category, key string, node *yaml.Node) []string {
	fields, ok := stringList(node)
	if !ok {
		logger.Log.Warnf("类别 [%s] 的 %s 不是字符串列表，将使用默认字段", category, key)
		return nil
	}
	return fields
}

func stringList(node *yaml.Node) ([]string, bool) {
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil, false
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
			return nil, false
		}
		out = append(out, item.Value)
	}
	return out, true
}
