package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind 资源字段值的类型标签
type Kind uint8

const (
	// KindAbsent 字段不存在或为 null
	KindAbsent Kind = iota
	// KindScalar 字符串、数字、布尔
	KindScalar
	// KindList 数组
	KindList
	// KindMap 对象
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "absent"
	}
}

// Value Resource Graph 返回的任意 JSON 值
type Value struct {
	kind   Kind
	scalar any
	list   []Value
	record *Record
}

// Record 保留键顺序的 JSON 对象，即一条资源记录
type Record struct {
	keys   []string
	values map[string]Value
}

// Absent 返回空值
func Absent() Value { return Value{} }

// Scalar 构造标量值，nil 视为空值
func Scalar(v any) Value {
	if v == nil {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: v}
}

// List 构造数组值
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// Map 构造对象值
func Map(r *Record) Value {
	if r == nil {
		r = NewRecord()
	}
	return Value{kind: KindMap, record: r}
}

// NewRecord 创建空记录
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// Set 写入字段，首次写入的键追加到末尾
func (r *Record) Set(key string, v Value) *Record {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get 安全读取字段，不存在时返回空值
func (r *Record) Get(key string) Value {
	if r == nil {
		return Value{}
	}
	return r.values[key]
}

// Has 字段是否存在（值可以为 null）
func (r *Record) Has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.values[key]
	return ok
}

// Keys 按原始顺序返回字段名
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len 字段数量
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// FromAny 将 encoding/json 风格的解码结果转换为 Value。
// map 无序，键按字典序排列。
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, FromAny(item))
		}
		return List(items...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		r := NewRecord()
		for _, k := range keys {
			r.Set(k, FromAny(t[k]))
		}
		return Map(r)
	default:
		return Scalar(t)
	}
}

// Kind 返回类型标签
func (v Value) Kind() Kind { return v.kind }

// IsAbsent 是否为空值
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsEmptyString 是否为空字符串
func (v Value) IsEmptyString() bool {
	s, ok := v.scalar.(string)
	return v.kind == KindScalar && ok && s == ""
}

// Items 返回数组元素
func (v Value) Items() []Value { return v.list }

// AsRecord 资源记录的唯一类型检查入口
func (v Value) AsRecord() (*Record, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.record, true
}

// String 标量的自然字符串形式，数组与对象输出紧凑 JSON
func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return "null"
	case KindScalar:
		return scalarString(v.scalar)
	default:
		return v.JSON()
	}
}

// JSON 紧凑 JSON，对象保持字段顺序
func (v Value) JSON() string {
	var sb strings.Builder
	v.writeJSON(&sb)
	return sb.String()
}

// TypeName 用于日志与报表中的畸形数据提示
func (v Value) TypeName() string {
	if v.kind != KindScalar {
		return v.kind.String()
	}
	switch v.scalar.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return "number"
	}
}

func (v Value) writeJSON(sb *strings.Builder) {
	switch v.kind {
	case KindAbsent:
		sb.WriteString("null")
	case KindScalar:
		if s, ok := v.scalar.(string); ok {
			b, _ := json.Marshal(s)
			sb.Write(b)
			return
		}
		sb.WriteString(scalarString(v.scalar))
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.writeJSON(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, k := range v.record.keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			b, _ := json.Marshal(k)
			sb.Write(b)
			sb.WriteByte(':')
			v.record.values[k].writeJSON(sb)
		}
		sb.WriteByte('}')
	}
}

// MarshalJSON 实现 json.Marshaler，供存储层序列化资源
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.JSON()), nil
}

func scalarString(s any) string {
	switch t := s.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
