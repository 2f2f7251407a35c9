package resourcegraph

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/iWorld-y/azure_radar/internal/model"
)

// decodePage 优先从原始响应体按字段顺序解析，否则退回到 SDK 解码结果
func decodePage(raw []byte, data any) ([]model.Value, error) {
	if len(raw) > 0 {
		if rows, ok := decodeRows(raw); ok {
			return rows, nil
		}
	}

	v := model.FromAny(data)
	switch v.Kind() {
	case model.KindAbsent:
		return nil, nil
	case model.KindList:
		return v.Items(), nil
	default:
		return nil, fmt.Errorf("unexpected resource graph data type: %s", v.TypeName())
	}
}

// decodeRows 解析响应体中的 data 数组
func decodeRows(body []byte) ([]model.Value, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, false
	}

	rows := make([]model.Value, 0)
	data.ForEach(func(_, row gjson.Result) bool {
		rows = append(rows, fromGJSON(row))
		return true
	})
	return rows, true
}

func fromGJSON(r gjson.Result) model.Value {
	switch {
	case r.IsObject():
		rec := model.NewRecord()
		r.ForEach(func(k, v gjson.Result) bool {
			rec.Set(k.String(), fromGJSON(v))
			return true
		})
		return model.Map(rec)
	case r.IsArray():
		items := make([]model.Value, 0)
		r.ForEach(func(_, v gjson.Result) bool {
			items = append(items, fromGJSON(v))
			return true
		})
		return model.List(items...)
	}

	switch r.Type {
	case gjson.String:
		return model.Scalar(r.Str)
	case gjson.Number:
		return model.Scalar(json.Number(r.Raw))
	case gjson.True:
		return model.Scalar(true)
	case gjson.False:
		return model.Scalar(false)
	default:
		return model.Absent()
	}
}
