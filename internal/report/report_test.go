package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/azure_radar/internal/model"
)

func rec(kv ...any) model.Value {
	r := model.NewRecord()
	for i := 0; i < len(kv); i += 2 {
		v, ok := kv[i+1].(model.Value)
		if !ok {
			v = model.Scalar(kv[i+1])
		}
		r.Set(kv[i].(string), v)
	}
	return model.Map(r)
}

func countCells(row string) int {
	row = strings.ReplaceAll(row, `\|`, "")
	return strings.Count(row, "|") - 1
}

func TestAssembleStorageScenario(t *testing.T) {
	result := &model.RunResult{
		SubscriptionID:   "sub-123",
		FinishedAt:       time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		ExecutiveSummary: model.Succeeded("Executive text."),
		Outcomes: []model.CategoryOutcome{{
			CategoryName: "Storage",
			Summary:      model.Succeeded("Fixed analysis."),
			Resources: []model.Value{
				rec("name", "st1", "location", "westeurope", "sku", "Standard_LRS"),
				rec("name", "st2", "location", "northeurope", "sku", "Premium_LRS"),
			},
		}},
	}
	defs := []model.CategoryDefinition{{Name: "Storage", FieldsForTable: []string{"name", "sku"}}}

	md := Assemble(result, defs)
	assert.True(t, strings.HasPrefix(md, "# Azure Environment Summary for Subscription: sub-123\n\n_Report generated on: 2024-05-06 07:08:09 UTC_\n\n"))

	exec := strings.Index(md, "## Executive Summary\n\nExecutive text.\n\n---\n\n")
	storage := strings.Index(md, "## Storage\n\n**AI-Generated Analysis:**\n\nFixed analysis.\n\n")
	require.GreaterOrEqual(t, exec, 0)
	require.Greater(t, storage, exec)

	assert.Contains(t, md, "**Core Resource Details for Storage:**\n\n"+
		"| name | sku |\n"+
		"| --- | --- |\n"+
		"| st1 | Standard_LRS |\n"+
		"| st2 | Premium_LRS |\n\n---\n\n")
	assert.NotContains(t, md, NoResourceDetails)
}

func TestAssembleEmptyCategories(t *testing.T) {
	result := &model.RunResult{
		SubscriptionID: "sub-123",
		Outcomes: []model.CategoryOutcome{
			{CategoryName: "Empty", Summary: model.Skipped("No Azure resources were found (or query failed) in the 'Empty' category for the subscription 'sub-123'."), Resources: []model.Value{}},
			{CategoryName: "Broken", Summary: model.Failed("Configuration error: KQL query missing or invalid for 'Broken'. Cannot fetch resources."), Resources: []model.Value{}},
		},
		ExecutiveSummary: model.Skipped("An executive summary could not be generated as there were no detailed category summaries available."),
	}

	md := Assemble(result, nil)
	emptySection := md[strings.Index(md, "## Empty"):strings.Index(md, "## Broken")]
	assert.NotContains(t, emptySection, "| ")
	assert.NotContains(t, emptySection, NoResourceDetails)

	brokenSection := md[strings.Index(md, "## Broken"):]
	assert.Contains(t, brokenSection, NoResourceDetails)
	assert.NotContains(t, brokenSection, "| ")
}

func TestAssembleEmptyRun(t *testing.T) {
	md := Assemble(&model.RunResult{}, nil)
	assert.Contains(t, md, "# Azure Environment Summary for Subscription: Unknown (Not Found in Config)")
	assert.True(t, strings.HasSuffix(md, EmptyRun+"\n"))
	assert.NotContains(t, md, "## Executive Summary")
}

func TestTableHeaders(t *testing.T) {
	first := rec("id", "/sub/x", "type", "vm", "name", "vm1", "sku", "B2s", "zone", "1")
	assert.Equal(t, []string{"a", "b"}, TableHeaders(model.CategoryDefinition{FieldsForTable: []string{"a", "b"}}, []model.Value{first}))
	assert.Equal(t, []string{"name", "type"}, TableHeaders(model.CategoryDefinition{}, []model.Value{first}))

	noDefaults := rec("k1", 1.0, "k2", 2.0, "k3", 3.0, "k4", 4.0, "k5", 5.0)
	assert.Equal(t, []string{"k1", "k2", "k3", "k4"}, TableHeaders(model.CategoryDefinition{}, []model.Value{noDefaults}))

	assert.Equal(t, DefaultTableFields, TableHeaders(model.CategoryDefinition{}, []model.Value{model.Scalar("bad")}))
	assert.Empty(t, TableHeaders(model.CategoryDefinition{}, []model.Value{model.Map(nil)}))

	md := Assemble(&model.RunResult{Outcomes: []model.CategoryOutcome{{
		CategoryName: "Odd", Summary: model.Succeeded("x"), Resources: []model.Value{model.Map(nil)},
	}}}, nil)
	assert.Contains(t, md, NoHeaders)
}

func TestTableCellsMatchHeaders(t *testing.T) {
	headers := []string{"name", "tags", "props", "zones", "note"}
	resources := []model.Value{
		rec("name", "a|b", "tags", model.List(), "props", model.Map(nil), "zones", model.List(model.Scalar("1"), model.Scalar("2")), "note", "line1\nline2"),
		rec("name", "c", "props", rec("x", 1.0)),
		model.Scalar("garbage"),
		model.List(model.Scalar(1.0)),
	}

	table := Table(headers, resources)
	rows := strings.Split(strings.TrimSuffix(table, "\n"), "\n")
	require.Len(t, rows, 2+len(resources))
	for _, row := range rows {
		assert.Equal(t, len(headers), countCells(row), row)
	}

	assert.Equal(t, `| a\|b | [] | {} | 1, 2 | line1 line2 |`, rows[2])
	assert.Equal(t, "| c |   | {...} |   |   |", rows[3])
	assert.Equal(t, "| Malformed resource data (expected map, got string) |   |   |   |   |", rows[4])
	assert.Equal(t, "| Malformed resource data (expected map, got list) |   |   |   |   |", rows[5])
}

func TestRenderHTML(t *testing.T) {
	md := "# Title\n\n| name | sku |\n| --- | --- |\n| st1 | <b>LRS</b> |\n"
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "Azure <Summary>", md))

	out := buf.String()
	assert.Contains(t, out, "<title>Azure &lt;Summary&gt;</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>st1</td>")
	// goldmark 默认不输出原始 HTML
	assert.NotContains(t, out, "<b>LRS</b>")
}
