package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// HTMLData 用于模板渲染的数据
type HTMLData struct {
	Title string
	Body  template.HTML
}

const htmlTpl = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --primary-color: #0078d4;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container {
            max-width: 1100px;
            margin: 0 auto;
            background: var(--card-bg);
            border-radius: 12px;
            padding: 24px 40px;
            box-shadow: 0 4px 6px -1px rgba(0,0,0,0.1);
            border: 1px solid var(--border-color);
        }
        h1 { font-size: 2rem; border-bottom: 2px solid var(--primary-color); padding-bottom: 10px; }
        h2 { color: #0f172a; margin-top: 32px; }
        em { color: var(--text-secondary); }
        hr { border: none; border-top: 1px solid var(--border-color); margin: 32px 0; }
        table { border-collapse: collapse; width: 100%; font-size: 0.9rem; margin: 16px 0; display: block; overflow-x: auto; }
        th, td { border: 1px solid var(--border-color); padding: 6px 10px; text-align: left; vertical-align: top; }
        th { background: #eff6ff; }
        tr:nth-child(even) td { background: #f8fafc; }
    </style>
</head>
<body>
    <div class="container">
{{.Body}}
    </div>
</body>
</html>
`

var page = template.Must(template.New("report").Parse(htmlTpl))

// MarkdownToHTML 将 Markdown 转换为 HTML 片段
func MarkdownToHTML(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// RenderHTML 渲染为独立的 HTML 页面
func RenderHTML(w io.Writer, title, md string) error {
	body, err := MarkdownToHTML(md)
	if err != nil {
		return err
	}
	return page.Execute(w, HTMLData{Title: title, Body: body})
}
