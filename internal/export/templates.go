package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var articleTemplate = template.Must(template.New("article").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t *time.Time, layout string) string {
		if t == nil {
			return ""
		}
		return t.Format(layout)
	},
}).Parse(articleTemplateText))

// TemplateData holds data for article template rendering
type TemplateData struct {
	Title       string
	Excerpt     string
	ContentHTML template.HTML
	Author      string
	Tags        []string
	PublishedAt *time.Time
}

// RenderArticleHTML renders the article template with provided data
func RenderArticleHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := articleTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const articleTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.7; max-width: 720px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #1a1a1a; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .tag { background: #f0f0f0; border-radius: 3px; padding: 0.1rem 0.4rem; margin-right: 0.3rem; font-size: 0.85em; }
    pre { background: #f5f5f5; padding: 1rem; overflow-x: auto; }
    blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #444; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">
    {{if .Author}}{{.Author}}{{end}}
    {{if .PublishedAt}} | {{formatDate .PublishedAt "Jan 2, 2006"}}{{end}}
    {{range .Tags}}<span class="tag">{{.}}</span>{{end}}
  </div>
  {{if .Excerpt}}<p><em>{{.Excerpt}}</em></p>{{end}}
  <div>{{.ContentHTML}}</div>
</body>
</html>`
