package export

import (
	"strings"
	"testing"
	"time"
)

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "simple paragraph",
			input:    "Hello world",
			expected: "<p>Hello world</p>",
		},
		{
			name:     "heading levels",
			input:    "## Section Title",
			expected: "<h2>Section Title</h2>",
		},
		{
			name:     "bold and italic",
			input:    "Some **bold** and *italic* text",
			expected: "<p>Some <strong>bold</strong> and <em>italic</em> text</p>",
		},
		{
			name:     "inline code",
			input:    "Run `go run .` locally",
			expected: "<p>Run <code>go run .</code> locally</p>",
		},
		{
			name:     "link",
			input:    "See [the docs](https://example.com/docs)",
			expected: `<p>See <a href="https://example.com/docs">the docs</a></p>`,
		},
		{
			name:     "unordered list",
			input:    "- one\n- two",
			expected: "<ul>\n<li>one</li>\n<li>two</li>\n</ul>",
		},
		{
			name:     "ordered list",
			input:    "1. first\n2. second",
			expected: "<ol>\n<li>first</li>\n<li>second</li>\n</ol>",
		},
		{
			name:     "blockquote",
			input:    "> quoted line",
			expected: "<blockquote>quoted line</blockquote>",
		},
		{
			name:     "fenced code block keeps raw text",
			input:    "```\nif a < b {\n}\n```",
			expected: "<pre><code>if a &lt; b {\n}</code></pre>",
		},
		{
			name:     "html in text is escaped",
			input:    "beware <script>alert(1)</script>",
			expected: "<p>beware &lt;script&gt;alert(1)&lt;/script&gt;</p>",
		},
		{
			name:     "paragraphs split on blank lines",
			input:    "first\n\nsecond",
			expected: "<p>first</p>\n<p>second</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkdownToHTML(tt.input)
			if got != tt.expected {
				t.Errorf("MarkdownToHTML() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRenderArticleHTML(t *testing.T) {
	published := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	html, err := RenderArticleHTML(TemplateData{
		Title:       "Shipping a Side Project",
		Excerpt:     "Notes from the trenches",
		ContentHTML: "<p>body</p>",
		Author:      "Morgan",
		Tags:        []string{"go", "infra"},
		PublishedAt: &published,
	})
	if err != nil {
		t.Fatalf("RenderArticleHTML() error = %v", err)
	}

	for _, want := range []string{
		"<h1>Shipping a Side Project</h1>",
		"Notes from the trenches",
		"<p>body</p>",
		"Morgan",
		"Mar 14, 2025",
		`<span class="tag">go</span>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderArticleHTMLWithoutOptionalFields(t *testing.T) {
	html, err := RenderArticleHTML(TemplateData{
		Title:       "Draft",
		ContentHTML: "<p>wip</p>",
	})
	if err != nil {
		t.Fatalf("RenderArticleHTML() error = %v", err)
	}
	if !strings.Contains(html, "<h1>Draft</h1>") {
		t.Error("rendered HTML missing title")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("My Article: Part 2!"); got != "My-Article-Part-2" {
		t.Errorf("sanitizeFilename() = %q", got)
	}
	if got := sanitizeFilename("///"); got != "article" {
		t.Errorf("sanitizeFilename() fallback = %q", got)
	}
}
