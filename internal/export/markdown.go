package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// MarkdownToHTML converts the subset of markdown the editor produces to
// HTML: headings, fenced code blocks, blockquotes, unordered and ordered
// lists, and inline bold/italic/code/links. Anything else falls through
// as an escaped paragraph.
func MarkdownToHTML(markdown string) string {
	var (
		out       strings.Builder
		paragraph []string
		listTag   string
		inCode    bool
		codeLines []string
	)

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		out.WriteString("<p>" + renderInline(strings.Join(paragraph, " ")) + "</p>\n")
		paragraph = nil
	}
	closeList := func() {
		if listTag == "" {
			return
		}
		out.WriteString("</" + listTag + ">\n")
		listTag = ""
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if inCode {
			if strings.HasPrefix(trimmed, "```") {
				out.WriteString("<pre><code>" + html.EscapeString(strings.Join(codeLines, "\n")) + "</code></pre>\n")
				codeLines = nil
				inCode = false
				continue
			}
			codeLines = append(codeLines, line)
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "```"):
			flushParagraph()
			closeList()
			inCode = true

		case trimmed == "":
			flushParagraph()
			closeList()

		case strings.HasPrefix(trimmed, "#"):
			flushParagraph()
			closeList()
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' && level < 6 {
				level++
			}
			text := strings.TrimSpace(trimmed[level:])
			out.WriteString(fmt.Sprintf("<h%d>%s</h%d>\n", level, renderInline(text), level))

		case strings.HasPrefix(trimmed, "> "):
			flushParagraph()
			closeList()
			out.WriteString("<blockquote>" + renderInline(strings.TrimPrefix(trimmed, "> ")) + "</blockquote>\n")

		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			flushParagraph()
			if listTag != "ul" {
				closeList()
				out.WriteString("<ul>\n")
				listTag = "ul"
			}
			out.WriteString("<li>" + renderInline(trimmed[2:]) + "</li>\n")

		case orderedItem.MatchString(trimmed):
			flushParagraph()
			if listTag != "ol" {
				closeList()
				out.WriteString("<ol>\n")
				listTag = "ol"
			}
			out.WriteString("<li>" + renderInline(orderedItem.ReplaceAllString(trimmed, "")) + "</li>\n")

		default:
			closeList()
			paragraph = append(paragraph, trimmed)
		}
	}

	// An unterminated code fence still renders what it captured.
	if inCode {
		out.WriteString("<pre><code>" + html.EscapeString(strings.Join(codeLines, "\n")) + "</code></pre>\n")
	}
	flushParagraph()
	closeList()

	return strings.TrimRight(out.String(), "\n")
}

var (
	orderedItem = regexp.MustCompile(`^\d+\.\s+`)
	inlineCode  = regexp.MustCompile("`([^`]+)`")
	inlineBold  = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	inlineEm    = regexp.MustCompile(`\*([^*]+)\*`)
	inlineLink  = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
)

func renderInline(text string) string {
	escaped := html.EscapeString(text)
	escaped = inlineCode.ReplaceAllString(escaped, "<code>$1</code>")
	escaped = inlineBold.ReplaceAllString(escaped, "<strong>$1</strong>")
	escaped = inlineEm.ReplaceAllString(escaped, "<em>$1</em>")
	escaped = inlineLink.ReplaceAllString(escaped, `<a href="$2">$1</a>`)
	return escaped
}
