package export

import (
	"context"
	"fmt"
	"html/template"
)

// ArticleSource loads the article to export. Version is "latest" or a
// revision hash from the history endpoint.
type ArticleSource interface {
	GetExportArticle(ctx context.Context, articleID, version string) (Article, error)
}

type Service struct {
	source ArticleSource
}

func NewService(source ArticleSource) *Service {
	return &Service{source: source}
}

// Export generates an export in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	article, err := s.source.GetExportArticle(ctx, req.ArticleID, req.Version)
	if err != nil {
		return nil, fmt.Errorf("load article: %w", err)
	}

	html, err := RenderArticleHTML(TemplateData{
		Title:       article.Title,
		Excerpt:     article.Excerpt,
		ContentHTML: template.HTML(MarkdownToHTML(article.Content)),
		Author:      article.Author,
		Tags:        article.Tags,
		PublishedAt: article.PublishedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, article.Title)
	case FormatDOCX:
		return exportDOCX(html, article.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
