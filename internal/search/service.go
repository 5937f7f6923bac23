// Package search fronts article search with Meilisearch when configured,
// falling back to PostgreSQL full-text search.
package search

import (
	"context"
	"fmt"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// PG FTS. meili may be nil; pgfts may be nil in degraded mode.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
// With neither available the response is empty rather than an error.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexArticle pushes a published article into Meilisearch,
// fire-and-forget.
func (s *Service) IndexArticle(record ArticleRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexArticle(record); err != nil {
			log.Printf("search: index article %s: %v", record.ID, err)
		}
	}()
}

// RemoveArticle drops an article from Meilisearch after unpublish or
// delete, fire-and-forget.
func (s *Service) RemoveArticle(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteArticle(id); err != nil {
			log.Printf("search: delete article %s: %v", id, err)
		}
	}()
}

// ReindexAll reloads every published article from Postgres into
// Meilisearch. Called at startup when both backends are available; with
// either backend missing it is a no-op.
func (s *Service) ReindexAll(ctx context.Context) error {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return nil
	}
	records, err := s.pgfts.LoadPublishedRecords(ctx)
	if err != nil {
		return fmt.Errorf("load published articles: %w", err)
	}
	if err := s.meili.IndexArticles(records); err != nil {
		return fmt.Errorf("index articles: %w", err)
	}
	return nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
