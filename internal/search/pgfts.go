package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as the
// fallback when Meilisearch is absent or down.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, search is the least
// of our problems.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over the generated fts column on articles,
// published only, ranked with ts_rank and snippeted with ts_headline.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "a.status = 'published' AND a.fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.Tag != "" {
		// tags is a JSON-encoded array stored as text.
		where += " AND a.tags::jsonb ? $2"
		args = append(args, q.Tag)
	}

	ctx := context.Background()

	countSQL := fmt.Sprintf(`SELECT count(*) FROM articles a WHERE %s`, where)
	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT a.id, a.slug, a.title,
			ts_headline('english', coalesce(a.excerpt, a.content), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM articles a
		WHERE %s
		ORDER BY ts_rank(a.fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Slug, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadPublishedRecords returns every published article for full reindexing
// into Meilisearch.
func (p *PgFTS) LoadPublishedRecords(ctx context.Context) ([]ArticleRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, title, excerpt, content, tags
		FROM articles
		WHERE status = 'published'
	`)
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	defer rows.Close()

	records := make([]ArticleRecord, 0)
	for rows.Next() {
		var (
			record  ArticleRecord
			rawTags string
		)
		if err := rows.Scan(&record.ID, &record.Slug, &record.Title, &record.Excerpt, &record.Content, &rawTags); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		record.Tags = decodeTags(rawTags)
		records = append(records, record)
	}
	return records, rows.Err()
}

func decodeTags(raw string) []string {
	tags := []string{}
	if raw == "" {
		return tags
	}
	// A corrupt column should not block reindexing the rest of the row.
	_ = json.Unmarshal([]byte(raw), &tags)
	return tags
}
