package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict reports a unique-constraint violation (duplicate article slug).
var ErrConflict = errors.New("conflict")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ── Users & sessions ──

// UpsertUser inserts or refreshes a user row keyed by open_id, mirroring
// what the OAuth callback hands us. Returns the stored row.
func (s *PostgresStore) UpsertUser(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (id, open_id, name, email, login_method, role, last_signed_in)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (open_id) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
			login_method = CASE WHEN EXCLUDED.login_method <> '' THEN EXCLUDED.login_method ELSE users.login_method END,
			role = CASE WHEN EXCLUDED.role <> 'user' THEN EXCLUDED.role ELSE users.role END,
			last_signed_in = NOW(),
			updated_at = NOW()
		RETURNING id, open_id, name, email, login_method, role, last_signed_in, created_at, updated_at
	`
	var stored User
	err := s.db.QueryRowContext(ctx, query,
		user.ID, user.OpenID, user.Name, user.Email, user.LoginMethod, user.Role,
	).Scan(&stored.ID, &stored.OpenID, &stored.Name, &stored.Email, &stored.LoginMethod,
		&stored.Role, &stored.LastSignedIn, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const query = `
		SELECT id, open_id, name, email, login_method, role, last_signed_in, created_at, updated_at
		FROM users WHERE id = $1
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.OpenID, &user.Name, &user.Email, &user.LoginMethod,
		&user.Role, &user.LastSignedIn, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.open_id, u.name, u.email, u.login_method, u.role, u.last_signed_in, u.created_at, u.updated_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&user.ID, &user.OpenID, &user.Name, &user.Email, &user.LoginMethod,
		&user.Role, &user.LastSignedIn, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Articles ──

const articleColumns = `id, title, slug, excerpt, content, tags, status, author_id, published_at, created_at, updated_at`

func scanArticle(row interface{ Scan(...any) error }) (Article, error) {
	var (
		article Article
		rawTags string
	)
	err := row.Scan(&article.ID, &article.Title, &article.Slug, &article.Excerpt,
		&article.Content, &rawTags, &article.Status, &article.AuthorID,
		&article.PublishedAt, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		return Article{}, err
	}
	tags, err := decodeStringList("articles.tags", rawTags)
	if err != nil {
		return Article{}, err
	}
	article.Tags = tags
	return article, nil
}

// ListPublishedArticles returns published articles, newest publication first.
// The full set is returned; pagination is a known scalability boundary at
// personal-site scale.
func (s *PostgresStore) ListPublishedArticles(ctx context.Context) ([]Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE status = $1 ORDER BY published_at DESC`, articleColumns)
	return s.queryArticles(ctx, query, StatusPublished)
}

// ListAllArticles returns every article regardless of status, for the
// management screen.
func (s *PostgresStore) ListAllArticles(ctx context.Context) ([]Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles ORDER BY created_at DESC`, articleColumns)
	return s.queryArticles(ctx, query)
}

func (s *PostgresStore) queryArticles(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func (s *PostgresStore) GetArticleBySlug(ctx context.Context, slug string) (Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE slug = $1`, articleColumns)
	return scanArticle(s.db.QueryRowContext(ctx, query, slug))
}

func (s *PostgresStore) GetArticleByID(ctx context.Context, id string) (Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE id = $1`, articleColumns)
	return scanArticle(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) InsertArticle(ctx context.Context, article Article) error {
	rawTags, err := encodeStringList(article.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO articles (id, title, slug, excerpt, content, tags, status, author_id, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, article.ID, article.Title, article.Slug, article.Excerpt, article.Content,
		rawTags, article.Status, article.AuthorID, article.PublishedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("slug %q: %w", article.Slug, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// UpdateArticle applies a partial update; nil patch fields are left alone.
func (s *PostgresStore) UpdateArticle(ctx context.Context, id string, patch ArticlePatch) error {
	set := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Slug != nil {
		add("slug", *patch.Slug)
	}
	if patch.Excerpt != nil {
		add("excerpt", *patch.Excerpt)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.Tags != nil {
		rawTags, err := encodeStringList(*patch.Tags)
		if err != nil {
			return err
		}
		add("tags", rawTags)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.PublishedAt != nil {
		add("published_at", *patch.PublishedAt)
	}

	query := fmt.Sprintf(`UPDATE articles SET %s WHERE id = $1`, strings.Join(set, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("slug: %w", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	return nil
}

// DeleteArticle removes an article; deleting an unknown id is not an error.
func (s *PostgresStore) DeleteArticle(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

// ── Projects ──

const projectColumns = `id, title, subtitle, role, description, content, tags, highlights, learnings, image, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var (
		project                              Project
		rawTags, rawHighlights, rawLearnings string
	)
	err := row.Scan(&project.ID, &project.Title, &project.Subtitle, &project.Role,
		&project.Description, &project.Content, &rawTags, &rawHighlights,
		&rawLearnings, &project.Image, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	if project.Tags, err = decodeStringList("projects.tags", rawTags); err != nil {
		return Project{}, err
	}
	if project.Highlights, err = decodeStringList("projects.highlights", rawHighlights); err != nil {
		return Project{}, err
	}
	if project.Learnings, err = decodeStringList("projects.learnings", rawLearnings); err != nil {
		return Project{}, err
	}
	return project, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects ORDER BY created_at ASC`, projectColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) GetProjectByID(ctx context.Context, id string) (Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	return scanProject(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	rawTags, err := encodeStringList(project.Tags)
	if err != nil {
		return err
	}
	rawHighlights, err := encodeStringList(project.Highlights)
	if err != nil {
		return err
	}
	rawLearnings, err := encodeStringList(project.Learnings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, subtitle, role, description, content, tags, highlights, learnings, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, project.ID, project.Title, project.Subtitle, project.Role, project.Description,
		project.Content, rawTags, rawHighlights, rawLearnings, project.Image)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, id string, patch ProjectPatch) error {
	set := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Subtitle != nil {
		add("subtitle", *patch.Subtitle)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.Image != nil {
		add("image", *patch.Image)
	}
	for column, value := range map[string]*[]string{
		"tags":       patch.Tags,
		"highlights": patch.Highlights,
		"learnings":  patch.Learnings,
	} {
		if value == nil {
			continue
		}
		raw, err := encodeStringList(*value)
		if err != nil {
			return err
		}
		add(column, raw)
	}

	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $1`, strings.Join(set, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// ── Contact messages ──

const contactColumns = `id, name, email, subject, message, status, reply, replied_at, created_at`

func scanContactMessage(row interface{ Scan(...any) error }) (ContactMessage, error) {
	var msg ContactMessage
	err := row.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Subject, &msg.Message,
		&msg.Status, &msg.Reply, &msg.RepliedAt, &msg.CreatedAt)
	if err != nil {
		return ContactMessage{}, err
	}
	return msg, nil
}

func (s *PostgresStore) InsertContactMessage(ctx context.Context, msg ContactMessage) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contact_messages (name, email, subject, message, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, msg.Name, msg.Email, msg.Subject, msg.Message, ContactUnread).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert contact message: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListContactMessages(ctx context.Context) ([]ContactMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM contact_messages ORDER BY created_at DESC`, contactColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	var messages []ContactMessage
	for rows.Next() {
		msg, err := scanContactMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *PostgresStore) GetContactMessageByID(ctx context.Context, id int64) (ContactMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM contact_messages WHERE id = $1`, contactColumns)
	return scanContactMessage(s.db.QueryRowContext(ctx, query, id))
}

// MarkContactRead flips an unread message to read. Messages already read
// or replied are left alone.
func (s *PostgresStore) MarkContactRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contact_messages SET status = $2 WHERE id = $1 AND status = $3
	`, id, ContactRead, ContactUnread)
	if err != nil {
		return fmt.Errorf("mark contact read: %w", err)
	}
	return nil
}

// ReplyContactMessage records a reply from any prior status.
func (s *PostgresStore) ReplyContactMessage(ctx context.Context, id int64, reply string, repliedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contact_messages SET status = $2, reply = $3, replied_at = $4 WHERE id = $1
	`, id, ContactReplied, reply, repliedAt)
	if err != nil {
		return fmt.Errorf("reply contact message: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteContactMessage(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete contact message: %w", err)
	}
	return nil
}
