package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/capability"
	"folio/api/internal/config"
	"folio/api/internal/email"
	"folio/api/internal/export"
	"folio/api/internal/gitrepo"
	"folio/api/internal/media"
	"folio/api/internal/search"
	"folio/api/internal/store"
	"folio/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) IsAdmin() bool {
	return s.UserID != "" && s.Role == "admin"
}

type LoginInput struct {
	OpenID      string `json:"openId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	LoginMethod string `json:"loginMethod"`
}

type CreateArticleInput struct {
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	Excerpt string   `json:"excerpt"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Status  string   `json:"status"`
}

type UpdateArticleInput struct {
	Title   *string   `json:"title"`
	Slug    *string   `json:"slug"`
	Excerpt *string   `json:"excerpt"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
	Status  *string   `json:"status"`
}

type CreateProjectInput struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Role        string   `json:"role"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	Highlights  []string `json:"highlights"`
	Learnings   []string `json:"learnings"`
	Image       string   `json:"image"`
}

type UpdateProjectInput struct {
	Title       *string   `json:"title"`
	Subtitle    *string   `json:"subtitle"`
	Role        *string   `json:"role"`
	Description *string   `json:"description"`
	Content     *string   `json:"content"`
	Tags        *[]string `json:"tags"`
	Highlights  *[]string `json:"highlights"`
	Learnings   *[]string `json:"learnings"`
	Image       *string   `json:"image"`
}

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type dataStore interface {
	UpsertUser(context.Context, store.User) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	ListPublishedArticles(context.Context) ([]store.Article, error)
	ListAllArticles(context.Context) ([]store.Article, error)
	GetArticleBySlug(context.Context, string) (store.Article, error)
	GetArticleByID(context.Context, string) (store.Article, error)
	InsertArticle(context.Context, store.Article) error
	UpdateArticle(context.Context, string, store.ArticlePatch) error
	DeleteArticle(context.Context, string) error

	ListProjects(context.Context) ([]store.Project, error)
	GetProjectByID(context.Context, string) (store.Project, error)
	InsertProject(context.Context, store.Project) error
	UpdateProject(context.Context, string, store.ProjectPatch) error
	DeleteProject(context.Context, string) error

	InsertContactMessage(context.Context, store.ContactMessage) (int64, error)
	ListContactMessages(context.Context) ([]store.ContactMessage, error)
	GetContactMessageByID(context.Context, int64) (store.ContactMessage, error)
	MarkContactRead(context.Context, int64) error
	ReplyContactMessage(context.Context, int64, string, time.Time) error
	DeleteContactMessage(context.Context, int64) error

	Ping(ctx context.Context) error
}

// SessionStore keeps refresh tokens. Redis when configured, otherwise the
// database rows.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// pgSessionStore adapts the database store to the SessionStore shape.
type pgSessionStore struct {
	store dataStore
}

func (p pgSessionStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p pgSessionStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return p.store.LookupRefreshSession(ctx, tokenHash)
}

func (p pgSessionStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type gitService interface {
	EnsureArticleRepo(articleID, content, author string) error
	CommitContent(articleID, content, author, message string) (gitrepo.RevisionInfo, error)
	History(articleID string, limit int) ([]gitrepo.RevisionInfo, error)
	GetContentByHash(articleID, hash string) (string, error)
	HasRepo(articleID string) bool
}

type Service struct {
	cfg      config.Config
	store    dataStore
	caps     *capability.Service
	sessions SessionStore
	search   *search.Service
	git      gitService
	email    *email.Service
	media    media.Storage
	now      func() time.Time
}

// New wires the service. pg may be nil (degraded mode: reads go empty,
// mutations fail); redisSessions, searchSvc, gitSvc, emailSvc and
// mediaStorage are each optional.
func New(
	cfg config.Config,
	pg *store.PostgresStore,
	caps *capability.Service,
	redisSessions SessionStore,
	searchSvc *search.Service,
	gitSvc *gitrepo.Service,
	emailSvc *email.Service,
	mediaStorage media.Storage,
) *Service {
	svc := &Service{
		cfg:    cfg,
		caps:   caps,
		search: searchSvc,
		email:  emailSvc,
		media:  mediaStorage,
		now:    time.Now,
	}
	if pg != nil {
		svc.store = pg
	}
	if gitSvc != nil {
		svc.git = gitSvc
	}
	switch {
	case redisSessions != nil:
		svc.sessions = redisSessions
	case svc.store != nil:
		svc.sessions = pgSessionStore{store: svc.store}
	}
	return svc
}

func (s *Service) Capabilities() *capability.Service {
	return s.caps
}

func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("storage not configured")
	}
	return s.store.Ping(ctx)
}

// StorageReady reports whether a database is wired in.
func (s *Service) StorageReady() bool {
	return s.store != nil
}

func (s *Service) warnDegraded(operation string) {
	log.Printf("store: %s skipped, storage not configured", operation)
}

// requireEditSecret is the direct check run on every article mutation.
// The cached capability only spares the client from resending the secret;
// the value itself is validated each call.
func (s *Service) requireEditSecret(secret string) error {
	if !s.caps.Matches(capability.Edit, secret) {
		return unauthorizedError("A valid edit secret is required")
	}
	return nil
}

func requireAdmin(session Session) error {
	if !session.IsAdmin() {
		return forbiddenError("Admin session required")
	}
	return nil
}

// ── Sessions ──

func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	openID := strings.TrimSpace(input.OpenID)
	if openID == "" {
		return Session{}, validationError("openId is required")
	}
	if s.store == nil {
		return Session{}, errStorageUnavailable
	}

	role := "user"
	if s.cfg.OwnerOpenID != "" && openID == s.cfg.OwnerOpenID {
		role = "admin"
	}

	user, err := s.store.UpsertUser(ctx, store.User{
		ID:          util.NewID("usr"),
		OpenID:      openID,
		Name:        strings.TrimSpace(input.Name),
		Email:       strings.TrimSpace(input.Email),
		LoginMethod: strings.TrimSpace(input.LoginMethod),
		Role:        role,
	})
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(ctx, user)
}

func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	if s.sessions == nil {
		return Session{}, errStorageUnavailable
	}
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), auth.Claims{
		Sub:    user.ID,
		OpenID: user.OpenID,
		Name:   user.Name,
		Role:   user.Role,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if s.sessions != nil {
		refreshExpires := now.Add(s.cfg.RefreshTTL)
		if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
			return Session{}, err
		}
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.store != nil {
		revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
		if err != nil {
			return Session{}, err
		}
		if revoked {
			return Session{}, auth.ErrInvalidToken
		}
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      claims.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" && s.store != nil {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" && s.sessions != nil {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ── Articles ──

// ListArticles returns published articles, newest publication first.
func (s *Service) ListArticles(ctx context.Context) ([]store.Article, error) {
	if s.store == nil {
		s.warnDegraded("list articles")
		return []store.Article{}, nil
	}
	articles, err := s.store.ListPublishedArticles(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, err
		}
		log.Printf("store: list articles: %v", err)
		return []store.Article{}, nil
	}
	if articles == nil {
		articles = []store.Article{}
	}
	return articles, nil
}

// ListAllArticles returns every article including drafts, for the
// management screen.
func (s *Service) ListAllArticles(ctx context.Context, secret string) ([]store.Article, error) {
	if err := s.requireEditSecret(secret); err != nil {
		return nil, err
	}
	if s.store == nil {
		s.warnDegraded("list all articles")
		return []store.Article{}, nil
	}
	articles, err := s.store.ListAllArticles(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, err
		}
		log.Printf("store: list all articles: %v", err)
		return []store.Article{}, nil
	}
	if articles == nil {
		articles = []store.Article{}
	}
	return articles, nil
}

// GetArticleBySlug returns nil when no article carries the slug; absence
// is a value here, not an error.
func (s *Service) GetArticleBySlug(ctx context.Context, slug string) (*store.Article, error) {
	if s.store == nil {
		s.warnDegraded("get article")
		return nil, nil
	}
	article, err := s.store.GetArticleBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *Service) GetArticleByID(ctx context.Context, id string) (*store.Article, error) {
	if s.store == nil {
		s.warnDegraded("get article")
		return nil, nil
	}
	article, err := s.store.GetArticleByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *Service) CreateArticle(ctx context.Context, secret string, input CreateArticleInput) (*store.Article, error) {
	if err := s.requireEditSecret(secret); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, errStorageUnavailable
	}
	if err := validateArticleFields(input.Title, input.Slug, input.Excerpt, input.Content); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = store.StatusDraft
	}
	if status != store.StatusDraft && status != store.StatusPublished {
		return nil, validationError("status must be draft or published")
	}

	article := store.Article{
		ID:      util.NewID("art"),
		Title:   strings.TrimSpace(input.Title),
		Slug:    strings.TrimSpace(input.Slug),
		Excerpt: strings.TrimSpace(input.Excerpt),
		Content: input.Content,
		Tags:    input.Tags,
		Status:  status,
	}
	if status == store.StatusPublished {
		now := s.now()
		article.PublishedAt = &now
	}

	if err := s.store.InsertArticle(ctx, article); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "CONFLICT", "Slug already in use", nil)
		}
		return nil, err
	}

	if s.git != nil {
		if err := s.git.EnsureArticleRepo(article.ID, article.Content, "owner"); err != nil {
			log.Printf("gitrepo: init article %s: %v", article.ID, err)
		}
	}

	stored, err := s.store.GetArticleByID(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(stored)
	return &stored, nil
}

// UpdateArticle applies a field-presence partial update. Updating an
// unknown id returns nil without error.
func (s *Service) UpdateArticle(ctx context.Context, secret, id string, input UpdateArticleInput) (*store.Article, error) {
	if err := s.requireEditSecret(secret); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, errStorageUnavailable
	}

	if _, err := s.store.GetArticleByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	patch := store.ArticlePatch{
		Title:   input.Title,
		Slug:    input.Slug,
		Excerpt: input.Excerpt,
		Content: input.Content,
		Tags:    input.Tags,
		Status:  input.Status,
	}
	if err := validateArticlePatch(patch); err != nil {
		return nil, err
	}
	// Republishing an already published article refreshes publishedAt;
	// moving back to draft keeps the old timestamp.
	if input.Status != nil && *input.Status == store.StatusPublished {
		now := s.now()
		patch.PublishedAt = &now
	}

	if err := s.store.UpdateArticle(ctx, id, patch); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "CONFLICT", "Slug already in use", nil)
		}
		return nil, err
	}

	if input.Content != nil && s.git != nil {
		if !s.git.HasRepo(id) {
			if err := s.git.EnsureArticleRepo(id, *input.Content, "owner"); err != nil {
				log.Printf("gitrepo: init article %s: %v", id, err)
			}
		} else if _, err := s.git.CommitContent(id, *input.Content, "owner", "Update content"); err != nil {
			log.Printf("gitrepo: commit article %s: %v", id, err)
		}
	}

	updated, err := s.store.GetArticleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(updated)
	return &updated, nil
}

// DeleteArticle is idempotent; deleting an unknown id succeeds.
func (s *Service) DeleteArticle(ctx context.Context, secret, id string) error {
	if err := s.requireEditSecret(secret); err != nil {
		return err
	}
	if s.store == nil {
		return errStorageUnavailable
	}
	if err := s.store.DeleteArticle(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.RemoveArticle(id)
	}
	return nil
}

func (s *Service) syncSearchIndex(article store.Article) {
	if s.search == nil {
		return
	}
	if article.Status == store.StatusPublished {
		s.search.IndexArticle(search.ArticleRecord{
			ID:      article.ID,
			Slug:    article.Slug,
			Title:   article.Title,
			Excerpt: article.Excerpt,
			Content: article.Content,
			Tags:    article.Tags,
		})
		return
	}
	s.search.RemoveArticle(article.ID)
}

func validateArticleFields(title, slug, excerpt, content string) error {
	if strings.TrimSpace(title) == "" {
		return validationError("title is required")
	}
	if strings.TrimSpace(excerpt) == "" {
		return validationError("excerpt is required")
	}
	if strings.TrimSpace(content) == "" {
		return validationError("content is required")
	}
	return validateSlug(slug)
}

func validateArticlePatch(patch store.ArticlePatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return validationError("title must not be empty")
	}
	if patch.Excerpt != nil && strings.TrimSpace(*patch.Excerpt) == "" {
		return validationError("excerpt must not be empty")
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return validationError("content must not be empty")
	}
	if patch.Slug != nil {
		if err := validateSlug(*patch.Slug); err != nil {
			return err
		}
	}
	if patch.Status != nil && *patch.Status != store.StatusDraft && *patch.Status != store.StatusPublished {
		return validationError("status must be draft or published")
	}
	return nil
}

func validateSlug(slug string) error {
	if strings.TrimSpace(slug) == "" {
		return validationError("slug is required")
	}
	if !slugPattern.MatchString(slug) {
		return validationError("slug must be lowercase letters, digits and hyphens")
	}
	return nil
}

// ── Article revisions & export ──

func (s *Service) ArticleHistory(ctx context.Context, secret, id string, limit int) ([]gitrepo.RevisionInfo, error) {
	if err := s.requireEditSecret(secret); err != nil {
		return nil, err
	}
	if s.git == nil {
		return nil, domainError(http.StatusServiceUnavailable, "REVISIONS_UNAVAILABLE", "Revision history is not configured", nil)
	}
	if !s.git.HasRepo(id) {
		return []gitrepo.RevisionInfo{}, nil
	}
	return s.git.History(id, limit)
}

func (s *Service) ArticleRevision(ctx context.Context, secret, id, hash string) (string, error) {
	if err := s.requireEditSecret(secret); err != nil {
		return "", err
	}
	if s.git == nil {
		return "", domainError(http.StatusServiceUnavailable, "REVISIONS_UNAVAILABLE", "Revision history is not configured", nil)
	}
	return s.git.GetContentByHash(id, hash)
}

// GetExportArticle loads article content for the export renderer.
// Version is "latest" or a revision hash.
func (s *Service) GetExportArticle(ctx context.Context, articleID, version string) (export.Article, error) {
	if s.store == nil {
		return export.Article{}, export.ErrContentUnavailable
	}
	article, err := s.store.GetArticleByID(ctx, articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return export.Article{}, export.ErrContentUnavailable
	}
	if err != nil {
		return export.Article{}, err
	}

	content := article.Content
	if version != "" && version != "latest" {
		if s.git == nil {
			return export.Article{}, export.ErrContentUnavailable
		}
		content, err = s.git.GetContentByHash(articleID, version)
		if err != nil {
			return export.Article{}, fmt.Errorf("%w: %v", export.ErrContentUnavailable, err)
		}
	}

	author := ""
	if article.AuthorID != nil {
		if user, err := s.store.GetUserByID(ctx, *article.AuthorID); err == nil {
			author = user.Name
		}
	}

	return export.Article{
		ID:          article.ID,
		Title:       article.Title,
		Excerpt:     article.Excerpt,
		Content:     content,
		Author:      author,
		Tags:        article.Tags,
		PublishedAt: article.PublishedAt,
	}, nil
}

// ── Projects ──

func (s *Service) ListProjects(ctx context.Context) ([]store.Project, error) {
	if s.store == nil {
		s.warnDegraded("list projects")
		return []store.Project{}, nil
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, err
		}
		log.Printf("store: list projects: %v", err)
		return []store.Project{}, nil
	}
	if projects == nil {
		projects = []store.Project{}
	}
	return projects, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*store.Project, error) {
	if s.store == nil {
		s.warnDegraded("get project")
		return nil, nil
	}
	project, err := s.store.GetProjectByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *Service) CreateProject(ctx context.Context, session Session, input CreateProjectInput) (*store.Project, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, errStorageUnavailable
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, validationError("title is required")
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		Title:       strings.TrimSpace(input.Title),
		Subtitle:    input.Subtitle,
		Role:        input.Role,
		Description: input.Description,
		Content:     input.Content,
		Tags:        input.Tags,
		Highlights:  input.Highlights,
		Learnings:   input.Learnings,
		Image:       input.Image,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}
	stored, err := s.store.GetProjectByID(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *Service) UpdateProject(ctx context.Context, session Session, id string, input UpdateProjectInput) (*store.Project, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, errStorageUnavailable
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, validationError("title must not be empty")
	}

	if _, err := s.store.GetProjectByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	patch := store.ProjectPatch{
		Title:       input.Title,
		Subtitle:    input.Subtitle,
		Role:        input.Role,
		Description: input.Description,
		Content:     input.Content,
		Tags:        input.Tags,
		Highlights:  input.Highlights,
		Learnings:   input.Learnings,
		Image:       input.Image,
	}
	if err := s.store.UpdateProject(ctx, id, patch); err != nil {
		return nil, err
	}
	updated, err := s.store.GetProjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) DeleteProject(ctx context.Context, session Session, id string) error {
	if err := requireAdmin(session); err != nil {
		return err
	}
	if s.store == nil {
		return errStorageUnavailable
	}
	return s.store.DeleteProject(ctx, id)
}

// UploadProjectImage stores the image in object storage and saves its
// URL on the project.
func (s *Service) UploadProjectImage(ctx context.Context, session Session, id, fileName string, file io.Reader, size int64) (*store.Project, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, errStorageUnavailable
	}
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Object storage is not configured", nil)
	}

	if _, err := s.store.GetProjectByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
		}
		return nil, err
	}

	_, imageURL, err := s.media.UploadImage(ctx, id, fileName, file, size)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateProject(ctx, id, store.ProjectPatch{Image: &imageURL}); err != nil {
		return nil, err
	}
	updated, err := s.store.GetProjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ── Contact ──

func (s *Service) SubmitContactMessage(ctx context.Context, input ContactInput) (int64, error) {
	if strings.TrimSpace(input.Name) == "" {
		return 0, validationError("name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(input.Email)); err != nil {
		return 0, validationError("email must be a valid address")
	}
	if strings.TrimSpace(input.Message) == "" {
		return 0, validationError("message is required")
	}
	if s.store == nil {
		return 0, errStorageUnavailable
	}

	id, err := s.store.InsertContactMessage(ctx, store.ContactMessage{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Subject: strings.TrimSpace(input.Subject),
		Message: input.Message,
	})
	if err != nil {
		return 0, err
	}

	if s.email != nil && s.email.IsConfigured() && s.cfg.ContactNotifyTo != "" {
		notification := email.ContactNotificationData{
			SenderName:  input.Name,
			SenderEmail: input.Email,
			Subject:     input.Subject,
			Message:     input.Message,
		}
		go func() {
			if err := s.email.SendContactNotification(s.cfg.ContactNotifyTo, notification); err != nil {
				log.Printf("email: contact notification: %v", err)
			}
		}()
	}

	return id, nil
}

func (s *Service) ListContactMessages(ctx context.Context, session Session) ([]store.ContactMessage, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if s.store == nil {
		s.warnDegraded("list contact messages")
		return []store.ContactMessage{}, nil
	}
	messages, err := s.store.ListContactMessages(ctx)
	if err != nil {
		log.Printf("store: list contact messages: %v", err)
		return []store.ContactMessage{}, nil
	}
	if messages == nil {
		messages = []store.ContactMessage{}
	}
	return messages, nil
}

func (s *Service) GetContactMessage(ctx context.Context, session Session, id int64) (*store.ContactMessage, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if s.store == nil {
		s.warnDegraded("get contact message")
		return nil, nil
	}
	msg, err := s.store.GetContactMessageByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkContactMessageRead flips unread to read; read and replied messages
// are left as they are.
func (s *Service) MarkContactMessageRead(ctx context.Context, session Session, id int64) error {
	if err := requireAdmin(session); err != nil {
		return err
	}
	if s.store == nil {
		return errStorageUnavailable
	}
	return s.store.MarkContactRead(ctx, id)
}

// ReplyContactMessage records the reply (implicitly marking the message
// read and replied) and best-effort emails the submitter.
func (s *Service) ReplyContactMessage(ctx context.Context, session Session, id int64, reply string) (*store.ContactMessage, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply) == "" {
		return nil, validationError("reply is required")
	}
	if s.store == nil {
		return nil, errStorageUnavailable
	}

	msg, err := s.store.GetContactMessageByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplyContactMessage(ctx, id, reply, s.now()); err != nil {
		return nil, err
	}

	if s.email != nil && s.email.IsConfigured() {
		replyData := email.ContactReplyData{
			SenderName:      msg.Name,
			OriginalMessage: msg.Message,
			Reply:           reply,
		}
		to := msg.Email
		go func() {
			if err := s.email.SendContactReply(to, replyData); err != nil {
				log.Printf("email: contact reply: %v", err)
			}
		}()
	}

	updated, err := s.store.GetContactMessageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) DeleteContactMessage(ctx context.Context, session Session, id int64) error {
	if err := requireAdmin(session); err != nil {
		return err
	}
	if s.store == nil {
		return errStorageUnavailable
	}
	return s.store.DeleteContactMessage(ctx, id)
}

// ── Search ──

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}
