package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/capability"
	"folio/api/internal/export"
	"folio/api/internal/search"
	"folio/api/internal/session"
	"folio/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	exports    *export.Service
	corsOrigin string
}

func NewHTTPServer(service *Service, exports *export.Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, exports: exports, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/capability") {
		s.handleCapability(w, r)
		return
	}

	// Session routes (no session required to call)
	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		s.handleRefresh(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"user": map[string]any{
				"id":   session.UserID,
				"name": session.UserName,
				"role": session.Role,
			},
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		s.handleLogout(w, r)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/articles") {
		s.handleArticles(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/projects") {
		s.handleProjects(w, r)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/contact") {
		s.handleContact(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// ── Capability ──

// clientKeyFrom pulls the caller's capability client key from the
// X-Capability-Client header, falling back to the clientKey query param.
func clientKeyFrom(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-Capability-Client")); key != "" {
		return key
	}
	return strings.TrimSpace(r.URL.Query().Get("clientKey"))
}

func (s *HTTPServer) handleCapability(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path) // ["api", "capability", ...]

	if r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "verify" {
		var body struct {
			Capability string `json:"capability"`
			Secret     string `json:"secret"`
			ClientKey  string `json:"clientKey"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Capability != capability.Edit && body.Capability != capability.Publish {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "capability must be edit or publish", nil)
			return
		}
		clientKey := strings.TrimSpace(body.ClientKey)
		if clientKey == "" {
			clientKey = newClientKey()
		}
		verified, err := s.service.Capabilities().Verify(r.Context(), clientKey, body.Capability, body.Secret)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		// A wrong secret is a negative answer, not an error.
		writeJSON(w, http.StatusOK, map[string]any{
			"verified":  verified,
			"clientKey": clientKey,
		})
		return
	}

	if len(parts) >= 3 && (parts[2] == capability.Edit || parts[2] == capability.Publish) {
		capName := parts[2]
		clientKey := clientKeyFrom(r)
		if clientKey == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "clientKey is required", nil)
			return
		}

		if r.Method == http.MethodGet && len(parts) == 3 {
			live, err := s.service.Capabilities().IsLive(r.Context(), clientKey, capName)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"live": live})
			return
		}

		if r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "refresh" {
			live, err := s.service.Capabilities().Refresh(r.Context(), clientKey, capName)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"live": live})
			return
		}

		if r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "logout" {
			if err := s.service.Capabilities().Logout(r.Context(), clientKey, capName); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// editSecretFrom resolves the edit secret for a mutation: an inline
// secret in the request body wins, otherwise the caller's verified
// capability record supplies the cached one.
func (s *HTTPServer) editSecretFrom(r *http.Request, inline string) string {
	if inline != "" {
		return inline
	}
	clientKey := clientKeyFrom(r)
	if clientKey == "" {
		return ""
	}
	secret, ok, err := s.service.Capabilities().CachedSecret(r.Context(), clientKey, capability.Edit)
	if err != nil || !ok {
		return ""
	}
	return secret
}

// ── Sessions ──

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body LoginInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Login(r.Context(), body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.RefreshToken) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "refreshToken is required", nil)
		return
	}
	session, err := s.service.RefreshSession(r.Context(), body.RefreshToken)
	if err != nil {
		if isSessionNotFound(err) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)

	session := Session{}
	if token := bearerToken(r); token != "" {
		if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			session = parsed
		}
	}
	if err := s.service.Logout(r.Context(), session, body.RefreshToken); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"expiresAt":    session.ExpiresAt.UTC().Format(time.RFC3339),
		"user": map[string]any{
			"id":   session.UserID,
			"name": session.UserName,
			"role": session.Role,
		},
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

// ── Articles ──

func (s *HTTPServer) handleArticles(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path) // ["api", "articles", ...]

	if r.Method == http.MethodGet && len(parts) == 2 {
		articles, err := s.service.ListArticles(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"articles": articlePayloads(articles)})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "all" {
		articles, err := s.service.ListAllArticles(r.Context(), s.editSecretFrom(r, ""))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"articles": articlePayloads(articles)})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 4 && parts[2] == "slug" {
		article, err := s.service.GetArticleBySlug(r.Context(), parts[3])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeArticleOrNull(w, article)
		return
	}

	if r.Method == http.MethodPost && len(parts) == 2 {
		var body struct {
			Secret string `json:"secret"`
			CreateArticleInput
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		article, err := s.service.CreateArticle(r.Context(), s.editSecretFrom(r, body.Secret), body.CreateArticleInput)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, articlePayload(*article))
		return
	}

	if len(parts) >= 3 {
		articleID := parts[2]

		if r.Method == http.MethodGet && len(parts) == 3 {
			article, err := s.service.GetArticleByID(r.Context(), articleID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeArticleOrNull(w, article)
			return
		}

		if r.Method == http.MethodPut && len(parts) == 3 {
			var body struct {
				Secret string `json:"secret"`
				UpdateArticleInput
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			article, err := s.service.UpdateArticle(r.Context(), s.editSecretFrom(r, body.Secret), articleID, body.UpdateArticleInput)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeArticleOrNull(w, article)
			return
		}

		if r.Method == http.MethodDelete && len(parts) == 3 {
			var body struct {
				Secret string `json:"secret"`
			}
			_ = decodeBody(r, &body)
			if err := s.service.DeleteArticle(r.Context(), s.editSecretFrom(r, body.Secret), articleID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}

		if r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "history" {
			limit := 50
			if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
				parsed, err := strconv.Atoi(raw)
				if err != nil {
					writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
					return
				}
				limit = parsed
			}
			revisions, err := s.service.ArticleHistory(r.Context(), s.editSecretFrom(r, ""), articleID, limit)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			items := make([]map[string]any, 0, len(revisions))
			for _, rev := range revisions {
				items = append(items, map[string]any{
					"hash":      rev.Hash,
					"message":   rev.Message,
					"author":    rev.Author,
					"createdAt": rev.CreatedAt.UTC().Format(time.RFC3339),
				})
			}
			writeJSON(w, http.StatusOK, map[string]any{"revisions": items})
			return
		}

		if r.Method == http.MethodGet && len(parts) == 5 && parts[3] == "revisions" {
			content, err := s.service.ArticleRevision(r.Context(), s.editSecretFrom(r, ""), articleID, parts[4])
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"hash": parts[4], "content": content})
			return
		}

		if r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "export" {
			session, ok := s.requireSession(w, r)
			if !ok {
				return
			}
			if !session.IsAdmin() {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Format  string `json:"format"`  // "pdf" or "docx"
				Version string `json:"version"` // "latest" or revision hash
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			format := export.Format(strings.ToLower(strings.TrimSpace(body.Format)))
			if format == "" {
				format = export.FormatPDF
			}
			if format != export.FormatPDF && format != export.FormatDOCX {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
				return
			}
			if s.exports == nil {
				writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
				return
			}
			result, err := s.exports.Export(r.Context(), export.Request{
				ArticleID: articleID,
				Version:   body.Version,
				Format:    format,
			})
			if err != nil {
				s.writeExportError(w, err)
				return
			}
			w.Header().Set("Content-Type", result.MimeType)
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(result.Data)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) writeExportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, export.ErrContentUnavailable):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Article content unavailable", nil)
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependencies are not installed", nil)
	default:
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
	}
}

// Absent items answer 200 with a JSON null body; absence is not an error
// for single-item reads.
func writeArticleOrNull(w http.ResponseWriter, article *store.Article) {
	if article == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, articlePayload(*article))
}

func articlePayload(a store.Article) map[string]any {
	var publishedAt any
	if a.PublishedAt != nil {
		publishedAt = a.PublishedAt.UTC().Format(time.RFC3339)
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":          a.ID,
		"title":       a.Title,
		"slug":        a.Slug,
		"excerpt":     a.Excerpt,
		"content":     a.Content,
		"tags":        tags,
		"status":      a.Status,
		"publishedAt": publishedAt,
		"createdAt":   a.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":   a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func articlePayloads(articles []store.Article) []map[string]any {
	items := make([]map[string]any, 0, len(articles))
	for _, a := range articles {
		items = append(items, articlePayload(a))
	}
	return items
}

// ── Search ──

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}

	response := s.service.Search(search.Query{Text: q, Tag: tag, Limit: limit, Offset: offset})
	writeJSON(w, http.StatusOK, response)
}

// ── Projects ──

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path) // ["api", "projects", ...]

	if r.Method == http.MethodGet && len(parts) == 2 {
		projects, err := s.service.ListProjects(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		items := make([]map[string]any, 0, len(projects))
		for _, p := range projects {
			items = append(items, projectPayload(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": items})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 {
		project, err := s.service.GetProject(r.Context(), parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeProjectOrNull(w, project)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost && len(parts) == 2 {
		var body CreateProjectInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		project, err := s.service.CreateProject(r.Context(), session, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, projectPayload(*project))
		return
	}

	if len(parts) >= 3 {
		projectID := parts[2]

		if r.Method == http.MethodPut && len(parts) == 3 {
			var body UpdateProjectInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.UpdateProject(r.Context(), session, projectID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeProjectOrNull(w, project)
			return
		}

		if r.Method == http.MethodDelete && len(parts) == 3 {
			if err := s.service.DeleteProject(r.Context(), session, projectID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}

		if r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "image" {
			if err := r.ParseMultipartForm(16 << 20); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
				return
			}
			file, header, err := r.FormFile("image")
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "image file is required", nil)
				return
			}
			defer file.Close()

			project, err := s.service.UploadProjectImage(r.Context(), session, projectID, header.Filename, file, header.Size)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, projectPayload(*project))
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func writeProjectOrNull(w http.ResponseWriter, project *store.Project) {
	if project == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, projectPayload(*project))
}

func projectPayload(p store.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"title":       p.Title,
		"subtitle":    p.Subtitle,
		"role":        p.Role,
		"description": p.Description,
		"content":     p.Content,
		"tags":        emptyIfNil(p.Tags),
		"highlights":  emptyIfNil(p.Highlights),
		"learnings":   emptyIfNil(p.Learnings),
		"image":       p.Image,
		"createdAt":   p.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// ── Contact ──

func (s *HTTPServer) handleContact(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path) // ["api", "contact", ...]

	// Submitting a message is the one public contact operation.
	if r.Method == http.MethodPost && len(parts) == 2 {
		var body ContactInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		id, err := s.service.SubmitContactMessage(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": store.ContactUnread})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && len(parts) == 2 {
		messages, err := s.service.ListContactMessages(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		items := make([]map[string]any, 0, len(messages))
		for _, msg := range messages {
			items = append(items, contactPayload(msg))
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": items})
		return
	}

	if len(parts) >= 3 {
		messageID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message id must be an integer", nil)
			return
		}

		if r.Method == http.MethodGet && len(parts) == 3 {
			msg, err := s.service.GetContactMessage(r.Context(), session, messageID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			if msg == nil {
				writeJSON(w, http.StatusOK, nil)
				return
			}
			writeJSON(w, http.StatusOK, contactPayload(*msg))
			return
		}

		if r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "read" {
			if err := s.service.MarkContactMessageRead(r.Context(), session, messageID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}

		if r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "reply" {
			var body struct {
				Reply string `json:"reply"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			msg, err := s.service.ReplyContactMessage(r.Context(), session, messageID, body.Reply)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			if msg == nil {
				writeJSON(w, http.StatusOK, nil)
				return
			}
			writeJSON(w, http.StatusOK, contactPayload(*msg))
			return
		}

		if r.Method == http.MethodDelete && len(parts) == 3 {
			if err := s.service.DeleteContactMessage(r.Context(), session, messageID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func contactPayload(msg store.ContactMessage) map[string]any {
	var repliedAt any
	if msg.RepliedAt != nil {
		repliedAt = msg.RepliedAt.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"id":        msg.ID,
		"name":      msg.Name,
		"email":     msg.Email,
		"subject":   msg.Subject,
		"message":   msg.Message,
		"status":    msg.Status,
		"reply":     msg.Reply,
		"repliedAt": repliedAt,
		"createdAt": msg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ── Middleware & helpers ──

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func newClientKey() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Capability-Client")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func isSessionNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, session.ErrNotFound)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "CONFLICT", "Conflict", nil
	}
	if errors.Is(err, store.ErrCorrupt) {
		return http.StatusInternalServerError, "DATA_INTEGRITY", "Stored data is corrupt", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
