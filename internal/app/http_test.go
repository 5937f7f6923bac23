package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"folio/api/internal/store"
)

func newTestServer(fs *fakeStore, fg *fakeGit) *HTTPServer {
	return NewHTTPServer(newTestService(fs, fg), nil, "*")
}

func doJSON(t *testing.T, server *HTTPServer, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return response
}

func TestCapabilityVerifyIssuesClientKey(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/capability/verify",
		`{"capability":"edit","secret":"letmein"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	response := parseBody(t, rr)
	if response["verified"] != true {
		t.Fatalf("expected verified=true, got %v", response["verified"])
	}
	clientKey, _ := response["clientKey"].(string)
	if clientKey == "" {
		t.Fatalf("expected issued clientKey")
	}

	rr = doJSON(t, server, http.MethodGet, "/api/capability/edit", "", map[string]string{
		"X-Capability-Client": clientKey,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from liveness check, got %d", rr.Code)
	}
	if live := parseBody(t, rr)["live"]; live != true {
		t.Fatalf("expected live=true after verify, got %v", live)
	}
}

func TestCapabilityVerifyWrongSecretIsNegativeNotError(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/capability/verify",
		`{"capability":"edit","secret":"wrong","clientKey":"client-1"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if verified := parseBody(t, rr)["verified"]; verified != false {
		t.Fatalf("expected verified=false, got %v", verified)
	}

	rr = doJSON(t, server, http.MethodGet, "/api/capability/edit", "", map[string]string{
		"X-Capability-Client": "client-1",
	})
	if live := parseBody(t, rr)["live"]; live != false {
		t.Fatalf("expected live=false after failed verify, got %v", live)
	}
}

func TestCapabilityVerifyRejectsUnknownCapability(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/capability/verify",
		`{"capability":"delete","secret":"letmein"}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestCapabilityLogoutDropsRecord(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/capability/verify",
		`{"capability":"edit","secret":"letmein","clientKey":"client-1"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify failed: %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodPost, "/api/capability/edit/logout", "", map[string]string{
		"X-Capability-Client": "client-1",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodGet, "/api/capability/edit", "", map[string]string{
		"X-Capability-Client": "client-1",
	})
	if live := parseBody(t, rr)["live"]; live != false {
		t.Fatalf("expected live=false after logout, got %v", live)
	}
}

func TestCapabilityLogoutWithoutRecordStillSucceeds(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/capability/edit/logout", "", map[string]string{
		"X-Capability-Client": "never-verified",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from logout without record, got %d", rr.Code)
	}
}

func TestCreateArticleWithInlineSecret(t *testing.T) {
	var inserted store.Article
	fs := &fakeStore{
		insertArticleFn: func(_ context.Context, article store.Article) error {
			inserted = article
			return nil
		},
		getArticleByIDFn: func(_ context.Context, id string) (store.Article, error) {
			return inserted, nil
		},
	}
	server := newTestServer(fs, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/articles",
		`{"secret":"letmein","title":"Post","slug":"post","excerpt":"E","content":"C","status":"published"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	response := parseBody(t, rr)
	if response["status"] != "published" {
		t.Fatalf("expected published status, got %v", response["status"])
	}
	if response["publishedAt"] == nil {
		t.Fatalf("expected publishedAt in payload")
	}
}

func TestCreateArticleWithCachedCapabilitySecret(t *testing.T) {
	var inserted store.Article
	fs := &fakeStore{
		insertArticleFn: func(_ context.Context, article store.Article) error {
			inserted = article
			return nil
		},
		getArticleByIDFn: func(_ context.Context, id string) (store.Article, error) {
			return inserted, nil
		},
	}
	server := newTestServer(fs, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/capability/verify",
		`{"capability":"edit","secret":"letmein","clientKey":"client-1"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify failed: %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodPost, "/api/articles",
		`{"title":"Post","slug":"post","excerpt":"E","content":"C"}`, map[string]string{
			"X-Capability-Client": "client-1",
		})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 via cached secret, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateArticleWithoutSecretIsUnauthorized(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/articles",
		`{"title":"Post","slug":"post","excerpt":"E","content":"C"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := parseBody(t, rr)["code"]; code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %v", code)
	}
}

func TestGetArticleAbsentAnswersNull(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/articles/art_missing", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for absent article, got %d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "null" {
		t.Fatalf("expected null body, got %q", body)
	}
}

func TestGetArticleBySlugAnswersPayload(t *testing.T) {
	fs := &fakeStore{
		getArticleBySlugFn: func(_ context.Context, slug string) (store.Article, error) {
			if slug != "first-post" {
				return store.Article{}, sql.ErrNoRows
			}
			return store.Article{ID: "art_1", Title: "First Post", Slug: slug, Status: store.StatusPublished}, nil
		},
	}
	server := newTestServer(fs, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/articles/slug/first-post", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if title := parseBody(t, rr)["title"]; title != "First Post" {
		t.Fatalf("expected title First Post, got %v", title)
	}
}

func TestListArticlesIsPublic(t *testing.T) {
	fs := &fakeStore{
		listPublishedArticlesFn: func(context.Context) ([]store.Article, error) {
			return []store.Article{{ID: "art_1", Title: "Post", Slug: "post", Status: store.StatusPublished}}, nil
		},
	}
	server := newTestServer(fs, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/articles", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	articles, ok := parseBody(t, rr)["articles"].([]any)
	if !ok || len(articles) != 1 {
		t.Fatalf("expected one article in payload, got %v", articles)
	}
}

func TestDeleteArticleWithSecretInBody(t *testing.T) {
	deleted := false
	fs := &fakeStore{
		deleteArticleFn: func(_ context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	server := newTestServer(fs, &fakeGit{})

	rr := doJSON(t, server, http.MethodDelete, "/api/articles/art_1", `{"secret":"letmein"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !deleted {
		t.Fatalf("expected delete to reach the store")
	}
}

func TestContactSubmitIsPublic(t *testing.T) {
	fs := &fakeStore{
		insertContactFn: func(_ context.Context, msg store.ContactMessage) (int64, error) {
			return 5, nil
		},
	}
	server := newTestServer(fs, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/contact",
		`{"name":"Sam","email":"sam@example.com","subject":"Hi","message":"Nice site"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	response := parseBody(t, rr)
	if response["status"] != store.ContactUnread {
		t.Fatalf("expected unread status, got %v", response["status"])
	}
}

func TestContactListRequiresSession(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/contact", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}
}

func TestContactAdminFlowOverHTTP(t *testing.T) {
	markCalls := 0
	fs := &fakeStore{
		upsertUserFn: func(_ context.Context, user store.User) (store.User, error) {
			return user, nil
		},
		markContactReadFn: func(_ context.Context, id int64) error {
			markCalls++
			return nil
		},
	}
	server := newTestServer(fs, &fakeGit{})
	server.service.cfg.OwnerOpenID = "owner"

	session, err := server.service.Login(context.Background(), LoginInput{OpenID: "owner", Name: "Owner"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	rr := doJSON(t, server, http.MethodPost, "/api/contact/5/read", "", map[string]string{
		"Authorization": "Bearer " + session.Token,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if markCalls != 1 {
		t.Fatalf("expected one MarkContactRead call, got %d", markCalls)
	}
}

func TestContactAdminOpsForbiddenForNonAdmin(t *testing.T) {
	fs := &fakeStore{
		upsertUserFn: func(_ context.Context, user store.User) (store.User, error) {
			return user, nil
		},
	}
	server := newTestServer(fs, &fakeGit{})

	session, err := server.service.Login(context.Background(), LoginInput{OpenID: "visitor"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	rr := doJSON(t, server, http.MethodGet, "/api/contact", "", map[string]string{
		"Authorization": "Bearer " + session.Token,
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rr.Code)
	}
}

func TestProjectMutationRequiresSession(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/projects", `{"title":"P"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}
}

func TestProjectListIsPublic(t *testing.T) {
	fs := &fakeStore{
		listProjectsFn: func(context.Context) ([]store.Project, error) {
			return []store.Project{{ID: "prj_1", Title: "Folio"}}, nil
		},
	}
	server := newTestServer(fs, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/projects", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	projects, ok := parseBody(t, rr)["projects"].([]any)
	if !ok || len(projects) != 1 {
		t.Fatalf("expected one project, got %v", projects)
	}
}

func TestSearchEndpointAnswersEmptyWithoutBackend(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/search?q=hello", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	response := parseBody(t, rr)
	results, ok := response["results"].([]any)
	if !ok || len(results) != 0 {
		t.Fatalf("expected empty results, got %v", response["results"])
	}
}

func TestSearchEndpointRejectsBadLimit(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/search?q=hello&limit=abc", "", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestDegradedMutationAnswers503(t *testing.T) {
	server := NewHTTPServer(newTestService(nil, nil), nil, "*")

	rr := doJSON(t, server, http.MethodPost, "/api/articles",
		`{"secret":"letmein","title":"Post","slug":"post","excerpt":"E","content":"C"}`, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without storage, got %d", rr.Code)
	}
	if code := parseBody(t, rr)["code"]; code != "STORAGE_UNAVAILABLE" {
		t.Fatalf("expected STORAGE_UNAVAILABLE, got %v", code)
	}
}

func TestDegradedListAnswersEmpty(t *testing.T) {
	server := NewHTTPServer(newTestService(nil, nil), nil, "*")

	rr := doJSON(t, server, http.MethodGet, "/api/articles", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 in degraded mode, got %d", rr.Code)
	}
	articles, ok := parseBody(t, rr)["articles"].([]any)
	if !ok || len(articles) != 0 {
		t.Fatalf("expected empty article list, got %v", articles)
	}
}

func TestAuthMeWithoutTokenAnswersAnonymous(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/auth/me", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	response := parseBody(t, rr)
	if response["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", response["authenticated"])
	}
}

func TestArticleHistoryRequiresEditCapability(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodGet, "/api/articles/art_1/history", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without capability, got %d", rr.Code)
	}
}

func TestArticleHistoryWithVerifiedCapability(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGit{})

	rr := doJSON(t, server, http.MethodPost, "/api/capability/verify",
		`{"capability":"edit","secret":"letmein","clientKey":"client-1"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify failed: %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodGet, "/api/articles/art_1/history", "", map[string]string{
		"X-Capability-Client": "client-1",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	revisions, ok := parseBody(t, rr)["revisions"].([]any)
	if !ok || len(revisions) != 1 {
		t.Fatalf("expected one revision, got %v", revisions)
	}
}
