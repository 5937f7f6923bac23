package store

import "time"

// Article statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Contact message statuses.
const (
	ContactUnread  = "unread"
	ContactRead    = "read"
	ContactReplied = "replied"
)

type User struct {
	ID           string
	OpenID       string
	Name         string
	Email        string
	LoginMethod  string
	Role         string
	LastSignedIn time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Article struct {
	ID          string
	Title       string
	Slug        string
	Excerpt     string
	Content     string
	Tags        []string
	Status      string
	AuthorID    *string
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Project struct {
	ID          string
	Title       string
	Subtitle    string
	Role        string
	Description string
	Content     string
	Tags        []string
	Highlights  []string
	Learnings   []string
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ContactMessage struct {
	ID        int64
	Name      string
	Email     string
	Subject   string
	Message   string
	Status    string
	Reply     string
	RepliedAt *time.Time
	CreatedAt time.Time
}

// ArticlePatch carries a partial article update. Nil fields are left
// untouched; this is the field-presence contract for PUT.
type ArticlePatch struct {
	Title   *string
	Slug    *string
	Excerpt *string
	Content *string
	Tags    *[]string
	Status  *string
	// PublishedAt is derived from Status by the service, never supplied
	// by callers directly.
	PublishedAt *time.Time
}

// ProjectPatch carries a partial project update.
type ProjectPatch struct {
	Title       *string
	Subtitle    *string
	Role        *string
	Description *string
	Content     *string
	Tags        *[]string
	Highlights  *[]string
	Learnings   *[]string
	Image       *string
}
