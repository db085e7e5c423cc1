package domain

import (
	"time"

	"github.com/google/uuid"
)

// Content types and moderation states used by the site snapshot.
const (
	ContentTypeBlogPost  = "blog_post"
	ContentTypeAreaGuide = "area_guide"

	ContentStatusApproved  = "approved"
	ContentStatusPublished = "published"
)

// ContentItem is an agent content submission.
type ContentItem struct {
	ID               uuid.UUID  `db:"id"`
	ContentType      string     `db:"content_type"`
	Title            string     `db:"title"`
	Slug             string     `db:"slug"`
	ContentBody      string     `db:"content_body"`
	Excerpt          *string    `db:"excerpt"`
	FeaturedImageURL *string    `db:"featured_image_url"`
	Status           string     `db:"status"`
	PublishedAt      *time.Time `db:"published_at"`
	ReviewedAt       *time.Time `db:"reviewed_at"`
}

// GlobalContent is shared header/footer/legal content applied to every site.
type GlobalContent struct {
	ContentType string `db:"content_type"`
	ContentBody string `db:"content_body"`
	IsPublished bool   `db:"is_published"`
}

// SectionVisibility decides which optional pages a microsite renders.
type SectionVisibility struct {
	Blog       bool `json:"blog"`
	AreaGuides bool `json:"areaGuides"`
	Reviews    bool `json:"reviews"`
	Fees       bool `json:"fees"`
	Properties bool `json:"properties"`
}

type NavItem struct {
	Label   string `json:"label"`
	Href    string `json:"href"`
	Primary bool   `json:"primary"`
	Footer  bool   `json:"footer"`
}

type AgentProfile struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Phone          *string           `json:"phone"`
	Bio            *string           `json:"bio"`
	Qualifications []string          `json:"qualifications"`
	SocialLinks    map[string]string `json:"socialLinks"`
	AvatarURL      *string           `json:"avatarUrl"`
	Subdomain      string            `json:"subdomain"`
	GooglePlaceID  *string           `json:"googlePlaceId"`
}

type SiteContent struct {
	ID               uuid.UUID  `json:"id"`
	ContentType      string     `json:"contentType"`
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	ContentBody      string     `json:"contentBody"`
	Excerpt          *string    `json:"excerpt"`
	FeaturedImageURL *string    `json:"featuredImageUrl"`
	PublishedAt      *time.Time `json:"publishedAt"`
}

// SiteGlobalContent holds the published shared blocks, keyed the way the
// static site reads them.
type SiteGlobalContent struct {
	Header         *string `json:"header"`
	Footer         *string `json:"footer"`
	PrivacyPolicy  *string `json:"privacyPolicy"`
	TermsOfService *string `json:"termsOfService"`
	CookiePolicy   *string `json:"cookiePolicy"`
	ComplaintsProc *string `json:"complaintsProc"`
}

// SiteSnapshot is the complete data file baked into one agent's static build.
type SiteSnapshot struct {
	Agent         AgentProfile      `json:"agent"`
	Sections      SectionVisibility `json:"sections"`
	Navigation    []NavItem         `json:"navigation"`
	Content       []SiteContent     `json:"content"`
	Fees          *string           `json:"fees"`
	GlobalContent SiteGlobalContent `json:"globalContent"`
}
