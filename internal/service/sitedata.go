package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"agentsites/internal/domain"
)

// SiteDataGenerator assembles the snapshot baked into an agent's static site.
type SiteDataGenerator struct {
	tenants TenantStore
	content ContentStore
	logger  *slog.Logger
}

func NewSiteDataGenerator(tenants TenantStore, content ContentStore, logger *slog.Logger) *SiteDataGenerator {
	return &SiteDataGenerator{
		tenants: tenants,
		content: content,
		logger:  logger.With("component", "site_data"),
	}
}

// GenerateSiteData returns nil without error when the agent is missing or
// not active.
func (g *SiteDataGenerator) GenerateSiteData(ctx context.Context, tenantID uuid.UUID) (*domain.SiteSnapshot, error) {
	tenant, err := g.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", tenantID, err)
	}
	if tenant == nil || !tenant.IsActive() {
		g.logger.Warn("agent not found or inactive", "agent_id", tenantID)
		return nil, nil
	}

	items, err := g.content.ListSiteContent(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	items = approvedContent(items)

	fees, err := g.content.GetFees(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get fees: %w", err)
	}

	global, err := g.content.ListPublishedGlobalContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("list global content: %w", err)
	}

	sections := DeriveSections(items, fees, tenant.GooglePlaceID)

	return &domain.SiteSnapshot{
		Agent:         agentProfile(tenant),
		Sections:      sections,
		Navigation:    BuildNavigation(sections),
		Content:       siteContent(items),
		Fees:          fees,
		GlobalContent: siteGlobalContent(global),
	}, nil
}

// GenerateDataFile renders the snapshot as indented JSON. It returns nil
// when GenerateSiteData does.
func (g *SiteDataGenerator) GenerateDataFile(ctx context.Context, tenantID uuid.UUID) ([]byte, error) {
	snapshot, err := g.GenerateSiteData(ctx, tenantID)
	if err != nil || snapshot == nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode site data: %w", err)
	}
	return data, nil
}

func DeriveSections(items []domain.ContentItem, fees *string, googlePlaceID *string) domain.SectionVisibility {
	var blogs, guides int
	for _, item := range items {
		if !isApproved(item.Status) {
			continue
		}
		switch item.ContentType {
		case domain.ContentTypeBlogPost:
			blogs++
		case domain.ContentTypeAreaGuide:
			guides++
		}
	}

	return domain.SectionVisibility{
		Blog:       blogs > 0,
		AreaGuides: guides > 0,
		Reviews:    googlePlaceID != nil && strings.TrimSpace(*googlePlaceID) != "",
		Fees:       fees != nil && strings.TrimSpace(*fees) != "",
		Properties: true,
	}
}

// BuildNavigation lists the site's pages in the order the templates render
// them.
func BuildNavigation(s domain.SectionVisibility) []domain.NavItem {
	nav := []domain.NavItem{
		navItem("Home", "/"),
		navItem("About", "/about"),
		navItem("Services", "/services"),
	}
	if s.Properties {
		nav = append(nav, navItem("Properties", "/properties"))
	}
	if s.Blog {
		nav = append(nav, navItem("Blog", "/blog"))
	}
	if s.AreaGuides {
		nav = append(nav, navItem("Areas", "/areas"))
	}
	if s.Reviews {
		nav = append(nav, navItem("Reviews", "/reviews"))
	}
	if s.Fees {
		nav = append(nav, navItem("Fees", "/fees"))
	}
	return append(nav, navItem("Contact", "/contact"))
}

func navItem(label, href string) domain.NavItem {
	return domain.NavItem{Label: label, Href: href, Primary: true, Footer: true}
}

func isApproved(status string) bool {
	return status == domain.ContentStatusApproved || status == domain.ContentStatusPublished
}

// approvedContent keeps approved items, newest publication first. Items
// never published sort last; reviewed_at breaks ties.
func approvedContent(items []domain.ContentItem) []domain.ContentItem {
	out := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		if isApproved(item.Status) {
			out = append(out, item)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.PublishedAt != nil && b.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt):
			return a.PublishedAt.After(*b.PublishedAt)
		case a.PublishedAt != nil && b.PublishedAt == nil:
			return true
		case a.PublishedAt == nil && b.PublishedAt != nil:
			return false
		}
		if a.ReviewedAt != nil && b.ReviewedAt != nil {
			return a.ReviewedAt.After(*b.ReviewedAt)
		}
		return a.ReviewedAt != nil && b.ReviewedAt == nil
	})
	return out
}

func agentProfile(t *domain.Tenant) domain.AgentProfile {
	name := "Agent"
	if t.FirstName != nil || t.LastName != nil {
		name = strings.TrimSpace(deref(t.FirstName) + " " + deref(t.LastName))
	}

	qualifications := t.Qualifications
	if qualifications == nil {
		qualifications = []string{}
	}
	links := t.SocialLinks
	if links == nil {
		links = map[string]string{}
	}

	return domain.AgentProfile{
		ID:             t.ID,
		Name:           name,
		Email:          deref(t.Email),
		Phone:          t.Phone,
		Bio:            t.Bio,
		Qualifications: qualifications,
		SocialLinks:    links,
		AvatarURL:      t.AvatarURL,
		Subdomain:      t.Subdomain,
		GooglePlaceID:  t.GooglePlaceID,
	}
}

func siteContent(items []domain.ContentItem) []domain.SiteContent {
	out := make([]domain.SiteContent, 0, len(items))
	for _, c := range items {
		out = append(out, domain.SiteContent{
			ID:               c.ID,
			ContentType:      c.ContentType,
			Title:            c.Title,
			Slug:             c.Slug,
			ContentBody:      c.ContentBody,
			Excerpt:          c.Excerpt,
			FeaturedImageURL: c.FeaturedImageURL,
			PublishedAt:      c.PublishedAt,
		})
	}
	return out
}

func siteGlobalContent(entries []domain.GlobalContent) domain.SiteGlobalContent {
	var gc domain.SiteGlobalContent
	for _, e := range entries {
		if !e.IsPublished {
			continue
		}
		body := unwrapHTML(e.ContentBody)
		if body == "" {
			continue
		}

		switch e.ContentType {
		case "header":
			gc.Header = &body
		case "footer":
			gc.Footer = &body
		case "privacy_policy":
			gc.PrivacyPolicy = &body
		case "terms_of_service":
			gc.TermsOfService = &body
		case "cookie_policy":
			gc.CookiePolicy = &body
		case "complaints_procedure":
			gc.ComplaintsProc = &body
		}
	}
	return gc
}

// unwrapHTML returns the html field of bodies stored as {"html": "..."}
// and any other body unchanged.
func unwrapHTML(body string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") {
		return body
	}

	var wrapped struct {
		HTML *string `json:"html"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapped); err != nil || wrapped.HTML == nil {
		return body
	}
	return *wrapped.HTML
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
