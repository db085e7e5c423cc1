package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"agentsites/internal/domain"
)

type ContentStore struct {
	db *sqlx.DB
}

func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{db: db}
}

// ListSiteContent returns the agent's approved and published submissions.
func (s *ContentStore) ListSiteContent(ctx context.Context, tenantID uuid.UUID) ([]domain.ContentItem, error) {
	query := `
		SELECT id, content_type, title, slug, content_body, excerpt,
			featured_image_url, status, published_at, reviewed_at
		FROM content_submissions
		WHERE agent_id = $1 AND status IN ('approved', 'published')
		ORDER BY published_at DESC NULLS LAST, reviewed_at DESC NULLS LAST`

	var items []domain.ContentItem
	err := s.db.SelectContext(ctx, &items, query, tenantID)
	return items, err
}

// GetFees returns nil when the agent has no fee structure row.
func (s *ContentStore) GetFees(ctx context.Context, tenantID uuid.UUID) (*string, error) {
	var body string
	err := s.db.GetContext(ctx, &body, `SELECT content_body FROM agent_fees WHERE agent_id = $1`, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &body, nil
}

func (s *ContentStore) ListPublishedGlobalContent(ctx context.Context) ([]domain.GlobalContent, error) {
	query := `
		SELECT content_type, content_body, is_published
		FROM global_content
		WHERE is_published = TRUE`

	var items []domain.GlobalContent
	err := s.db.SelectContext(ctx, &items, query)
	return items, err
}
