package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"agentsites/internal/domain"
)

const tenantColumns = `
	a.id, a.subdomain, a.status, a.apex27_branch_id, a.bio, a.qualifications,
	a.social_media_links, a.google_place_id, a.created_at,
	p.first_name, p.last_name, p.email, p.phone, p.avatar_url`

type tenantRow struct {
	ID             uuid.UUID      `db:"id"`
	Subdomain      string         `db:"subdomain"`
	Status         string         `db:"status"`
	BranchID       *string        `db:"apex27_branch_id"`
	Bio            *string        `db:"bio"`
	Qualifications pq.StringArray `db:"qualifications"`
	SocialLinks    []byte         `db:"social_media_links"`
	GooglePlaceID  *string        `db:"google_place_id"`
	CreatedAt      time.Time      `db:"created_at"`
	FirstName      *string        `db:"first_name"`
	LastName       *string        `db:"last_name"`
	Email          *string        `db:"email"`
	Phone          *string        `db:"phone"`
	AvatarURL      *string        `db:"avatar_url"`
}

func (r *tenantRow) toDomain() (*domain.Tenant, error) {
	links := map[string]string{}
	if len(r.SocialLinks) > 0 {
		if err := json.Unmarshal(r.SocialLinks, &links); err != nil {
			return nil, fmt.Errorf("decode social links for agent %s: %w", r.ID, err)
		}
	}

	return &domain.Tenant{
		ID:             r.ID,
		Subdomain:      r.Subdomain,
		Status:         r.Status,
		BranchID:       r.BranchID,
		Bio:            r.Bio,
		Qualifications: []string(r.Qualifications),
		SocialLinks:    links,
		GooglePlaceID:  r.GooglePlaceID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Phone:          r.Phone,
		AvatarURL:      r.AvatarURL,
		CreatedAt:      r.CreatedAt,
	}, nil
}

type TenantStore struct {
	db *sqlx.DB
}

func NewTenantStore(db *sqlx.DB) *TenantStore {
	return &TenantStore{db: db}
}

// Get returns nil when no agent has the id.
func (s *TenantStore) Get(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM agents a
		LEFT JOIN profiles p ON p.id = a.user_id
		WHERE a.id = $1`

	return s.getOne(ctx, query, id)
}

// FindByBranchID maps an Apex27 branch to the agent that owns it.
func (s *TenantStore) FindByBranchID(ctx context.Context, branchID string) (*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM agents a
		LEFT JOIN profiles p ON p.id = a.user_id
		WHERE a.apex27_branch_id = $1`

	return s.getOne(ctx, query, branchID)
}

func (s *TenantStore) ListActive(ctx context.Context) ([]domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM agents a
		LEFT JOIN profiles p ON p.id = a.user_id
		WHERE a.status = 'active'
		ORDER BY a.created_at`

	var rows []tenantRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	tenants := make([]domain.Tenant, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, nil
}

func (s *TenantStore) getOne(ctx context.Context, query string, arg interface{}) (*domain.Tenant, error) {
	var row tenantRow
	err := s.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}
