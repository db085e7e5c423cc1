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

type PropertyStore struct {
	db *sqlx.DB
}

func NewPropertyStore(db *sqlx.DB) *PropertyStore {
	return &PropertyStore{db: db}
}

// Upsert inserts or updates a property keyed on its Apex27 id. The owning
// agent is fixed at insert time and never reassigned.
func (s *PropertyStore) Upsert(ctx context.Context, p *domain.Property) (*domain.PropertyUpsert, error) {
	address, err := json.Marshal(p.Address)
	if err != nil {
		return nil, fmt.Errorf("encode address: %w", err)
	}

	var raw *string
	if len(p.RawData) > 0 {
		r := string(p.RawData)
		raw = &r
	}

	var lat, lng *float64
	if p.Location != nil {
		lat, lng = &p.Location.Latitude, &p.Location.Longitude
	}

	features := p.Features
	if features == nil {
		features = []string{}
	}

	query := `
		INSERT INTO properties (
			agent_id, apex27_id, transaction_type, title, description, price,
			bedrooms, bathrooms, property_type, address, postcode, location,
			features, status, is_featured, is_hidden, raw_data
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11,
			CASE WHEN $12::float8 IS NULL OR $13::float8 IS NULL THEN NULL
				ELSE ST_SetSRID(ST_MakePoint($13, $12), 4326)::geography END,
			$14, $15, $16, $17, $18::jsonb
		)
		ON CONFLICT (apex27_id) DO UPDATE SET
			transaction_type = EXCLUDED.transaction_type,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			property_type = EXCLUDED.property_type,
			address = EXCLUDED.address,
			postcode = EXCLUDED.postcode,
			location = EXCLUDED.location,
			features = EXCLUDED.features,
			status = EXCLUDED.status,
			is_featured = EXCLUDED.is_featured,
			is_hidden = EXCLUDED.is_hidden,
			raw_data = EXCLUDED.raw_data,
			updated_at = NOW()
		RETURNING id, agent_id, (xmax = 0) AS inserted`

	var res domain.PropertyUpsert
	err = GetExecutor(ctx, s.db).GetContext(ctx, &res, query,
		p.AgentID,
		p.ExternalID,
		string(p.TransactionType),
		p.Title,
		p.Description,
		p.Price,
		p.Bedrooms,
		p.Bathrooms,
		p.PropertyType,
		string(address),
		p.Postcode,
		lat,
		lng,
		pq.Array(features),
		string(p.Status),
		p.IsFeatured,
		p.IsHidden,
		raw,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SoftDelete marks a property sold. Deleting a missing or already sold
// property succeeds without changes.
func (s *PropertyStore) SoftDelete(ctx context.Context, externalID string) (*domain.PropertyRemoval, error) {
	query := `
		WITH target AS (
			SELECT id, agent_id, status FROM properties WHERE apex27_id = $1
		), updated AS (
			UPDATE properties p
			SET status = 'sold', updated_at = NOW()
			FROM target
			WHERE p.id = target.id AND target.status <> 'sold'
			RETURNING p.id
		)
		SELECT
			EXISTS (SELECT 1 FROM target) AS found,
			EXISTS (SELECT 1 FROM updated) AS changed,
			(SELECT agent_id FROM target) AS agent_id`

	var row struct {
		Found   bool          `db:"found"`
		Changed bool          `db:"changed"`
		AgentID uuid.NullUUID `db:"agent_id"`
	}
	if err := GetExecutor(ctx, s.db).GetContext(ctx, &row, query, externalID); err != nil {
		return nil, err
	}

	return &domain.PropertyRemoval{
		Found:   row.Found,
		Changed: row.Changed,
		AgentID: row.AgentID.UUID,
	}, nil
}

type propertyRow struct {
	ID              uuid.UUID      `db:"id"`
	AgentID         uuid.UUID      `db:"agent_id"`
	ExternalID      string         `db:"apex27_id"`
	TransactionType string         `db:"transaction_type"`
	Title           string         `db:"title"`
	Description     *string        `db:"description"`
	Price           float64        `db:"price"`
	Bedrooms        int            `db:"bedrooms"`
	Bathrooms       int            `db:"bathrooms"`
	PropertyType    *string        `db:"property_type"`
	Address         []byte         `db:"address"`
	Postcode        *string        `db:"postcode"`
	Latitude        *float64       `db:"latitude"`
	Longitude       *float64       `db:"longitude"`
	Features        pq.StringArray `db:"features"`
	Status          string         `db:"status"`
	IsFeatured      bool           `db:"is_featured"`
	IsHidden        bool           `db:"is_hidden"`
	RawData         []byte         `db:"raw_data"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// GetByExternalID returns nil when no property carries the Apex27 id.
func (s *PropertyStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Property, error) {
	query := `
		SELECT id, agent_id, apex27_id, transaction_type, title, description,
			price::float8 AS price, bedrooms, bathrooms, property_type, address,
			postcode, ST_Y(location::geometry) AS latitude,
			ST_X(location::geometry) AS longitude, features, status,
			is_featured, is_hidden, raw_data, created_at, updated_at
		FROM properties
		WHERE apex27_id = $1`

	var row propertyRow
	err := GetExecutor(ctx, s.db).GetContext(ctx, &row, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p := &domain.Property{
		ID:              row.ID,
		AgentID:         row.AgentID,
		ExternalID:      row.ExternalID,
		TransactionType: domain.TransactionType(row.TransactionType),
		Title:           row.Title,
		Description:     row.Description,
		Price:           row.Price,
		Bedrooms:        row.Bedrooms,
		Bathrooms:       row.Bathrooms,
		Features:        []string(row.Features),
		Status:          domain.PropertyStatus(row.Status),
		IsFeatured:      row.IsFeatured,
		IsHidden:        row.IsHidden,
		RawData:         row.RawData,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.PropertyType != nil {
		p.PropertyType = *row.PropertyType
	}
	if row.Postcode != nil {
		p.Postcode = *row.Postcode
	}
	if row.Latitude != nil && row.Longitude != nil {
		p.Location = &domain.GeoPoint{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	if len(row.Address) > 0 {
		if err := json.Unmarshal(row.Address, &p.Address); err != nil {
			return nil, fmt.Errorf("decode address for property %s: %w", row.ID, err)
		}
	}
	return p, nil
}
