package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionSale       TransactionType = "sale"
	TransactionLet        TransactionType = "let"
	TransactionCommercial TransactionType = "commercial"
)

type PropertyStatus string

const (
	PropertyAvailable  PropertyStatus = "available"
	PropertyUnderOffer PropertyStatus = "under_offer"
	PropertySold       PropertyStatus = "sold"
	PropertyLet        PropertyStatus = "let"
)

type Address struct {
	Line1          string `json:"line1"`
	Line2          string `json:"line2,omitempty"`
	Line3          string `json:"line3,omitempty"`
	Line4          string `json:"line4,omitempty"`
	City           string `json:"city"`
	County         string `json:"county,omitempty"`
	Postcode       string `json:"postcode"`
	Country        string `json:"country"`
	DisplayAddress string `json:"displayAddress"`
}

// GeoPoint is a WGS84 coordinate stored as a PostGIS point.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

type Property struct {
	ID              uuid.UUID
	AgentID         uuid.UUID
	ExternalID      string
	TransactionType TransactionType
	Title           string
	Description     *string
	Price           float64
	Bedrooms        int
	Bathrooms       int
	PropertyType    string
	Address         Address
	Postcode        string
	Location        *GeoPoint
	Features        []string
	Status          PropertyStatus
	IsFeatured      bool
	IsHidden        bool
	RawData         json.RawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PropertyRemoval reports what a soft delete found.
type PropertyRemoval struct {
	Found   bool
	Changed bool
	AgentID uuid.UUID
}

// PropertyUpsert identifies the stored row. AgentID is the owner on record,
// which on update may differ from the agent the caller resolved.
type PropertyUpsert struct {
	ID       uuid.UUID `db:"id"`
	AgentID  uuid.UUID `db:"agent_id"`
	Inserted bool      `db:"inserted"`
}
