package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncStats holds counts for a batch property sync.
type SyncStats struct {
	Total    int           `json:"total"`
	Synced   int           `json:"synced"`
	Skipped  int           `json:"skipped"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"-"`
}

// SyncOutcome is the result of reconciling one listing event.
type SyncOutcome struct {
	Success    bool       `json:"success"`
	Skipped    bool       `json:"skipped,omitempty"`
	Message    string     `json:"message"`
	PropertyID *uuid.UUID `json:"propertyId,omitempty"`
	ListingID  string     `json:"listingId"`
	BranchID   string     `json:"branchId,omitempty"`
}

type SyncState struct {
	ID            int64     `db:"id"`
	SourceID      string    `db:"source_id"`
	LastSyncedAt  time.Time `db:"last_synced_at"`
	LastListingID string    `db:"last_listing_id"`
	TotalSynced   int64     `db:"total_synced"`
}
