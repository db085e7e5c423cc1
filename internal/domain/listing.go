package domain

import "encoding/json"

// ListingAction is the verb of an inbound listing webhook.
type ListingAction string

const (
	ListingCreate ListingAction = "create"
	ListingUpdate ListingAction = "update"
	ListingDelete ListingAction = "delete"
)

func (a ListingAction) Valid() bool {
	switch a {
	case ListingCreate, ListingUpdate, ListingDelete:
		return true
	}
	return false
}

// Listing is the validated internal form of an upstream listing. Raw keeps
// the payload exactly as received and is only ever stored, never re-read.
type Listing struct {
	ExternalID      string
	BranchID        string
	BranchName      string
	TransactionType string
	Status          string
	SaleProgression *string
	Price           string
	Bedrooms        int
	Bathrooms       int
	PropertyType    string
	Address         Address
	Summary         *string
	Description     *string
	Latitude        *float64
	Longitude       *float64
	Bullets         []string
	Accessibility   []string
	Heating         []string
	Parking         []string
	OutsideSpace    []string
	Featured        bool
	Exportable      *bool
	Raw             json.RawMessage
}

type ListingEvent struct {
	Action  ListingAction
	Listing Listing
}
