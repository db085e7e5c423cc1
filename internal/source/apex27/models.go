package apex27

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// WebhookPayload is the body Apex27 posts for listing events. Listing stays
// raw until the action is known so the original bytes can be kept.
type WebhookPayload struct {
	Action  string          `json:"action" validate:"required"`
	Listing json.RawMessage `json:"listing" validate:"required"`
}

type Branch struct {
	ID   int64  `json:"id" validate:"gt=0"`
	Name string `json:"name"`
}

// Listing mirrors the Apex27 listing resource. Only the fields the sync
// reads are declared.
type Listing struct {
	ID                    int64    `json:"id" validate:"gt=0"`
	Branch                *Branch  `json:"branch"`
	Address1              string   `json:"address1"`
	Address2              string   `json:"address2"`
	Address3              string   `json:"address3"`
	Address4              string   `json:"address4"`
	City                  string   `json:"city"`
	County                string   `json:"county"`
	PostalCode            string   `json:"postalCode"`
	Country               string   `json:"country"`
	DisplayAddress        string   `json:"displayAddress"`
	Summary               *string  `json:"summary"`
	Description           *string  `json:"description"`
	Bullets               []string `json:"bullets"`
	Price                 Price    `json:"price"`
	TransactionType       string   `json:"transactionType"`
	Status                string   `json:"status"`
	SaleProgression       *string  `json:"saleProgression"`
	PropertyType          string   `json:"propertyType"`
	Bedrooms              int      `json:"bedrooms"`
	Bathrooms             int      `json:"bathrooms"`
	AccessibilityFeatures []string `json:"accessibilityFeatures"`
	HeatingFeatures       []string `json:"heatingFeatures"`
	ParkingFeatures       []string `json:"parkingFeatures"`
	OutsideSpaceFeatures  []string `json:"outsideSpaceFeatures"`
	Latitude              *float64 `json:"latitude"`
	Longitude             *float64 `json:"longitude"`
	Featured              bool     `json:"featured"`
	Exportable            *bool    `json:"exportable"`
}

// Price is sent as a string by some Apex27 endpoints and as a number by
// others. Null and any other JSON type decode to "".
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*p = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(s)
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			*p = ""
			return nil
		}
		*p = Price(data)
	}
	return nil
}
