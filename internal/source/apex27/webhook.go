package apex27

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"agentsites/internal/domain"
)

var (
	ErrUnknownAction  = errors.New("unknown webhook action")
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

var validate = validator.New()

// ParseWebhook decodes a listing webhook body into a domain event. The
// listing bytes are kept verbatim on the event.
func ParseWebhook(body []byte) (*domain.ListingEvent, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	action := domain.ListingAction(strings.ToLower(payload.Action))
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, payload.Action)
	}

	listing, err := decodeListing(payload.Listing)
	if err != nil {
		return nil, err
	}
	// Deletes are keyed on the listing id alone.
	if action != domain.ListingDelete {
		if err := requireBranch(listing); err != nil {
			return nil, err
		}
	}

	return &domain.ListingEvent{
		Action:  action,
		Listing: listing.ToDomain(payload.Listing),
	}, nil
}

// DecodeListings splits a listings page into validated domain listings.
// Entries that fail validation are returned in rejected by index.
func DecodeListings(body []byte) ([]domain.Listing, map[int]error, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode listings: %w", err)
	}

	listings := make([]domain.Listing, 0, len(raws))
	rejected := make(map[int]error)
	for i, raw := range raws {
		l, err := decodeListing(raw)
		if err == nil {
			err = requireBranch(l)
		}
		if err != nil {
			rejected[i] = err
			continue
		}
		listings = append(listings, l.ToDomain(raw))
	}
	return listings, rejected, nil
}

func decodeListing(raw json.RawMessage) (*Listing, error) {
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("%w: listing: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(&l); err != nil {
		return nil, fmt.Errorf("%w: listing: %v", ErrInvalidPayload, err)
	}
	return &l, nil
}

func requireBranch(l *Listing) error {
	if l.Branch == nil {
		return fmt.Errorf("%w: listing %d has no branch", ErrInvalidPayload, l.ID)
	}
	return nil
}

func (l *Listing) ToDomain(raw json.RawMessage) domain.Listing {
	out := domain.Listing{
		ExternalID:      strconv.FormatInt(l.ID, 10),
		TransactionType: l.TransactionType,
		Status:          l.Status,
		SaleProgression: l.SaleProgression,
		Price:           string(l.Price),
		Bedrooms:        l.Bedrooms,
		Bathrooms:       l.Bathrooms,
		PropertyType:    l.PropertyType,
		Address: domain.Address{
			Line1:          l.Address1,
			Line2:          l.Address2,
			Line3:          l.Address3,
			Line4:          l.Address4,
			City:           l.City,
			County:         l.County,
			Postcode:       l.PostalCode,
			Country:        l.Country,
			DisplayAddress: l.DisplayAddress,
		},
		Summary:       l.Summary,
		Description:   l.Description,
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		Bullets:       l.Bullets,
		Accessibility: l.AccessibilityFeatures,
		Heating:       l.HeatingFeatures,
		Parking:       l.ParkingFeatures,
		OutsideSpace:  l.OutsideSpaceFeatures,
		Featured:      l.Featured,
		Exportable:    l.Exportable,
		Raw:           append(json.RawMessage(nil), raw...),
	}
	if l.Branch != nil {
		out.BranchID = strconv.FormatInt(l.Branch.ID, 10)
		out.BranchName = l.Branch.Name
	}
	return out
}

// VerifySignature checks a hex encoded HMAC-SHA256 of body.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
