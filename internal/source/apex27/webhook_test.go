package apex27

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsites/internal/domain"
	"agentsites/testdata/utils"
)

const sampleListing = `{
	"id": 4521,
	"branch": {"id": 12, "name": "Hove"},
	"address1": "12 Church Road",
	"city": "Hove",
	"postalCode": "BN3 2AA",
	"country": "GB",
	"displayAddress": "Church Road, Hove",
	"price": "450000",
	"transactionType": "sale",
	"status": "Available",
	"saleProgression": "SSTC",
	"propertyType": "Flat",
	"bedrooms": 2,
	"bathrooms": 1,
	"bullets": ["Sea views"],
	"heatingFeatures": ["Gas central heating"],
	"latitude": 50.827,
	"longitude": -0.168,
	"featured": true,
	"exportable": true,
	"vendorNotes": "kept in raw only"
}`

func TestParseWebhook_Create(t *testing.T) {
	event, err := ParseWebhook([]byte(`{"action":"create","listing":` + sampleListing + `}`))
	require.NoError(t, err)

	assert.Equal(t, domain.ListingCreate, event.Action)
	l := event.Listing
	assert.Equal(t, "4521", l.ExternalID)
	assert.Equal(t, "12", l.BranchID)
	assert.Equal(t, "Hove", l.BranchName)
	assert.Equal(t, "450000", l.Price)
	assert.Equal(t, "BN3 2AA", l.Address.Postcode)
	assert.Equal(t, "Church Road, Hove", l.Address.DisplayAddress)
	require.NotNil(t, l.SaleProgression)
	assert.Equal(t, "SSTC", *l.SaleProgression)
	require.NotNil(t, l.Latitude)
	assert.InDelta(t, 50.827, *l.Latitude, 1e-9)
	require.NotNil(t, l.Exportable)
	assert.True(t, *l.Exportable)
	assert.Contains(t, string(l.Raw), "vendorNotes")
}

func TestParseWebhook_ActionIsCaseInsensitive(t *testing.T) {
	event, err := ParseWebhook([]byte(`{"action":"DELETE","listing":` + sampleListing + `}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ListingDelete, event.Action)
}

func TestParseWebhook_PriceAcceptsNumbersAndNull(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"string", `"450000"`, "450000"},
		{"integer", `450000`, "450000"},
		{"decimal", `1250.50`, "1250.50"},
		{"null", `null`, ""},
		{"boolean", `true`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"action":"update","listing":{"id":1,"branch":{"id":5},"price":` + tt.price + `}}`
			event, err := ParseWebhook([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Listing.Price)
		})
	}
}

func TestParseWebhook_DeleteWithoutBranch(t *testing.T) {
	event, err := ParseWebhook([]byte(`{"action":"delete","listing":{"id":12345}}`))
	require.NoError(t, err)

	assert.Equal(t, domain.ListingDelete, event.Action)
	assert.Equal(t, "12345", event.Listing.ExternalID)
	assert.Empty(t, event.Listing.BranchID)
}

func TestParseWebhook_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"malformed json", `{"action":`, ErrInvalidPayload},
		{"missing action", `{"listing":` + sampleListing + `}`, ErrInvalidPayload},
		{"missing listing", `{"action":"create"}`, ErrInvalidPayload},
		{"unknown action", `{"action":"archive","listing":` + sampleListing + `}`, ErrUnknownAction},
		{"missing listing id", `{"action":"update","listing":{"branch":{"id":1}}}`, ErrInvalidPayload},
		{"update without branch", `{"action":"update","listing":{"id":7}}`, ErrInvalidPayload},
		{"create without branch", `{"action":"create","listing":{"id":7}}`, ErrInvalidPayload},
		{"delete without id", `{"action":"delete","listing":{}}`, ErrInvalidPayload},
		{"wrong field type", `{"action":"update","listing":{"id":"seven","branch":{"id":1}}}`, ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWebhook([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeListings_RejectsInvalidEntries(t *testing.T) {
	body := `[` + sampleListing + `, {"id": 0, "branch": {"id": 3}}, {"id": 9}]`

	listings, rejected, err := DecodeListings([]byte(body))
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Len(t, rejected, 2)
	assert.ErrorIs(t, rejected[1], ErrInvalidPayload)
	assert.ErrorIs(t, rejected[2], ErrInvalidPayload)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"action":"create"}`)
	sig := utils.SignHMAC(body, "topsecret")

	assert.True(t, VerifySignature(body, sig, "topsecret"))
	assert.True(t, VerifySignature(body, "sha256="+sig, "topsecret"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{"action":"delete"}`), sig, "topsecret"))
	assert.False(t, VerifySignature(body, "not-hex", "topsecret"))
	assert.False(t, VerifySignature(body, "", "topsecret"))
}
