package domain

import (
	"time"

	"github.com/google/uuid"
)

const TenantStatusActive = "active"

// Tenant is an agent row together with its profile. Only what builds and
// property ownership need is loaded.
type Tenant struct {
	ID             uuid.UUID
	Subdomain      string
	Status         string
	BranchID       *string
	Bio            *string
	Qualifications []string
	SocialLinks    map[string]string
	GooglePlaceID  *string
	FirstName      *string
	LastName       *string
	Email          *string
	Phone          *string
	AvatarURL      *string
	CreatedAt      time.Time
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
