package connections

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// InitiateInput starts a connection either with a registered supplier handle or
// with an email invitation to an unregistered one.
type InitiateInput struct {
	TargetHandle    *string
	InviteEmail     *string
	Name            string
	Description     *string
	Note            *string
	ContactName     *string
	ContactEmail    *string
	ContactPhone    *string
	LocationCountry *string
}

// ReinviteInput overrides the stored email/note when set.
type ReinviteInput struct {
	Email *string
	Note  *string
}

// UpdateProfileInput carries the CRM fields a brand may edit.
type UpdateProfileInput struct {
	Name            *string
	Description     *string
	ContactName     *string
	ContactEmail    *string
	ContactPhone    *string
	LocationCountry *string
}

// ProfileDTO is the address-book view returned to brands.
type ProfileDTO struct {
	ID               uuid.UUID              `json:"id"`
	ConnectionID     uuid.UUID              `json:"connection_id"`
	TargetTenantID   *uuid.UUID             `json:"target_tenant_id,omitempty"`
	ConnectionStatus enums.ConnectionStatus `json:"connection_status"`
	Slug             *string                `json:"slug,omitempty"`
	RetryCount       int                    `json:"retry_count"`
	Name             string                 `json:"name"`
	Description      *string                `json:"description,omitempty"`
	ContactName      *string                `json:"contact_name,omitempty"`
	ContactEmail     *string                `json:"contact_email,omitempty"`
	ContactPhone     *string                `json:"contact_phone,omitempty"`
	LocationCountry  *string                `json:"location_country,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// ProfileList is a page of the address book.
type ProfileList struct {
	Profiles   []ProfileDTO `json:"profiles"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// ConnectionDTO is the supplier-facing view of a connection.
type ConnectionDTO struct {
	ID                uuid.UUID              `json:"id"`
	RequesterTenantID uuid.UUID              `json:"requester_tenant_id"`
	TargetTenantID    *uuid.UUID             `json:"target_tenant_id,omitempty"`
	Status            enums.ConnectionStatus `json:"status"`
	Note              *string                `json:"note,omitempty"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// IncomingConnection is a connection request addressed to the supplier.
type IncomingConnection struct {
	ConnectionID    uuid.UUID              `json:"connection_id"`
	RequesterID     uuid.UUID              `json:"requester_tenant_id"`
	RequesterName   string                 `json:"requester_name"`
	RequesterHandle string                 `json:"requester_handle"`
	Status          enums.ConnectionStatus `json:"status"`
	Note            *string                `json:"note,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// InviteDetails is what an invitee sees before registering.
type InviteDetails struct {
	ConnectionID    uuid.UUID `json:"connection_id"`
	BrandName       string    `json:"brand_name"`
	BrandHandle     string    `json:"brand_handle"`
	InvitationEmail *string   `json:"invitation_email,omitempty"`
	Note            *string   `json:"note,omitempty"`
}

// ProfileFromModel maps the gorm row.
func ProfileFromModel(p models.ConnectionProfile) ProfileDTO {
	return ProfileDTO{
		ID:               p.ID,
		ConnectionID:     p.ConnectionID,
		TargetTenantID:   p.TargetTenantID,
		ConnectionStatus: p.ConnectionStatus,
		Slug:             p.Slug,
		RetryCount:       p.RetryCount,
		Name:             p.Name,
		Description:      p.Description,
		ContactName:      p.ContactName,
		ContactEmail:     p.ContactEmail,
		ContactPhone:     p.ContactPhone,
		LocationCountry:  p.LocationCountry,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func connectionFromModel(c models.Connection) ConnectionDTO {
	return ConnectionDTO{
		ID:                c.ID,
		RequesterTenantID: c.RequesterTenantID,
		TargetTenantID:    c.TargetTenantID,
		Status:            c.Status,
		Note:              c.Note,
		UpdatedAt:         c.UpdatedAt,
	}
}

func incomingFromRow(r IncomingRow) IncomingConnection {
	return IncomingConnection(r)
}
