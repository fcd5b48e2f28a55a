package certificates

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
)

// CreateInput holds a new custom definition.
type CreateInput struct {
	Name        string
	Issuer      *string
	Description *string
}

// UpdateInput holds a partial edit. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Issuer      *string
	Description *string
}

// DefinitionDTO is the API view of a catalogue entry.
type DefinitionDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Issuer      *string   `json:"issuer,omitempty"`
	Description *string   `json:"description,omitempty"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func mapDefinition(d models.CertificateDefinition) DefinitionDTO {
	return DefinitionDTO{
		ID:          d.ID,
		Name:        d.Name,
		Issuer:      d.Issuer,
		Description: d.Description,
		IsSystem:    d.TenantID == nil,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
