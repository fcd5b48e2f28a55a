package contributions

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tracebridge-backend/internal/versions"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// AssignInput names the supplier profile a product is sent to.
type AssignInput struct {
	ProfileID uuid.UUID
	DueDate   *time.Time
	Note      *string
}

// ActionInput is a supplier action with an optional note.
type ActionInput struct {
	Action enums.RequestAction
	Note   *string
}

// ReviewInput is the brand's decision on a submission.
type ReviewInput struct {
	Action  enums.ReviewAction
	Comment *string
}

// DraftInput carries a partial draft save. Nil scalars are left untouched. A
// nil collection is left untouched while an empty one clears it.
type DraftInput struct {
	ManufacturingCountry *string            `json:"manufacturing_country"`
	MassKg               *decimal.Decimal   `json:"mass_kg"`
	TotalCarbonFootprint *decimal.Decimal   `json:"total_carbon_footprint"`
	TotalEnergyMJ        *decimal.Decimal   `json:"total_energy_mj"`
	TotalWaterUsage      *decimal.Decimal   `json:"total_water_usage"`
	Materials            []MaterialInput    `json:"materials"`
	SupplyNodes          []SupplyNodeInput  `json:"supply_nodes"`
	Certificates         []CertificateInput `json:"certificates"`
}

// MaterialInput is one bill-of-materials line. ID, when set, is the row id or
// lineage id of the line it continues.
type MaterialInput struct {
	ID                         string           `json:"id"`
	MaterialName               string           `json:"material_name"`
	Percentage                 *decimal.Decimal `json:"percentage"`
	OriginCountry              *string          `json:"origin_country"`
	TransportMethod            *string          `json:"transport_method"`
	BatchNumber                *string          `json:"batch_number"`
	SourceMaterialDefinitionID *uuid.UUID       `json:"source_material_definition_id"`
}

// SupplyNodeInput is one supply-chain step.
type SupplyNodeInput struct {
	ID              string  `json:"id"`
	Role            string  `json:"role"`
	CompanyName     string  `json:"company_name"`
	LocationCountry *string `json:"location_country"`
}

// CertificateInput references either a file uploaded with the save
// (UploadRef) or a file already in the supplier's vault (ArtifactID).
type CertificateInput struct {
	ID                string     `json:"id"`
	CertificateTypeID *uuid.UUID `json:"certificate_type_id"`
	UploadRef         string     `json:"upload_ref"`
	ArtifactID        *uuid.UUID `json:"artifact_id"`
	Name              string     `json:"name"`
	ValidUntil        *time.Time `json:"valid_until"`
	ReferenceNumber   *string    `json:"reference_number"`
}

// Upload is a file part submitted alongside a draft save.
type Upload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// RequestDTO is the request header.
type RequestDTO struct {
	ID               uuid.UUID           `json:"id"`
	ConnectionID     uuid.UUID           `json:"connection_id"`
	ProductID        uuid.UUID           `json:"product_id"`
	BrandTenantID    uuid.UUID           `json:"brand_tenant_id"`
	SupplierTenantID uuid.UUID           `json:"supplier_tenant_id"`
	InitialVersionID uuid.UUID           `json:"initial_version_id"`
	CurrentVersionID uuid.UUID           `json:"current_version_id"`
	Status           enums.RequestStatus `json:"status"`
	DueDate          *time.Time          `json:"due_date,omitempty"`
	Note             *string             `json:"note,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// CommentDTO is one activity log entry.
type CommentDTO struct {
	ID             uuid.UUID         `json:"id"`
	AuthorUserID   *uuid.UUID        `json:"author_user_id,omitempty"`
	AuthorTenantID uuid.UUID         `json:"author_tenant_id"`
	Kind           enums.CommentKind `json:"kind"`
	Body           string            `json:"body"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ProductRef identifies the product a request is about.
type ProductRef struct {
	ID   uuid.UUID `json:"id"`
	SKU  string    `json:"sku"`
	Name string    `json:"name"`
}

// RequestDetail is the request view shared by brand and supplier. Payload is
// withheld until the supplier accepts.
type RequestDetail struct {
	Request  RequestDTO        `json:"request"`
	Product  ProductRef        `json:"product"`
	Version  versions.Summary  `json:"version"`
	Payload  *versions.Payload `json:"payload,omitempty"`
	Activity []CommentDTO      `json:"activity"`
}

// InboxItem is a row of the supplier inbox.
type InboxItem struct {
	RequestID        uuid.UUID           `json:"request_id"`
	ProductID        uuid.UUID           `json:"product_id"`
	ProductSKU       string              `json:"product_sku"`
	ProductName      string              `json:"product_name"`
	BrandTenantID    uuid.UUID           `json:"brand_tenant_id"`
	BrandName        string              `json:"brand_name"`
	CurrentVersionID uuid.UUID           `json:"current_version_id"`
	Status           enums.RequestStatus `json:"status"`
	DueDate          *time.Time          `json:"due_date,omitempty"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// InboxList is one page of the supplier inbox.
type InboxList struct {
	Items      []InboxItem `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// SupplierRef describes who is working on the latest version.
type SupplierRef struct {
	TenantID    *uuid.UUID `json:"tenant_id,omitempty"`
	ProfileID   uuid.UUID  `json:"profile_id"`
	ProfileName string     `json:"profile_name"`
	Slug        *string    `json:"slug,omitempty"`
}

// CollaborationStatus summarises where a product stands with its supplier.
type CollaborationStatus struct {
	ProductID     uuid.UUID         `json:"product_id"`
	LatestVersion *versions.Summary `json:"latest_version,omitempty"`
	Request       *RequestDTO       `json:"request,omitempty"`
	Supplier      *SupplierRef      `json:"supplier,omitempty"`
}

func requestFromModel(m models.ContributionRequest) RequestDTO {
	return RequestDTO{
		ID:               m.ID,
		ConnectionID:     m.ConnectionID,
		ProductID:        m.ProductID,
		BrandTenantID:    m.BrandTenantID,
		SupplierTenantID: m.SupplierTenantID,
		InitialVersionID: m.InitialVersionID,
		CurrentVersionID: m.CurrentVersionID,
		Status:           m.Status,
		DueDate:          m.DueDate,
		Note:             m.Note,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func commentFromModel(m models.RequestComment) CommentDTO {
	return CommentDTO{
		ID:             m.ID,
		AuthorUserID:   m.AuthorUserID,
		AuthorTenantID: m.AuthorTenantID,
		Kind:           m.Kind,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
	}
}

func inboxFromRow(r InboxRow) InboxItem {
	return InboxItem(r)
}
