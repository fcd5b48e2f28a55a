package versions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() uuid.UUID {
	s.n++
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(s.n >> 8), byte(s.n)})
}

func sourceVersion() *models.ProductVersion {
	country := "PT"
	artifact := uuid.New()
	valid := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.ProductVersion{
		ID:                   uuid.New(),
		ProductID:            uuid.New(),
		VersionSequence:      1,
		Revision:             1,
		VersionName:          "v1",
		Status:               enums.VersionStatusApproved,
		ManufacturingCountry: &country,
		MassKg:               decimal.NewNullDecimal(decimal.RequireFromString("0.2500")),
		Materials: []models.VersionMaterial{
			{ID: uuid.New(), LineageID: uuid.New(), Position: 0, MaterialName: "Cotton", Percentage: decimal.NewNullDecimal(decimal.NewFromInt(95))},
			{ID: uuid.New(), LineageID: uuid.New(), Position: 1, MaterialName: "Elastane", Percentage: decimal.NewNullDecimal(decimal.NewFromInt(5))},
		},
		SupplyNodes: []models.VersionSupplyNode{
			{ID: uuid.New(), LineageID: uuid.New(), Role: "Spinning", CompanyName: "Fios Lda"},
		},
		Certificates: []models.VersionCertificate{
			{ID: uuid.New(), LineageID: uuid.New(), SourceArtifactID: &artifact, SnapshotName: "GOTS", ValidUntil: &valid},
		},
	}
}

func TestCloneNilSourceYieldsEmptyDraft(t *testing.T) {
	supplier := uuid.New()
	product := uuid.New()

	out := Clone(nil, CloneSpec{ProductID: product, Sequence: 1, SupplierID: &supplier}, &seqIDs{})

	assert.Equal(t, enums.VersionStatusDraft, out.Status)
	assert.Equal(t, product, out.ProductID)
	assert.Equal(t, 1, out.VersionSequence)
	assert.Equal(t, 0, out.Revision)
	assert.Equal(t, "v1", out.VersionName)
	assert.Equal(t, supplier, *out.SupplierTenantID)
	assert.Empty(t, out.Materials)
	assert.Empty(t, out.SupplyNodes)
	assert.Empty(t, out.Certificates)
	assert.False(t, out.MassKg.Valid)
}

func TestClonePreservesLineageAndArtifacts(t *testing.T) {
	src := sourceVersion()
	supplier := uuid.New()

	out := Clone(src, CloneSpec{ProductID: src.ProductID, Sequence: 2, Revision: 0, SupplierID: &supplier, Name: "Autumn"}, &seqIDs{})

	require.Equal(t, enums.VersionStatusDraft, out.Status)
	require.NotEqual(t, src.ID, out.ID)
	require.Equal(t, "Autumn", out.VersionName)
	require.Equal(t, 2, out.VersionSequence)
	require.True(t, out.MassKg.Decimal.Equal(src.MassKg.Decimal))
	require.Equal(t, "PT", *out.ManufacturingCountry)

	require.Len(t, out.Materials, 2)
	for i, m := range out.Materials {
		assert.Equal(t, src.Materials[i].LineageID, m.LineageID)
		assert.NotEqual(t, src.Materials[i].ID, m.ID)
		assert.Equal(t, out.ID, m.VersionID)
		assert.Equal(t, src.Materials[i].MaterialName, m.MaterialName)
		assert.Equal(t, src.Materials[i].Position, m.Position)
	}
	require.Len(t, out.SupplyNodes, 1)
	assert.Equal(t, src.SupplyNodes[0].LineageID, out.SupplyNodes[0].LineageID)

	require.Len(t, out.Certificates, 1)
	cert := out.Certificates[0]
	assert.Equal(t, src.Certificates[0].LineageID, cert.LineageID)
	assert.Equal(t, *src.Certificates[0].SourceArtifactID, *cert.SourceArtifactID)
	assert.Equal(t, *src.Certificates[0].ValidUntil, *cert.ValidUntil)
}

func TestCloneDoesNotAliasSource(t *testing.T) {
	src := sourceVersion()
	out := Clone(src, CloneSpec{ProductID: src.ProductID, Sequence: 1, Revision: 2}, &seqIDs{})

	*out.ManufacturingCountry = "ES"
	*out.Certificates[0].SourceArtifactID = uuid.Nil
	out.Materials[0].MaterialName = "Linen"

	assert.Equal(t, "PT", *src.ManufacturingCountry)
	assert.NotEqual(t, uuid.Nil, *src.Certificates[0].SourceArtifactID)
	assert.Equal(t, "Cotton", src.Materials[0].MaterialName)
	assert.Equal(t, enums.VersionStatusApproved, src.Status)
}

func TestCloneRevisionRowIDsAreUnique(t *testing.T) {
	src := sourceVersion()
	out := Clone(src, CloneSpec{ProductID: src.ProductID, Sequence: 1, Revision: 2}, &seqIDs{})

	seen := map[uuid.UUID]bool{out.ID: true}
	for _, m := range out.Materials {
		require.False(t, seen[m.ID])
		seen[m.ID] = true
	}
	for _, n := range out.SupplyNodes {
		require.False(t, seen[n.ID])
		seen[n.ID] = true
	}
	for _, c := range out.Certificates {
		require.False(t, seen[c.ID])
		seen[c.ID] = true
	}
}
