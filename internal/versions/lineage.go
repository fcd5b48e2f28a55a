package versions

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
)

// LineageRef is the identity pair of an existing child row.
type LineageRef struct {
	ID        uuid.UUID
	LineageID uuid.UUID
}

// LineageMap decides, for each incoming item of a full-replace, whether it
// continues an existing lineage or starts a new one. Items are matched by the
// caller-supplied key against both row ids and lineage ids of the current
// rows. A lineage is handed out at most once per replace.
type LineageMap struct {
	byKey   map[string]uuid.UUID
	claimed map[uuid.UUID]bool
}

// NewLineageMap indexes the rows being replaced.
func NewLineageMap(existing []LineageRef) *LineageMap {
	m := &LineageMap{
		byKey:   make(map[string]uuid.UUID, len(existing)*2),
		claimed: make(map[uuid.UUID]bool, len(existing)),
	}
	for _, ref := range existing {
		m.byKey[ref.ID.String()] = ref.LineageID
		m.byKey[ref.LineageID.String()] = ref.LineageID
	}
	return m
}

// Resolve returns the preserved lineage for key, or a freshly minted one when
// the key is empty, unknown, or its lineage was already claimed.
func (m *LineageMap) Resolve(key string, ids IDSource) uuid.UUID {
	key = strings.ToLower(strings.TrimSpace(key))
	if key != "" {
		if lineage, ok := m.byKey[key]; ok && !m.claimed[lineage] {
			m.claimed[lineage] = true
			return lineage
		}
	}
	return ids.NewID()
}

// ReplaceLineage resolves a single incoming key against existing rows.
func ReplaceLineage(existing []LineageRef, incomingKey string, ids IDSource) uuid.UUID {
	return NewLineageMap(existing).Resolve(incomingKey, ids)
}

// MaterialRefs extracts identity pairs from material rows.
func MaterialRefs(rows []models.VersionMaterial) []LineageRef {
	out := make([]LineageRef, len(rows))
	for i, r := range rows {
		out[i] = LineageRef{ID: r.ID, LineageID: r.LineageID}
	}
	return out
}

// SupplyNodeRefs extracts identity pairs from supply node rows.
func SupplyNodeRefs(rows []models.VersionSupplyNode) []LineageRef {
	out := make([]LineageRef, len(rows))
	for i, r := range rows {
		out[i] = LineageRef{ID: r.ID, LineageID: r.LineageID}
	}
	return out
}

// CertificateRefs extracts identity pairs from certificate rows.
func CertificateRefs(rows []models.VersionCertificate) []LineageRef {
	out := make([]LineageRef, len(rows))
	for i, r := range rows {
		out[i] = LineageRef{ID: r.ID, LineageID: r.LineageID}
	}
	return out
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyUUID(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
