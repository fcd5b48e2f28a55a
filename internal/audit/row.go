package audit

import (
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
)

// Row is the BigQuery shape of an audit entry. The event id doubles as the
// streaming insert id so redeliveries are deduplicated.
type Row struct {
	EventID     string
	EventType   string
	ActorUserID string
	TenantID    string
	EntityType  string
	EntityID    string
	Action      string
	Changes     string
	OccurredAt  time.Time
}

// Save implements bigquery.ValueSaver.
func (r Row) Save() (map[string]bigquery.Value, string, error) {
	values := map[string]bigquery.Value{
		"event_id":    r.EventID,
		"event_type":  r.EventType,
		"entity_type": r.EntityType,
		"entity_id":   r.EntityID,
		"action":      r.Action,
		"occurred_at": r.OccurredAt,
	}
	if r.ActorUserID != "" {
		values["actor_user_id"] = r.ActorUserID
	}
	if r.TenantID != "" {
		values["tenant_id"] = r.TenantID
	}
	if r.Changes != "" {
		values["changes"] = r.Changes
	}
	return values, r.EventID, nil
}

func rowFromLog(entry models.AuditLog) Row {
	row := Row{
		EventID:    entry.EventID.String(),
		EventType:  entry.EventType,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID.String(),
		Action:     string(entry.Action),
		Changes:    string(entry.Changes),
		OccurredAt: entry.CreatedAt.UTC(),
	}
	if entry.ActorUserID != nil {
		row.ActorUserID = entry.ActorUserID.String()
	}
	if entry.TenantID != nil {
		row.TenantID = entry.TenantID.String()
	}
	return row
}

// PartitionField is the column the streamed audit table is partitioned by.
const PartitionField = "occurred_at"

// Schema matches the columns Row.Save emits.
func Schema() bigquery.Schema {
	str := func(name string, required bool) *bigquery.FieldSchema {
		return &bigquery.FieldSchema{Name: name, Type: bigquery.StringFieldType, Required: required}
	}
	return bigquery.Schema{
		str("event_id", true),
		str("event_type", true),
		str("actor_user_id", false),
		str("tenant_id", false),
		str("entity_type", true),
		str("entity_id", true),
		str("action", true),
		{Name: "changes", Type: bigquery.JSONFieldType},
		{Name: PartitionField, Type: bigquery.TimestampFieldType, Required: true},
	}
}
