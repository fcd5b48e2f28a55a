package bigquery

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/tracebridge-backend/pkg/config"
)

func TestClientOptionsPrioritizesJSON(t *testing.T) {
	opts := clientOptions(config.GCPConfig{
		CredentialsJSON:        `{"dummy": "value"}`,
		ApplicationCredentials: "/tmp/creds",
	})
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
}

func TestClientOptionsEmpty(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected no options, got %d", len(opts))
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		gcp  config.GCPConfig
		cfg  config.BigQueryConfig
		want error
	}{
		{"project", config.GCPConfig{}, config.BigQueryConfig{Dataset: "tb", AuditTable: "audit"}, errProjectIDRequired},
		{"dataset", config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{AuditTable: "audit"}, errDatasetRequired},
		{"table", config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "tb", AuditTable: " "}, errTableNameRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewClient(ctx, tc.gcp, tc.cfg, nil); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNilClientIsNotInitialized(t *testing.T) {
	var c *Client
	if err := c.InsertAudit(context.Background(), struct{}{}); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&googleapi.Error{Code: http.StatusNotFound}) {
		t.Fatalf("expected 404 to be not found")
	}
	if isNotFound(errors.New("boom")) {
		t.Fatalf("plain error is not a 404")
	}
}

func TestDescribeNamesMissingResource(t *testing.T) {
	err := describe("table", "audit_events", &googleapi.Error{Code: http.StatusNotFound})
	if err == nil || err.Error() != `table "audit_events" does not exist` {
		t.Fatalf("unexpected error %v", err)
	}
	wrapped := describe("dataset", "tb", &googleapi.Error{Code: http.StatusForbidden})
	var apiErr *googleapi.Error
	if !errors.As(wrapped, &apiErr) {
		t.Fatalf("expected api error to stay wrapped, got %v", wrapped)
	}
}

func TestNilClientEnsureAndPing(t *testing.T) {
	var c *Client
	if err := c.EnsureAuditTable(context.Background(), nil, "occurred_at"); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}
