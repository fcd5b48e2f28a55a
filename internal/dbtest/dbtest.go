// Package dbtest opens throwaway sqlite databases carrying the full schema for
// repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/tracebridge-backend/pkg/db"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// Models lists every table the services touch.
func Models() []any {
	return []any{
		&models.Tenant{},
		&models.Connection{},
		&models.ConnectionProfile{},
		&models.Product{},
		&models.ProductVersion{},
		&models.VersionMaterial{},
		&models.VersionSupplyNode{},
		&models.VersionCertificate{},
		&models.CertificateDefinition{},
		&models.ContributionRequest{},
		&models.RequestComment{},
		&models.SupplierArtifact{},
		&models.AuditLog{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns a migrated in-memory database private to the test.
func Open(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:tb_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.FromConn(conn), conn
}

// SeedTenant inserts a tenant and returns it.
func SeedTenant(t testing.TB, conn *gorm.DB, handle, name string, tenantType enums.TenantType) models.Tenant {
	t.Helper()
	tenant := models.Tenant{
		ID:     uuid.New(),
		Handle: handle,
		Name:   name,
		Type:   tenantType,
	}
	if err := conn.Create(&tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}
