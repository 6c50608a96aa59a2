package quota

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/usage"
	"gorm.io/gorm"
)

func setupQuotaTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:quota_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Provider{}, &models.UsageEvent{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func TestSnapshot_DerivesFromLedger(t *testing.T) {
	t.Parallel()

	conn := setupQuotaTestDB(t)
	ledger := usage.NewLedger(conn, nil)
	projector := NewProjector(conn, ledger, nil, time.Minute)
	ctx := context.Background()

	provider := models.Provider{ID: "prv_1", Name: "OpenRouter", Status: models.ProviderStatusActive, MonthlyQuota: 100}
	if errCreate := conn.Create(&provider).Error; errCreate != nil {
		t.Fatalf("seed provider: %v", errCreate)
	}
	now := time.Now().UTC()
	for _, cost := range []float64{10, 15} {
		if _, errRecord := ledger.Record(ctx, usage.Draft{ProviderID: "prv_1", Tokens: 100, Cost: cost, Timestamp: now.Add(-time.Hour)}); errRecord != nil {
			t.Fatalf("record usage: %v", errRecord)
		}
	}
	// Outside the monthly window; must not count.
	if _, errRecord := ledger.Record(ctx, usage.Draft{ProviderID: "prv_1", Tokens: 100, Cost: 50, Timestamp: now.AddDate(0, -2, 0)}); errRecord != nil {
		t.Fatalf("record usage: %v", errRecord)
	}

	snapshot, errSnap := projector.Snapshot(ctx, "prv_1")
	if errSnap != nil {
		t.Fatalf("snapshot: %v", errSnap)
	}
	if snapshot.Used != 25 || snapshot.Remaining != 75 || snapshot.Unlimited {
		t.Fatalf("snapshot = %+v, want used 25 remaining 75", snapshot)
	}
}

func TestSnapshot_CachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	conn := setupQuotaTestDB(t)
	ledger := usage.NewLedger(conn, nil)
	projector := NewProjector(conn, ledger, nil, time.Minute)
	ctx := context.Background()

	provider := models.Provider{ID: "prv_1", Name: "OpenRouter", Status: models.ProviderStatusActive, MonthlyQuota: 100}
	if errCreate := conn.Create(&provider).Error; errCreate != nil {
		t.Fatalf("seed provider: %v", errCreate)
	}

	first, errSnap := projector.Snapshot(ctx, "prv_1")
	if errSnap != nil {
		t.Fatalf("snapshot: %v", errSnap)
	}
	if first.Used != 0 {
		t.Fatalf("first snapshot used = %v, want 0", first.Used)
	}

	if _, errRecord := ledger.Record(ctx, usage.Draft{ProviderID: "prv_1", Tokens: 10, Cost: 5}); errRecord != nil {
		t.Fatalf("record usage: %v", errRecord)
	}

	// Still cached: the append above did not go through the invalidation
	// hook in this test.
	cached, errSnap := projector.Snapshot(ctx, "prv_1")
	if errSnap != nil {
		t.Fatalf("snapshot: %v", errSnap)
	}
	if cached.Used != 0 {
		t.Fatalf("cached snapshot used = %v, want 0", cached.Used)
	}

	projector.Invalidate("prv_1")
	fresh, errSnap := projector.Snapshot(ctx, "prv_1")
	if errSnap != nil {
		t.Fatalf("snapshot: %v", errSnap)
	}
	if fresh.Used != 5 {
		t.Fatalf("fresh snapshot used = %v, want 5", fresh.Used)
	}
}

func TestSnapshot_UnlimitedProvider(t *testing.T) {
	t.Parallel()

	conn := setupQuotaTestDB(t)
	ledger := usage.NewLedger(conn, nil)
	projector := NewProjector(conn, ledger, nil, time.Minute)
	ctx := context.Background()

	provider := models.Provider{ID: "prv_1", Name: "OpenRouter", Status: models.ProviderStatusActive, MonthlyQuota: 0}
	if errCreate := conn.Create(&provider).Error; errCreate != nil {
		t.Fatalf("seed provider: %v", errCreate)
	}

	snapshot, errSnap := projector.Snapshot(ctx, "prv_1")
	if errSnap != nil {
		t.Fatalf("snapshot: %v", errSnap)
	}
	if !snapshot.Unlimited || snapshot.Remaining != 0 {
		t.Fatalf("snapshot = %+v, want unlimited", snapshot)
	}
}

func TestSnapshot_UnknownProvider(t *testing.T) {
	t.Parallel()

	conn := setupQuotaTestDB(t)
	projector := NewProjector(conn, usage.NewLedger(conn, nil), nil, time.Minute)

	_, errSnap := projector.Snapshot(context.Background(), "prv_missing")
	if !errors.Is(errSnap, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", errSnap)
	}
}
