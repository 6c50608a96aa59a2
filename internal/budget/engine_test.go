package budget

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/modelfleet/governd/internal/audit"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/toolmap"
	"github.com/modelfleet/governd/internal/usage"
	"gorm.io/gorm"
)

func setupEngineTest(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:budget_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(
		&models.Provider{}, &models.Model{}, &models.ToolMapping{},
		&models.UsageEvent{}, &models.BudgetAlert{}, &models.AuditEntry{},
	); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	recorder := audit.NewRecorder(conn)
	ledger := usage.NewLedger(conn, nil)
	mappings := toolmap.NewTable(conn, recorder)
	return NewEngine(conn, recorder, ledger, mappings), conn
}

func seedAlertProvider(t *testing.T, conn *gorm.DB) {
	t.Helper()
	provider := models.Provider{ID: "prv_1", Name: "OpenRouter", Status: models.ProviderStatusActive}
	if errCreate := conn.Create(&provider).Error; errCreate != nil {
		t.Fatalf("seed provider: %v", errCreate)
	}
}

func recordSpend(t *testing.T, ledger *usage.Ledger, modelID *string, cost float64, at time.Time) {
	t.Helper()
	if _, errRecord := ledger.Record(context.Background(), usage.Draft{
		ProviderID: "prv_1",
		ModelID:    modelID,
		Tokens:     100,
		Cost:       cost,
		Timestamp:  at,
	}); errRecord != nil {
		t.Fatalf("record usage: %v", errRecord)
	}
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)

	cases := []struct {
		name  string
		draft Draft
		want  error
	}{
		{"missing provider", Draft{Threshold: 10, Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"}}, models.ErrInvalidArgument},
		{"zero threshold", Draft{ProviderID: "prv_1", Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"}}, models.ErrInvalidArgument},
		{"bad period", Draft{ProviderID: "prv_1", Threshold: 10, Period: "hourly", Notify: []string{"ops@example.com"}}, models.ErrInvalidArgument},
		{"no destinations", Draft{ProviderID: "prv_1", Threshold: 10, Period: models.AlertPeriodDaily}, models.ErrInvalidArgument},
		{"dead provider", Draft{ProviderID: "prv_missing", Threshold: 10, Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"}}, models.ErrInvalidReference},
	}
	for _, tc := range cases {
		if _, errCreate := engine.Create(conn, "admin-1", tc.draft); !errors.Is(errCreate, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, errCreate, tc.want)
		}
	}

	badModel := "mdl_missing"
	if _, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1", ModelID: &badModel, Threshold: 10,
		Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"},
	}); !errors.Is(errCreate, models.ErrInvalidReference) {
		t.Fatalf("dead model err = %v, want ErrInvalidReference", errCreate)
	}
}

func TestCreate_PersistsAndAudits(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)

	alert, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1",
		Threshold:  100,
		Period:     models.AlertPeriodMonthly,
		Notify:     []string{"ops@example.com", "slack:#spend"},
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if alert.Status != models.AlertStatusActive {
		t.Fatalf("status = %q, want active default", alert.Status)
	}
	if destinations := alert.NotifyDestinations(); len(destinations) != 2 {
		t.Fatalf("notify targets = %v, want 2", destinations)
	}

	var entry models.AuditEntry
	if errFind := conn.First(&entry, "entity_id = ?", alert.ID).Error; errFind != nil {
		t.Fatalf("load audit entry: %v", errFind)
	}
	if entry.Action != models.AuditActionCreate || entry.EntityType != models.EntityTypeBudget {
		t.Fatalf("audit entry = %s:%s, want create:budget", entry.Action, entry.EntityType)
	}
}

func TestUpdate_ClearsScopeWithEmptyString(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)
	model := models.Model{ID: "mdl_1", ProviderID: "prv_1", Name: "gpt-x", ContextWindow: 1000}
	if errCreate := conn.Create(&model).Error; errCreate != nil {
		t.Fatalf("seed model: %v", errCreate)
	}

	modelID := "mdl_1"
	alert, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1", ModelID: &modelID, Threshold: 10,
		Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"},
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if alert.ModelID == nil {
		t.Fatalf("model scope not stored")
	}

	none := ""
	updated, errUpdate := engine.Update(conn, "admin-1", alert.ID, Patch{ModelID: &none})
	if errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if updated.ModelID != nil {
		t.Fatalf("model scope = %v, want cleared", *updated.ModelID)
	}
}

func TestUpdate_RejectsUnknownModelScope(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)

	alert, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1", Threshold: 10,
		Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"},
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	badModel := "mdl_missing"
	if _, errUpdate := engine.Update(conn, "admin-1", alert.ID, Patch{ModelID: &badModel}); !errors.Is(errUpdate, models.ErrInvalidReference) {
		t.Fatalf("err = %v, want ErrInvalidReference", errUpdate)
	}

	var reloaded models.BudgetAlert
	if errFind := conn.First(&reloaded, "id = ?", alert.ID).Error; errFind != nil {
		t.Fatalf("reload alert: %v", errFind)
	}
	if reloaded.ModelID != nil {
		t.Fatalf("model scope = %v, want still unscoped", *reloaded.ModelID)
	}
	var audits int64
	if errCount := conn.Model(&models.AuditEntry{}).Where("entity_id = ?", alert.ID).Count(&audits).Error; errCount != nil {
		t.Fatalf("count audits: %v", errCount)
	}
	if audits != 1 {
		t.Fatalf("audit entries = %d, want only the create", audits)
	}
}

func TestEvaluate_ProviderScope(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)

	now := time.Now().UTC()
	for _, cost := range []float64{10, 15, 20} {
		recordSpend(t, engine.ledger, nil, cost, now.Add(-time.Hour))
	}
	// Outside the daily window.
	recordSpend(t, engine.ledger, nil, 100, now.AddDate(0, 0, -3))

	alert, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1", Threshold: 40,
		Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"},
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	evaluation, errEval := engine.Evaluate(context.Background(), alert)
	if errEval != nil {
		t.Fatalf("evaluate: %v", errEval)
	}
	if evaluation.Spent != 45 || !evaluation.Breached {
		t.Fatalf("evaluation = %+v, want spent 45 breached", evaluation)
	}

	raise := 50.0
	raised, errUpdate := engine.Update(conn, "admin-1", alert.ID, Patch{Threshold: &raise})
	if errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	evaluation, errEval = engine.Evaluate(context.Background(), raised)
	if errEval != nil {
		t.Fatalf("evaluate: %v", errEval)
	}
	if evaluation.Breached {
		t.Fatalf("evaluation = %+v, want not breached at threshold 50", evaluation)
	}
}

func TestEvaluate_SpendAtThresholdBreaches(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)

	recordSpend(t, engine.ledger, nil, 40, time.Now().UTC().Add(-time.Hour))
	alert, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1", Threshold: 40,
		Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"},
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	evaluation, errEval := engine.Evaluate(context.Background(), alert)
	if errEval != nil {
		t.Fatalf("evaluate: %v", errEval)
	}
	if !evaluation.Breached {
		t.Fatalf("spend equal to threshold must breach, got %+v", evaluation)
	}
}

func TestEvaluate_ModelScopeFiltersSpend(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)
	model := models.Model{ID: "mdl_1", ProviderID: "prv_1", Name: "gpt-x", ContextWindow: 1000}
	if errCreate := conn.Create(&model).Error; errCreate != nil {
		t.Fatalf("seed model: %v", errCreate)
	}

	now := time.Now().UTC()
	scoped := "mdl_1"
	other := "mdl_2"
	recordSpend(t, engine.ledger, &scoped, 30, now.Add(-time.Hour))
	recordSpend(t, engine.ledger, &other, 70, now.Add(-time.Hour))

	alert, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1", ModelID: &scoped, Threshold: 50,
		Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"},
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	evaluation, errEval := engine.Evaluate(context.Background(), alert)
	if errEval != nil {
		t.Fatalf("evaluate: %v", errEval)
	}
	if evaluation.Spent != 30 || evaluation.Breached {
		t.Fatalf("evaluation = %+v, want spent 30 not breached", evaluation)
	}
}

func TestEvaluate_ToolScopeWithNoMappings(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)

	recordSpend(t, engine.ledger, nil, 500, time.Now().UTC().Add(-time.Hour))

	toolID := "essay"
	alert, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1", ToolID: &toolID, Threshold: 10,
		Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"},
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	evaluation, errEval := engine.Evaluate(context.Background(), alert)
	if errEval != nil {
		t.Fatalf("evaluate: %v", errEval)
	}
	if evaluation.Spent != 0 || evaluation.Breached {
		t.Fatalf("evaluation = %+v, want zero spend for unmapped tool", evaluation)
	}
}

func TestRemove_DeletesAndAudits(t *testing.T) {
	t.Parallel()

	engine, conn := setupEngineTest(t)
	seedAlertProvider(t, conn)

	alert, errCreate := engine.Create(conn, "admin-1", Draft{
		ProviderID: "prv_1", Threshold: 10,
		Period: models.AlertPeriodDaily, Notify: []string{"ops@example.com"},
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errRemove := engine.Remove(conn, "admin-1", alert.ID); errRemove != nil {
		t.Fatalf("remove: %v", errRemove)
	}

	if _, errGet := engine.Get(context.Background(), alert.ID); !errors.Is(errGet, models.ErrNotFound) {
		t.Fatalf("get after remove err = %v, want ErrNotFound", errGet)
	}

	var deletes int64
	if errCount := conn.Model(&models.AuditEntry{}).
		Where("action = ? AND entity_type = ?", models.AuditActionDelete, models.EntityTypeBudget).
		Count(&deletes).Error; errCount != nil {
		t.Fatalf("count delete entries: %v", errCount)
	}
	if deletes != 1 {
		t.Fatalf("delete entries = %d, want 1", deletes)
	}
}
