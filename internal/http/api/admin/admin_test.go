package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/security"
	"gorm.io/gorm"
)

func setupAdminAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:admin_api_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	box, errBox := security.NewRandomBox()
	if errBox != nil {
		t.Fatalf("new box: %v", errBox)
	}

	r := gin.New()
	RegisterAdminRoutes(r, conn, governance.New(conn, box, nil, time.Minute))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, actor string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if errEncode := json.NewEncoder(&body).Encode(payload); errEncode != nil {
			t.Fatalf("encode payload: %v", errEncode)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), errDecode)
	}
	return out
}

func TestAdminAPI_ProviderLifecycle(t *testing.T) {
	t.Parallel()

	r := setupAdminAPI(t)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/providers", "admin-1", map[string]any{
		"name":       "OpenRouter",
		"credential": "sk-or-v1-test",
		"status":     "active",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create provider status = %d, body %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	providerID, _ := created["id"].(string)
	if providerID == "" {
		t.Fatalf("create response missing id: %v", created)
	}
	if hasCredential, _ := created["has_credential"].(bool); !hasCredential {
		t.Fatalf("create response should report stored credential: %v", created)
	}
	if _, exposed := created["credential"]; exposed {
		t.Fatalf("create response exposes credential: %v", created)
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/providers/"+providerID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get provider status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPut, "/v0/admin/providers/"+providerID, "admin-1", map[string]any{
		"description": "unified routing",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update provider status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodDelete, "/v0/admin/providers/"+providerID, "admin-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete provider status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/providers/"+providerID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted provider status = %d, want 404", w.Code)
	}
}

func TestAdminAPI_MutationsRequireActorHeader(t *testing.T) {
	t.Parallel()

	r := setupAdminAPI(t)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/providers", "", map[string]any{"name": "OpenRouter"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create without actor status = %d, want 400", w.Code)
	}

	var providerCount int64
	// A rejected mutation must not leave partial state behind; the list
	// endpoint is the cheapest way to observe that here.
	w = doJSON(t, r, http.MethodGet, "/v0/admin/providers", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list providers status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if rows, ok := body["providers"].([]any); ok {
		providerCount = int64(len(rows))
	}
	if providerCount != 0 {
		t.Fatalf("providers after rejected create = %d, want 0", providerCount)
	}
}

func TestAdminAPI_ErrorTaxonomyStatuses(t *testing.T) {
	t.Parallel()

	r := setupAdminAPI(t)

	// Dead provider reference rejects with 422.
	w := doJSON(t, r, http.MethodPost, "/v0/admin/models", "admin-1", map[string]any{
		"provider_id":    "prv_missing",
		"name":           "gpt-x",
		"context_window": 128000,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("dead reference status = %d, want 422, body %s", w.Code, w.Body.String())
	}

	// Invalid argument rejects with 400.
	w = doJSON(t, r, http.MethodPost, "/v0/admin/budgets", "admin-1", map[string]any{
		"provider_id": "prv_x",
		"threshold":   -5,
		"period":      "daily",
		"notify":      []string{"ops@example.com"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid argument status = %d, want 400, body %s", w.Code, w.Body.String())
	}

	// Unknown entity reads return 404.
	w = doJSON(t, r, http.MethodGet, "/v0/admin/budgets/bgt_missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown entity status = %d, want 404", w.Code)
	}
}

func TestAdminAPI_UsageAndBudgetEvaluation(t *testing.T) {
	t.Parallel()

	r := setupAdminAPI(t)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/providers", "admin-1", map[string]any{"name": "OpenRouter"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create provider status = %d", w.Code)
	}
	providerID, _ := decodeBody(t, w)["id"].(string)

	for _, cost := range []float64{10, 15, 20} {
		w = doJSON(t, r, http.MethodPost, "/v0/admin/usage", "", map[string]any{
			"provider_id": providerID,
			"tokens":      1000,
			"cost":        cost,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("record usage status = %d, body %s", w.Code, w.Body.String())
		}
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/usage?provider_id="+providerID+"&period=day", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list usage status = %d", w.Code)
	}
	if events, ok := decodeBody(t, w)["events"].([]any); !ok || len(events) != 3 {
		t.Fatalf("usage events = %v, want 3", events)
	}

	w = doJSON(t, r, http.MethodPost, "/v0/admin/budgets", "admin-1", map[string]any{
		"provider_id": providerID,
		"threshold":   40,
		"period":      "daily",
		"notify":      []string{"ops@example.com"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create budget status = %d, body %s", w.Code, w.Body.String())
	}
	alertID, _ := decodeBody(t, w)["id"].(string)

	w = doJSON(t, r, http.MethodGet, "/v0/admin/budgets/"+alertID+"/evaluation", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate status = %d", w.Code)
	}
	evaluation := decodeBody(t, w)
	if spent, _ := evaluation["spent"].(float64); spent != 45 {
		t.Fatalf("spent = %v, want 45", evaluation["spent"])
	}
	if breached, _ := evaluation["breached"].(bool); !breached {
		t.Fatalf("breached = %v, want true", evaluation["breached"])
	}
}

func TestAdminAPI_AuditTrailAfterLifecycle(t *testing.T) {
	t.Parallel()

	r := setupAdminAPI(t)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/providers", "admin-1", map[string]any{"name": "OpenRouter"})
	providerID, _ := decodeBody(t, w)["id"].(string)

	w = doJSON(t, r, http.MethodPost, "/v0/admin/models", "admin-1", map[string]any{
		"provider_id":    providerID,
		"name":           "gpt-x",
		"context_window": 128000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create model status = %d, body %s", w.Code, w.Body.String())
	}
	modelID, _ := decodeBody(t, w)["id"].(string)

	w = doJSON(t, r, http.MethodPost, "/v0/admin/mappings", "admin-1", map[string]any{
		"model_id": modelID,
		"tool_id":  "essay",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("assign status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodDelete, "/v0/admin/models/"+modelID, "admin-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete model status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/audit", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d", w.Code)
	}
	entries, _ := decodeBody(t, w)["entries"].([]any)
	if len(entries) != 5 {
		t.Fatalf("audit entries = %d, want 5", len(entries))
	}

	// Newest-first: model delete, mapping delete, mapping create, model
	// create, provider create.
	first, _ := entries[0].(map[string]any)
	if first["action"] != "delete" || first["entity_type"] != "model" {
		t.Fatalf("newest entry = %v, want delete:model", first)
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/mappings?tool_id=essay", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list mappings status = %d", w.Code)
	}
	if mappings, ok := decodeBody(t, w)["mappings"].([]any); !ok || len(mappings) != 0 {
		t.Fatalf("mappings for tool after model delete = %v, want empty", mappings)
	}
}
