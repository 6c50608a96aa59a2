package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/providers"
)

// ProviderHandler manages admin CRUD for providers.
type ProviderHandler struct {
	svc *governance.Service
}

// NewProviderHandler constructs a ProviderHandler.
func NewProviderHandler(svc *governance.Service) *ProviderHandler {
	return &ProviderHandler{svc: svc}
}

// createProviderRequest captures the payload for creating a provider.
type createProviderRequest struct {
	Name         string                   `json:"name"`          // Display name.
	Description  string                   `json:"description"`   // Optional description.
	Status       *string                  `json:"status"`        // Optional status.
	Credential   string                   `json:"credential"`    // Plaintext credential material.
	BaseURL      string                   `json:"base_url"`      // Optional endpoint override.
	Settings     *models.ProviderSettings `json:"settings"`      // Optional invocation settings.
	MonthlyQuota float64                  `json:"monthly_quota"` // Monthly spend limit; 0 means unlimited.
}

// updateProviderRequest captures optional fields for updates.
type updateProviderRequest struct {
	Name         *string                  `json:"name"`          // Optional new name.
	Description  *string                  `json:"description"`   // Optional description.
	Status       *string                  `json:"status"`        // Optional status.
	Credential   *string                  `json:"credential"`    // Optional rotated credential.
	BaseURL      *string                  `json:"base_url"`      // Optional endpoint override.
	Settings     *models.ProviderSettings `json:"settings"`      // Optional invocation settings.
	MonthlyQuota *float64                 `json:"monthly_quota"` // Optional monthly spend limit.
}

// providerView is the wire shape of a provider. The sealed credential
// never leaves the service; the view reports only whether one is set.
type providerView struct {
	ID            string                  `json:"id"`             // Provider ID.
	Name          string                  `json:"name"`           // Display name.
	Description   string                  `json:"description"`    // Description.
	Status        string                  `json:"status"`         // active, inactive or error.
	HasCredential bool                    `json:"has_credential"` // Whether credential material is stored.
	BaseURL       string                  `json:"base_url"`       // Endpoint override.
	Settings      models.ProviderSettings `json:"settings"`       // Invocation settings.
	MonthlyQuota  float64                 `json:"monthly_quota"`  // Monthly spend limit.
	CreatedAt     time.Time               `json:"created_at"`     // Creation timestamp.
	UpdatedAt     time.Time               `json:"updated_at"`     // Last update timestamp.
}

func toProviderView(p *models.Provider) providerView {
	return providerView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Status:        p.Status,
		HasCredential: p.Credential != "",
		BaseURL:       p.BaseURL,
		Settings:      p.InvocationSettings(),
		MonthlyQuota:  p.MonthlyQuota,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// List returns every provider.
func (h *ProviderHandler) List(c *gin.Context) {
	rows, errList := h.svc.Providers(c.Request.Context())
	if errList != nil {
		respondError(c, errList)
		return
	}
	out := make([]providerView, 0, len(rows))
	for i := range rows {
		out = append(out, toProviderView(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

// Get returns one provider by ID.
func (h *ProviderHandler) Get(c *gin.Context) {
	provider, errGet := h.svc.Provider(c.Request.Context(), c.Param("id"))
	if errGet != nil {
		respondError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, toProviderView(provider))
}

// Create registers a provider.
func (h *ProviderHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body createProviderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	provider, errCreate := h.svc.AddProvider(c.Request.Context(), actor, providers.Draft{
		Name:         body.Name,
		Description:  body.Description,
		Status:       body.Status,
		Credential:   body.Credential,
		BaseURL:      body.BaseURL,
		Settings:     body.Settings,
		MonthlyQuota: body.MonthlyQuota,
	})
	if errCreate != nil {
		respondError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, toProviderView(provider))
}

// Update merges the supplied fields into a provider.
func (h *ProviderHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body updateProviderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	provider, errUpdate := h.svc.UpdateProvider(c.Request.Context(), actor, c.Param("id"), providers.Patch{
		Name:         body.Name,
		Description:  body.Description,
		Status:       body.Status,
		Credential:   body.Credential,
		BaseURL:      body.BaseURL,
		Settings:     body.Settings,
		MonthlyQuota: body.MonthlyQuota,
	})
	if errUpdate != nil {
		respondError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, toProviderView(provider))
}

// Delete removes a provider and everything scoped under it.
func (h *ProviderHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if errRemove := h.svc.RemoveProvider(c.Request.Context(), actor, c.Param("id")); errRemove != nil {
		respondError(c, errRemove)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Quota returns the provider's monthly spend projection.
func (h *ProviderHandler) Quota(c *gin.Context) {
	projection, errQuota := h.svc.ProviderQuota(c.Request.Context(), c.Param("id"))
	if errQuota != nil {
		respondError(c, errQuota)
		return
	}
	c.JSON(http.StatusOK, projection)
}
