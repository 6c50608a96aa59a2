// Package handlers implements the admin HTTP endpoints of the governance
// API. Handlers translate JSON payloads to governance calls and map the
// error taxonomy onto HTTP status codes.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/models"
	log "github.com/sirupsen/logrus"
)

// ActorHeader carries the administrative actor ID on mutating requests.
const ActorHeader = "X-Actor-ID"

// respondError maps the governance error taxonomy onto HTTP statuses:
// unknown entity 404, rejected input 400, dead reference 422, everything
// else 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidReference):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("admin api: request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// requireActor extracts the actor header. Mutating handlers call this
// first and bail out with 400 when the header is absent.
func requireActor(c *gin.Context) (string, bool) {
	actor := strings.TrimSpace(c.GetHeader(ActorHeader))
	if actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + ActorHeader + " header"})
		return "", false
	}
	return actor, true
}
