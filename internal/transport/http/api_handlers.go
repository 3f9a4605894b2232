package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/store"
)

const maxSessionsLimit = 500

// APIHandlers provides the read-only admin endpoints.
type APIHandlers struct {
	hub     ClientLister
	journal store.Journal
	log     *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub ClientLister, journal store.Journal, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:     hub,
		journal: journal,
		log:     logger,
	}
}

// Clients lists connected clients ordered by id.
// GET /api/clients
func (h *APIHandlers) Clients(c *gin.Context) {
	records, err := h.hub.Clients(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("list clients")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "relay unavailable"})
		return
	}
	c.JSON(http.StatusOK, clientsToResponse(records))
}

// Client returns one live client.
// GET /api/clients/:id
func (h *APIHandlers) Client(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid client id"})
		return
	}

	rec, ok, err := h.hub.Lookup(c.Request.Context(), core.ClientID(id))
	if err != nil {
		h.log.Warn().Err(err).Uint64("client_id", id).Msg("lookup client")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "relay unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "client not found"})
		return
	}
	c.JSON(http.StatusOK, clientToResponse(rec))
}

// Sessions lists recent journal rows, newest first.
// GET /api/sessions?limit=N
func (h *APIHandlers) Sessions(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session journal disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxSessionsLimit)
	}

	rows, err := h.journal.RecentSessions(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list sessions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, sessionsToResponse(rows))
}
