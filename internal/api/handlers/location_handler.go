package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/phrases"
	"github.com/phraser/location-server/internal/places"
	"github.com/phraser/location-server/internal/utils"
)

const notInPlaceMessage = "Not currently in any detected place"

type LocationHandler struct {
	resolver *places.Resolver
	orch     *phrases.Orchestrator
	log      *logrus.Logger
}

func NewLocationHandler(resolver *places.Resolver, orch *phrases.Orchestrator, log *logrus.Logger) *LocationHandler {
	return &LocationHandler{resolver: resolver, orch: orch, log: log}
}

type GeocodeRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	ClientID  string   `json:"clientId"`
	Mode      string   `json:"mode"`
}

type LocationPayload struct {
	IsInPlace bool          `json:"isInPlace"`
	Place     *models.Place `json:"place"`
	Message   string        `json:"message,omitempty"`
}

type GeocodeResponse struct {
	Location LocationPayload        `json:"location"`
	Phrases  []models.PhraseWrapper `json:"phrases,omitempty"`
}

func validMode(mode string) bool {
	switch mode {
	case "", phrases.ModeNew, phrases.ModeAppend, phrases.ModeRefresh:
		return true
	}
	return false
}

// Geocode handles one location ping: place resolution, session lookup,
// and the phrase-generation decision.
func (h *LocationHandler) Geocode(c *gin.Context) {
	const op = "LocationHandler.Geocode"

	var req GeocodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "Missing required parameters: latitude and longitude", err))
		return
	}
	if !validMode(req.Mode) {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "mode must be one of new, append, refresh", nil))
		return
	}

	clientID := clientIdentifier(c, req.ClientID)
	ctx := c.Request.Context()

	place, err := h.resolver.Resolve(ctx, *req.Latitude, *req.Longitude)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.orch.Handle(ctx, clientID, place, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toGeocodeResponse(result))
}

func toGeocodeResponse(r *phrases.Result) GeocodeResponse {
	resp := GeocodeResponse{
		Location: LocationPayload{
			IsInPlace: r.Place != nil,
			Place:     r.Place,
		},
		Phrases: r.Phrases,
	}
	if r.Place == nil {
		resp.Location.Message = notInPlaceMessage
	}
	return resp
}

// Locate is the stateless lookup: place resolution only, no session or
// generation involvement.
func (h *LocationHandler) Locate(c *gin.Context) {
	const op = "LocationHandler.Locate"

	var req GeocodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "Missing required parameters: latitude and longitude", err))
		return
	}

	place, err := h.resolver.Resolve(c.Request.Context(), *req.Latitude, *req.Longitude)
	if err != nil {
		writeError(c, err)
		return
	}

	if place == nil {
		c.JSON(http.StatusOK, gin.H{
			"isInPlace": false,
			"message":   notInPlaceMessage,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isInPlace": true,
		"place":     place,
	})
}
