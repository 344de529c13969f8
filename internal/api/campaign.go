package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/taleweaver/internal/campaign"
	"github.com/ashureev/taleweaver/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CampaignService is the session manager behind the campaign routes.
type CampaignService interface {
	Create(ctx context.Context, character domain.Character) (string, string, error)
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context) ([]domain.Summary, error)
	SubmitAction(ctx context.Context, id, action string) (string, *domain.Campaign, error)
}

// CampaignHandler serves the campaign endpoints.
type CampaignHandler struct {
	svc CampaignService
}

// NewCampaignHandler creates a campaign handler.
func NewCampaignHandler(svc CampaignService) *CampaignHandler {
	return &CampaignHandler{svc: svc}
}

// CreateCampaignRequest is the body of POST /api/campaigns.
type CreateCampaignRequest struct {
	Character domain.Character `json:"character"`
}

// CreateCampaignResponse is returned when a campaign starts.
type CreateCampaignResponse struct {
	CampaignID   string `json:"campaignId"`
	OpeningScene string `json:"openingScene"`
}

// ActionRequest is the body of POST /api/campaigns/{id}/action.
type ActionRequest struct {
	Action string `json:"action"`
}

// ActionResponse carries the narration and the updated campaign.
type ActionResponse struct {
	Response string           `json:"response"`
	Campaign *domain.Campaign `json:"campaign"`
}

// RegisterRoutes registers campaign routes.
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/campaigns", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/action", h.Action)
	})
}

// Create starts a new campaign.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	id, opening, err := h.svc.Create(r.Context(), req.Character)
	if err != nil {
		slog.Error("Failed to create campaign", "error", err, "character", req.Character.Name)
		ErrorWithDetails(w, http.StatusInternalServerError, "Failed to create campaign", err)
		return
	}

	JSON(w, http.StatusOK, CreateCampaignResponse{CampaignID: id, OpeningScene: opening})
}

// List returns a summary of every campaign.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("Failed to list campaigns", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to list campaigns")
		return
	}
	if summaries == nil {
		summaries = []domain.Summary{}
	}
	JSON(w, http.StatusOK, summaries)
}

// Get returns one campaign with its full history.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, campaign.ErrNotFound) {
		Error(w, http.StatusNotFound, "Campaign not found")
		return
	}
	if err != nil {
		slog.Error("Failed to load campaign", "error", err, "campaign_id", id)
		Error(w, http.StatusInternalServerError, "Failed to load campaign")
		return
	}

	JSON(w, http.StatusOK, c)
}

// Action submits a player action and returns the Dungeon Master's reply.
func (h *CampaignHandler) Action(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	narrative, c, err := h.svc.SubmitAction(r.Context(), id, req.Action)
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		Error(w, http.StatusNotFound, "Campaign not found")
		return
	case errors.Is(err, campaign.ErrProvider):
		ErrorWithDetails(w, http.StatusInternalServerError, "Failed to process action", err)
		return
	case err != nil:
		slog.Error("Failed to process action", "error", err, "campaign_id", id)
		Error(w, http.StatusInternalServerError, "Failed to process action")
		return
	}

	JSON(w, http.StatusOK, ActionResponse{Response: narrative, Campaign: c})
}
