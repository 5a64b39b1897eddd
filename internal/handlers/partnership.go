package handlers

import (
	"net/http"
	"strings"

	"timelock-backend/internal/middleware"
	"timelock-backend/internal/models"
	"timelock-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PartnershipHandler handles pairing HTTP requests
type PartnershipHandler struct {
	partnershipService *services.PartnershipService
}

// NewPartnershipHandler creates a new partnership handler
func NewPartnershipHandler(partnershipService *services.PartnershipService) *PartnershipHandler {
	return &PartnershipHandler{
		partnershipService: partnershipService,
	}
}

// SendRequestBody is the body of POST /partnership/requests. Exactly one of
// the fields is set.
type SendRequestBody struct {
	PartnerID   string `json:"partner_id"`
	PartnerCode string `json:"partner_code"`
}

// AcceptRequestBody is the body of POST /partnership/requests/{id}/accept
type AcceptRequestBody struct {
	RelationshipDate string `json:"relationship_date"`
}

// RequestResponse wraps an optional pending request
type RequestResponse struct {
	Request *models.Partnership `json:"request"`
}

// PartnerResponse carries the partner of the current user, if paired
type PartnerResponse struct {
	Paired    bool   `json:"paired"`
	PartnerID string `json:"partner_id,omitempty"`
}

// StatsResponse is the relationship stats with the derived day count
type StatsResponse struct {
	*models.RelationshipStats
	DaysTogether int `json:"days_together"`
}

// GetPairingState handles GET /api/v1/partnership
func (h *PartnershipHandler) GetPairingState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	pairing, err := h.partnershipService.GetPairingState(ctx, userID)
	if err != nil {
		respondServiceError(w, err, logFor(err).Str("user_id", userID), "Failed to get pairing state")
		return
	}
	respondJSON(w, http.StatusOK, pairing)
}

// SendRequest handles POST /api/v1/partnership/requests
func (h *PartnershipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SendRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}

	req.PartnerID = strings.TrimSpace(req.PartnerID)
	req.PartnerCode = strings.TrimSpace(req.PartnerCode)
	if (req.PartnerID == "") == (req.PartnerCode == "") {
		respondError(w, "Exactly one of partner_id or partner_code is required", http.StatusBadRequest)
		return
	}

	var (
		p   *models.Partnership
		err error
	)
	if req.PartnerCode != "" {
		p, err = h.partnershipService.SendRequestByCode(ctx, userID, req.PartnerCode)
	} else {
		p, err = h.partnershipService.SendRequest(ctx, userID, req.PartnerID)
	}
	if err != nil {
		respondServiceError(w, err, logFor(err).
			Str("user_id", userID).
			Str("partner_id", req.PartnerID).
			Str("partner_code", req.PartnerCode), "Failed to send partnership request")
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

// GetPendingRequest handles GET /api/v1/partnership/requests/pending
func (h *PartnershipHandler) GetPendingRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	p, err := h.partnershipService.GetPendingRequest(ctx, userID)
	if err != nil {
		respondServiceError(w, err, logFor(err).Str("user_id", userID), "Failed to get pending request")
		return
	}
	respondJSON(w, http.StatusOK, RequestResponse{Request: p})
}

// GetSentRequest handles GET /api/v1/partnership/requests/sent
func (h *PartnershipHandler) GetSentRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	p, err := h.partnershipService.GetSentRequest(ctx, userID)
	if err != nil {
		respondServiceError(w, err, logFor(err).Str("user_id", userID), "Failed to get sent request")
		return
	}
	respondJSON(w, http.StatusOK, RequestResponse{Request: p})
}

// AcceptRequest handles POST /api/v1/partnership/requests/{id}/accept
func (h *PartnershipHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	partnershipID := chi.URLParam(r, "id")

	var req AcceptRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RelationshipDate == "" {
		respondError(w, "relationship_date is required", http.StatusBadRequest)
		return
	}
	relationshipDate, err := models.ParseDate(req.RelationshipDate)
	if err != nil {
		respondError(w, "relationship_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	p, err := h.partnershipService.AcceptRequest(ctx, userID, partnershipID, relationshipDate)
	if err != nil {
		respondServiceError(w, err, logFor(err).
			Str("user_id", userID).
			Str("partnership_id", partnershipID), "Failed to accept partnership request")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// CancelRequest handles DELETE /api/v1/partnership/requests/{id}
func (h *PartnershipHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	partnershipID := chi.URLParam(r, "id")

	if err := h.partnershipService.CancelRequest(ctx, userID, partnershipID); err != nil {
		respondServiceError(w, err, logFor(err).
			Str("user_id", userID).
			Str("partnership_id", partnershipID), "Failed to cancel partnership request")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPartner handles GET /api/v1/partner
func (h *PartnershipHandler) GetPartner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	partnerID, err := h.partnershipService.GetPartnerID(ctx, userID)
	if err != nil {
		respondServiceError(w, err, logFor(err).Str("user_id", userID), "Failed to get partner")
		return
	}
	respondJSON(w, http.StatusOK, PartnerResponse{Paired: partnerID != "", PartnerID: partnerID})
}

// GetStats handles GET /api/v1/stats
func (h *PartnershipHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	stats, err := h.partnershipService.GetRelationshipStats(ctx, userID)
	if err != nil {
		respondServiceError(w, err, logFor(err).Str("user_id", userID), "Failed to get relationship stats")
		return
	}

	log.Debug().
		Str("user_id", userID).
		Int("total_messages", stats.TotalMessages).
		Msg("Relationship stats served")

	respondJSON(w, http.StatusOK, StatsResponse{
		RelationshipStats: stats,
		DaysTogether:      h.partnershipService.DaysTogether(stats),
	})
}
