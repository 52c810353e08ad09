package handlers

import (
	"net/http"

	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/services"
	"github.com/go-chi/chi/v5"
)

type BracketHandler struct {
	bracketService services.BracketService
	matchService   services.MatchService
}

func NewBracketHandler(bracketService services.BracketService, matchService services.MatchService) *BracketHandler {
	return &BracketHandler{
		bracketService: bracketService,
		matchService:   matchService,
	}
}

type generateBracketRequest struct {
	PlayerIDs []string `json:"player_ids"`
}

// GenerateRoundOf16 seeds a tournament's opening round from the registration
// subsystem's roster of 16 player references.
func (h *BracketHandler) GenerateRoundOf16(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	var req generateBracketRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matchIDs, err := h.bracketService.GenerateRoundOf16(r.Context(), tournamentID, req.PlayerIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, jsonResponse{"match_ids": matchIDs}, nil)
}

// AdvanceRound derives the next round from the confirmed matches of the round
// in the URL.
func (h *BracketHandler) AdvanceRound(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	round, err := models.ParseRound(chi.URLParam(r, "round"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, services.ErrInvalidRound)
		return
	}

	matchIDs, err := h.bracketService.AdvanceWinners(r.Context(), tournamentID, round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, jsonResponse{"match_ids": matchIDs}, nil)
}

// Overview returns the full bracket view: every match plus the advance
// operation audit trail.
func (h *BracketHandler) Overview(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	overview, err := h.matchService.TournamentOverview(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, overview, nil)
}
