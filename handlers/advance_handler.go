package handlers

import (
	"net/http"

	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/services"
	"github.com/go-chi/chi/v5"
)

type AdvanceHandler struct {
	advanceService services.AdvanceService
}

func NewAdvanceHandler(advanceService services.AdvanceService) *AdvanceHandler {
	return &AdvanceHandler{advanceService: advanceService}
}

type advanceRequest struct {
	Round          string   `json:"round"`
	Winners        []string `json:"winners"`
	Seeds          []string `json:"seeds,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

type revertRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// Preview shows staff the prospective next-round pairings without touching
// storage.
func (h *AdvanceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	var req advanceRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	round, err := models.ParseRound(req.Round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, services.ErrInvalidRound)
		return
	}

	pairings, err := h.advanceService.Preview(r.Context(), tournamentID, round, req.Winners, req.Seeds)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"pairings": pairings}, nil)
}

// Confirm commits an advance. Retried requests with the same idempotency key
// succeed without creating anything new.
func (h *AdvanceHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	var req advanceRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	round, err := models.ParseRound(req.Round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, services.ErrInvalidRound)
		return
	}

	result, err := h.advanceService.Confirm(r.Context(), tournamentID, round, req.Winners, req.Seeds, req.IdempotencyKey)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result, nil)
}

// Revert undoes a confirmed advance while its revert window is still open.
func (h *AdvanceHandler) Revert(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")

	var req revertRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	op, err := h.advanceService.Revert(r.Context(), tournamentID, req.IdempotencyKey)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, op, nil)
}
