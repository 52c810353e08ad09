package handlers

import (
	"net/http"

	"github.com/Adilet07/knockout-system/middleware"
	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/services"
)

type MatchHandler struct {
	matchService     services.MatchService
	consensusService services.ConsensusService
	adminService     services.AdminService
}

func NewMatchHandler(
	matchService services.MatchService,
	consensusService services.ConsensusService,
	adminService services.AdminService,
) *MatchHandler {
	return &MatchHandler{
		matchService:     matchService,
		consensusService: consensusService,
		adminService:     adminService,
	}
}

// staffMatchResponse is the staff-only representation of a match. It is the
// single place the submission token and PIN leave the system: staff hand them
// to the participants out of band.
type staffMatchResponse struct {
	*models.Match
	Token string `json:"token"`
	PIN   string `json:"pin"`
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, staffMatchResponse{Match: match, Token: match.Token, PIN: match.PIN}, nil)
}

type submitResultRequest struct {
	ReporterID   string  `json:"reporter_id"`
	ScoreHome    int     `json:"score_home"`
	ScoreAway    int     `json:"score_away"`
	PIN          string  `json:"pin"`
	EvidencePath *string `json:"evidence_path,omitempty"`
}

// SubmitResult records one participant's score report. The match token
// middleware has already authorized the request and loaded the match.
func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	match, ok := middleware.MatchFromContext(r.Context())
	if !ok {
		serverErrorResponse(w, r, errMissingMatchContext)
		return
	}

	var req submitResultRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.consensusService.SubmitResult(r.Context(), match.ID, services.SubmissionInput{
		ReporterID:   req.ReporterID,
		ScoreHome:    req.ScoreHome,
		ScoreAway:    req.ScoreAway,
		PIN:          req.PIN,
		EvidencePath: req.EvidencePath,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result, nil)
}

// UploadEvidence streams an evidence image to the object store and records
// the key on the match. Side comes from the ?side query parameter.
func (h *MatchHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	match, ok := middleware.MatchFromContext(r.Context())
	if !ok {
		serverErrorResponse(w, r, errMissingMatchContext)
		return
	}

	side := models.MatchSide(r.URL.Query().Get("side"))
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, err := h.matchService.AttachEvidence(r.Context(), match.ID, side, contentType, r.Body)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, jsonResponse{"key": result.Key, "url": result.Location}, nil)
}

type overrideResultRequest struct {
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Status    string `json:"status"`
}

// OverrideResult is the staff path around consensus, typically used to settle
// a disputed match.
func (h *MatchHandler) OverrideResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req overrideResultRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.adminService.OverrideResult(r.Context(), matchID, req.HomeScore, req.AwayScore, models.MatchStatus(req.Status))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, match, nil)
}
