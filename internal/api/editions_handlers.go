package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/services/editions"
	"github.com/go-chi/chi/v5"
)

type createEditionRequest struct {
	LeagueID      int64                `json:"league_id"`
	CompetitionID int64                `json:"competition_id"`
	Mode          domain.Mode          `json:"mode"`
	StartRound    int                  `json:"start_round"`
	EndRound      *int                 `json:"end_round"`
	EntryFee      int64                `json:"entry_fee"`
	Config        domain.EditionConfig `json:"config"`
}

type editionResponse struct {
	ID            int64                `json:"id"`
	LeagueID      int64                `json:"league_id"`
	OwnerID       int64                `json:"owner_id"`
	CompetitionID int64                `json:"competition_id"`
	Mode          domain.Mode          `json:"mode"`
	StartRound    int                  `json:"start_round"`
	EndRound      *int                 `json:"end_round,omitempty"`
	EntryFee      int64                `json:"entry_fee"`
	Config        domain.EditionConfig `json:"config"`
	Status        domain.EditionStatus `json:"status"`
	LockRound     *int                 `json:"lock_round,omitempty"`
	LockAt        *time.Time           `json:"lock_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

func toEditionResponse(e domain.Edition) editionResponse {
	return editionResponse{
		ID:            e.ID,
		LeagueID:      e.LeagueID,
		OwnerID:       e.OwnerID,
		CompetitionID: e.CompetitionID,
		Mode:          e.Mode,
		StartRound:    e.StartRound,
		EndRound:      e.EndRound,
		EntryFee:      e.EntryFee,
		Config:        e.Config,
		Status:        e.Status,
		LockRound:     e.LockRound,
		LockAt:        e.LockAt,
		CreatedAt:     e.CreatedAt,
	}
}

// CreateEditionHandler handles POST /editions
func (h *HandlerProvider) CreateEditionHandler(w http.ResponseWriter, r *http.Request) {
	var req createEditionRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.svc.Editions.Create(r.Context(), actorFrom(r.Context()), editions.CreateInput{
		LeagueID:      req.LeagueID,
		CompetitionID: req.CompetitionID,
		Mode:          req.Mode,
		StartRound:    req.StartRound,
		EndRound:      req.EndRound,
		EntryFee:      req.EntryFee,
		Config:        req.Config,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEditionResponse(e))
}

// GetEditionHandler handles GET /editions/{id}
func (h *HandlerProvider) GetEditionHandler(w http.ResponseWriter, r *http.Request) {
	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.svc.Editions.Get(r.Context(), editionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEditionResponse(e))
}

// JoinHandler handles POST /editions/{id}/join
func (h *HandlerProvider) JoinHandler(w http.ResponseWriter, r *http.Request) {
	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.svc.Editions.Join(r.Context(), actorFrom(r.Context()).UserID, editionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"participant_id": p.ID,
		"edition_id":     p.EditionID,
		"user_id":        p.UserID,
		"status":         p.Status,
		"joined_at":      p.JoinedAt,
	})
}

type pickRequest struct {
	TeamID            int64 `json:"team_id"`
	AllowPastDeadline bool  `json:"allow_past_deadline"`
}

// SubmitPickHandler handles POST /editions/{id}/picks
func (h *HandlerProvider) SubmitPickHandler(w http.ResponseWriter, r *http.Request) {
	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req pickRequest
	err = decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TeamID <= 0 {
		writeError(w, http.StatusBadRequest, "team_id required")
		return
	}

	actor := actorFrom(r.Context())

	// Only admins may backfill a pick after the deadline.
	override := req.AllowPastDeadline && actor.IsAdmin

	p, err := h.svc.Picks.SubmitPick(r.Context(), actor.UserID, editionID, req.TeamID, override)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"pick_id":    p.ID,
		"edition_id": p.EditionID,
		"round":      p.Round,
		"team_id":    p.TeamID,
		"match_id":   p.MatchID,
		"created_at": p.CreatedAt,
	})
}

type roundPickResponse struct {
	UserID int64  `json:"user_id"`
	Round  int    `json:"round"`
	TeamID *int64 `json:"team_id"`
}

func parseRound(r *http.Request) (int, error) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil || round <= 0 {
		return 0, errors.New("invalid round")
	}

	return round, nil
}

// ListRoundPicksHandler handles GET /editions/{id}/rounds/{round}/picks
func (h *HandlerProvider) ListRoundPicksHandler(w http.ResponseWriter, r *http.Request) {
	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	round, err := parseRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	picks, err := h.svc.Editions.ListRoundPicks(r.Context(), actorFrom(r.Context()), editionID, round)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]roundPickResponse, 0, len(picks))
	for _, p := range picks {
		resp = append(resp, roundPickResponse{UserID: p.UserID, Round: p.Round, TeamID: p.TeamID})
	}

	writeJSON(w, http.StatusOK, map[string]any{"picks": resp})
}

type deadlineRequest struct {
	LockAt time.Time `json:"lock_at"`
}

// SetRoundDeadlineHandler handles PUT /editions/{id}/rounds/{round}/deadline
func (h *HandlerProvider) SetRoundDeadlineHandler(w http.ResponseWriter, r *http.Request) {
	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	round, err := parseRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req deadlineRequest
	err = decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.LockAt.IsZero() {
		writeError(w, http.StatusBadRequest, "lock_at required")
		return
	}

	err = h.svc.Editions.SetRoundDeadline(r.Context(), actorFrom(r.Context()), editionID, round, req.LockAt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"edition_id": editionID,
		"lock_round": round,
		"lock_at":    req.LockAt.UTC(),
	})
}

// ReconcileHandler handles POST /editions/{id}/reconcile
func (h *HandlerProvider) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r.Context()).IsAdmin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.svc.Reconcile.Reconcile(r.Context(), editionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// CloseEditionHandler handles POST /editions/{id}/close
func (h *HandlerProvider) CloseEditionHandler(w http.ResponseWriter, r *http.Request) {
	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.svc.Close.CloseEdition(r.Context(), editionID, actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// RestoreParticipantHandler handles POST /editions/{id}/participants/{userId}/restore
func (h *HandlerProvider) RestoreParticipantHandler(w http.ResponseWriter, r *http.Request) {
	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := parseIDParam(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.svc.Editions.RestoreParticipant(r.Context(), actorFrom(r.Context()), editionID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PoolHandler handles GET /editions/{id}/pool
func (h *HandlerProvider) PoolHandler(w http.ResponseWriter, r *http.Request) {
	editionID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pool, err := h.svc.Ledger.PoolOf(r.Context(), editionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"edition_id": editionID, "pool": pool})
}

// RolloverHandler handles GET /leagues/{id}/rollover?mode=
func (h *HandlerProvider) RolloverHandler(w http.ResponseWriter, r *http.Request) {
	leagueID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode := domain.Mode(r.URL.Query().Get("mode"))
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "mode must be ELIMINATION or LEAGUE")
		return
	}

	amount, err := h.svc.Ledger.RolloverOf(r.Context(), leagueID, mode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"league_id": leagueID,
		"mode":      mode,
		"rollover":  amount,
	})
}
