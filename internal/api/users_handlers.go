package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
)

// BalanceHandler handles GET /users/{id}/balance
func (h *HandlerProvider) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	bal, err := h.svc.Ledger.BalanceOf(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"user_id": userID, "balance": bal})
}

type ledgerEntryResponse struct {
	ID        int64            `json:"id"`
	Kind      domain.EntryKind `json:"kind"`
	Amount    int64            `json:"amount"`
	LeagueID  *int64           `json:"league_id,omitempty"`
	EditionID *int64           `json:"edition_id,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// StatementHandler handles GET /users/{id}/ledger?limit=
func (h *HandlerProvider) StatementHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.svc.Ledger.Statement(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ledgerEntryResponse{
			ID:        e.ID,
			Kind:      e.Kind,
			Amount:    e.Amount,
			LeagueID:  e.LeagueID,
			EditionID: e.EditionID,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "entries": resp})
}

type adjustmentRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// AdjustHandler handles POST /users/{id}/adjustments. Only admins pass the
// service check.
func (h *HandlerProvider) AdjustHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req adjustmentRequest
	err = decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.svc.Ledger.Adjust(r.Context(), actorFrom(r.Context()), userID, req.Amount, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ledgerEntryResponse{
		ID:        e.ID,
		Kind:      e.Kind,
		Amount:    e.Amount,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	})
}

// RewardsHandler handles GET /users/{id}/rewards
func (h *HandlerProvider) RewardsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	acc, err := h.svc.Rewards.Totals(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"user_id": userID,
		"points":  acc.Points,
		"coins":   acc.Coins,
	})
}

// userParam parses {id} and enforces that the caller may read that user.
func (h *HandlerProvider) userParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}

	if !selfOrAdmin(actorFrom(r.Context()), userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return 0, false
	}

	return userID, true
}
