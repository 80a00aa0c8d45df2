package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/logging"
	"github.com/fastprodman/survivor/internal/services/closeout"
	"github.com/fastprodman/survivor/internal/services/editions"
	"github.com/fastprodman/survivor/internal/services/reconcile"
	"github.com/go-chi/chi/v5"
)

// Services the handlers call into. Amounts crossing the API are integer
// minor currency units.
type (
	EditionService interface {
		Create(ctx context.Context, actor domain.Actor, in editions.CreateInput) (domain.Edition, error)
		Get(ctx context.Context, id int64) (domain.Edition, error)
		Join(ctx context.Context, userID, editionID int64) (domain.Participant, error)
		SetRoundDeadline(ctx context.Context, actor domain.Actor, editionID int64, round int, at time.Time) error
		RestoreParticipant(ctx context.Context, actor domain.Actor, editionID, userID int64) error
		ListRoundPicks(ctx context.Context, viewer domain.Actor, editionID int64, round int) ([]domain.RoundPick, error)
	}

	PickService interface {
		SubmitPick(ctx context.Context, userID, editionID, teamID int64, allowPastDeadline bool) (domain.Pick, error)
	}

	ReconcileService interface {
		Reconcile(ctx context.Context, editionID int64) (reconcile.Report, error)
	}

	CloseService interface {
		CloseEdition(ctx context.Context, editionID int64, actor domain.Actor) (closeout.Closure, error)
	}

	LedgerService interface {
		BalanceOf(ctx context.Context, userID int64) (int64, error)
		PoolOf(ctx context.Context, editionID int64) (int64, error)
		RolloverOf(ctx context.Context, leagueID int64, mode domain.Mode) (int64, error)
		Adjust(ctx context.Context, actor domain.Actor, userID, amount int64, reason string) (domain.LedgerEntry, error)
		Statement(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error)
	}

	RewardService interface {
		Totals(ctx context.Context, userID int64) (domain.RewardAccount, error)
	}
)

// Services groups the dependencies of the HTTP layer.
type Services struct {
	Editions  EditionService
	Picks     PickService
	Reconcile ReconcileService
	Close     CloseService
	Ledger    LedgerService
	Rewards   RewardService
}

// HandlerProvider exposes the services as HTTP handlers.
type HandlerProvider struct {
	svc Services
}

func NewHandler(svc Services) *HandlerProvider {
	return &HandlerProvider{svc: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error onto a status code. Unknown errors
// are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}

	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrMissingScope):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDeadlinePassed),
		errors.Is(err, domain.ErrTeamNotScheduled),
		errors.Is(err, domain.ErrTeamAlreadyUsed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicatePick),
		errors.Is(err, domain.ErrAlreadyJoined),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrNotParticipant),
		errors.Is(err, domain.ErrNotActive),
		errors.Is(err, domain.ErrEditionComplete),
		errors.Is(err, domain.ErrAlreadyClosed),
		errors.Is(err, domain.ErrNoParticipants),
		errors.Is(err, domain.ErrStillContested),
		errors.Is(err, domain.ErrPendingPicks),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}

		return errors.New("invalid JSON")
	}

	return nil
}

// parseIDParam reads a positive integer chi URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}

	return id, nil
}

// selfOrAdmin guards per-user reads: a user sees their own data, an admin
// sees anyone's.
func selfOrAdmin(actor domain.Actor, userID int64) bool {
	return actor.IsAdmin || actor.UserID == userID
}
