package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fastprodman/survivor/internal/domain"
	"github.com/fastprodman/survivor/internal/infra/logging"
	"github.com/fastprodman/survivor/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	headerUserID = "X-User-ID"
	headerAdmin  = "X-Admin"
)

type actorKey struct{}

// identity trusts the headers set by the auth gateway in front of the API.
// Requests without a valid X-User-ID are rejected.
func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(headerUserID))

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, http.StatusUnauthorized, "missing or invalid "+headerUserID)
			return
		}

		admin, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(headerAdmin)))

		actor := domain.Actor{UserID: userID, IsAdmin: admin}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)

		log := logging.FromContext(ctx).With(
			"request_id", middleware.GetReqID(ctx),
			"user_id", userID,
		)
		ctx = logging.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(ctx context.Context) domain.Actor {
	a, _ := ctx.Value(actorKey{}).(domain.Actor)
	return a
}

// instrument records request counts and latency by chi route pattern, so
// path parameters do not explode label cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
