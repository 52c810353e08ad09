package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/services"
	"github.com/go-chi/chi/v5"
)

// MatchTokenHeader carries the per-match submission capability.
const MatchTokenHeader = "X-Match-Token"

// RequireMatchToken validates the token header against the match addressed by
// the {matchID} URL parameter and puts the loaded match into the request
// context. This is the only authorization a result submission needs.
func RequireMatchToken(matchService services.MatchService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			matchID, err := strconv.Atoi(chi.URLParam(r, "matchID"))
			if err != nil || matchID <= 0 {
				http.Error(w, "invalid match id", http.StatusBadRequest)
				return
			}

			token := r.Header.Get(MatchTokenHeader)
			if token == "" {
				http.Error(w, "missing match token", http.StatusUnauthorized)
				return
			}

			match, err := matchService.VerifyToken(r.Context(), matchID, token)
			if err != nil {
				switch {
				case errors.Is(err, services.ErrMatchNotFound):
					http.Error(w, "match not found", http.StatusNotFound)
				case errors.Is(err, services.ErrInvalidMatchToken):
					http.Error(w, "invalid match token", http.StatusUnauthorized)
				default:
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
				return
			}

			ctx := context.WithValue(r.Context(), matchContextKey, match)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MatchFromContext returns the match loaded by RequireMatchToken.
func MatchFromContext(ctx context.Context) (*models.Match, bool) {
	match, ok := ctx.Value(matchContextKey).(*models.Match)
	return match, ok
}
