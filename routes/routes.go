package routes

import (
	"github.com/Adilet07/knockout-system/handlers"
	"github.com/Adilet07/knockout-system/middleware"
	"github.com/Adilet07/knockout-system/services"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	bracketHandler *handlers.BracketHandler,
	matchHandler *handlers.MatchHandler,
	advanceHandler *handlers.AdvanceHandler,
	webSocketHandler *handlers.WebSocketHandler,
	matchService services.MatchService,
	jwtSecret string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.MatchTokenHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	staffOnly := middleware.StaffOnly([]byte(jwtSecret))
	matchToken := middleware.RequireMatchToken(matchService)

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		// Public bracket view.
		r.Get("/overview", bracketHandler.Overview)

		// Staff operations: bracket seeding and the advance protocol.
		r.Group(func(r chi.Router) {
			r.Use(staffOnly)

			r.Post("/bracket", bracketHandler.GenerateRoundOf16)
			r.Post("/rounds/{round}/advance", bracketHandler.AdvanceRound)
			r.Post("/advance/preview", advanceHandler.Preview)
			r.Post("/advance/confirm", advanceHandler.Confirm)
			r.Post("/advance/revert", advanceHandler.Revert)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		// Participant routes, authorized by the per-match token.
		r.Group(func(r chi.Router) {
			r.Use(matchToken)

			r.Post("/result", matchHandler.SubmitResult)
			r.Post("/evidence", matchHandler.UploadEvidence)
		})

		// Staff routes.
		r.Group(func(r chi.Router) {
			r.Use(staffOnly)

			r.Get("/", matchHandler.GetMatch)
			r.Post("/override", matchHandler.OverrideResult)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
