package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phab-relay/internal/application/directory"
	"github.com/phab-relay/internal/application/dispatch"
	"github.com/phab-relay/internal/application/recipient"
	"github.com/phab-relay/internal/config"
	"github.com/phab-relay/internal/transport/http/handler"
	appmiddleware "github.com/phab-relay/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 2 requests/second, burst of 5; /switch is driven by humans typing a
	// slash command.
	switchRL := appmiddleware.NewRateLimiter(rate.Limit(2), 5)

	directorySvc := directory.NewService(deps.Chat, cfg.RefreshInterval, deps.Logger, deps.Metrics)
	recipientSvc := recipient.NewService(directorySvc, deps.Store, cfg.EmailDomain, deps.Logger, deps.Metrics)
	dispatchSvc := dispatch.NewService(deps.Conduit, directorySvc, recipientSvc, deps.Chat, deps.Logger, deps.Metrics)

	healthH := handler.NewHealthHandler()
	webhookH := handler.NewWebhookHandler(dispatchSvc)
	switchH := handler.NewSwitchHandler(recipientSvc, cfg.SlackCommandToken)
	disabledH := handler.NewDisabledHandler(recipientSvc)

	// ── Webhook + command surface (shared-secret auth, shapes fixed by the
	// Phabricator feed hook and the Slack slash command) ───────────────────
	r.Post("/handle", webhookH.Handle)
	r.With(switchRL.Limit).Post("/switch", switchH.Switch)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Get("/test", healthH.Test)

		// ── Admin routes (JWT) ───────────────────────────────────────────
		if deps.JWTProvider != nil {
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Auth(deps.JWTProvider))

				r.Get("/disabled", disabledH.List)
				r.Put("/disabled/{handle}", disabledH.Disable)
				r.Delete("/disabled/{handle}", disabledH.Enable)
			})
		}
	})

	return r
}
