// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metricus/metricus/internal/config"
	"github.com/metricus/metricus/internal/middleware"
)

// Router builds the HTTP surface over one handler set.
type Router struct {
	cfg     *config.Config
	handler *Handler
}

// NewRouter pairs the config with the handlers.
func NewRouter(cfg *config.Config, handler *Handler) *Router {
	return &Router{cfg: cfg, handler: handler}
}

// Setup assembles the chi route tree with the full middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health and metrics stay outside the API rate limit so probes and
	// scrapes never starve behind dashboard traffic.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.API.RateLimitReqs, time.Minute))
		r.Use(middleware.Prometheus)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/dashboard", router.handler.Dashboard)
			r.Get("/sessions", router.handler.Sessions)
			r.Get("/sessions/overview", router.handler.SessionOverview)
			r.Get("/funnel", router.handler.Funnel)
			r.Get("/cohorts", router.handler.Cohorts)
			r.Get("/rfm", router.handler.RFM)
			r.Get("/rollups", router.handler.Rollups)
			r.Get("/revenue", router.handler.Revenue)
			r.Get("/anomalies", router.handler.Anomalies)
			r.Get("/top-products", router.handler.TopProducts)
			r.Get("/realtime", router.handler.Realtime)
		})

		r.Post("/events", router.handler.IngestEvent)
		r.Post("/orders", router.handler.IngestOrder)
		r.Post("/orders/{id}/status", router.handler.TransitionOrder)

		r.Post("/refresh", router.handler.TriggerRefresh)
		r.Get("/refresh/status", router.handler.RefreshStatus)

		r.Get("/ws", router.handler.WebSocket)
	})

	return r
}
