package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	limits := s.cfg.Server.RateLimit

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if limits.Enabled {
				r.Use(s.rateLimitMiddleware(limits.Public))
			}

			r.Get("/report", s.handleReport)
			r.Get("/columns", s.handleColumns)
			r.Get("/pages/{page}/rows", s.handleRows)

			r.Get("/stats", s.handleStats)
			r.Get("/stats/chart.svg", s.handleStatsChart)
			r.Get("/stats/categories/{category}", s.handleCategory)
			r.Get("/stats/categories/{category}/chart.svg", s.handleCategoryChart)

			r.Get("/record", s.handleRecord)
			r.Get("/trace", s.handleTrace)
			r.Get("/handoff", s.handleHandoff)

			r.Get("/files/*", s.handleFileRequest)
			r.Head("/files/*", s.handleFileRequest)
		})

		// Archive generation reads artifacts on every request.
		r.Group(func(r chi.Router) {
			if limits.Enabled {
				r.Use(s.rateLimitMiddleware(limits.Reproducer))
			}

			r.Get("/reproducer", s.handleReproducer)
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}

	if s.allowAnyOrigin() {
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = s.cfg.Server.CORSOrigins
	}

	return cors.Handler(opts)
}

func (s *server) allowAnyOrigin() bool {
	origins := s.cfg.Server.CORSOrigins

	return len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")
}

// checkOrigin applies the CORS origins to websocket upgrades.
func (s *server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.allowAnyOrigin() {
		return true
	}

	for _, o := range s.cfg.Server.CORSOrigins {
		if o == origin {
			return true
		}
	}

	return false
}
