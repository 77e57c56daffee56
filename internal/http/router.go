package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	Bookings *BookingHandler
	Rooms    *RoomHandler
	// Identity guards every route except /healthz.
	Identity   func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if cfg.Identity != nil {
			r.Use(cfg.Identity)
		}

		if cfg.Rooms != nil {
			r.Get("/rooms", cfg.Rooms.List)
			r.Get("/rooms/{id}/status", cfg.Rooms.Status)
		}

		if cfg.Bookings != nil {
			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", cfg.Bookings.ListMine)
				r.Post("/", cfg.Bookings.Create)
				r.Get("/availability", cfg.Bookings.Availability)
				r.Get("/{id}", cfg.Bookings.Get)
			})

			r.Route("/admin/bookings", func(r chi.Router) {
				r.Get("/", cfg.Bookings.AdminList)
				r.Post("/{id}/approve", cfg.Bookings.Approve)
				r.Post("/{id}/reject", cfg.Bookings.Reject)
			})
		}
	})

	return r
}
