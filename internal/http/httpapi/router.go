package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/leavend/refgen/internal/domain"
	"github.com/leavend/refgen/internal/http/handlers"
	"github.com/leavend/refgen/internal/http/respond"
	"github.com/leavend/refgen/internal/infra"
	"github.com/leavend/refgen/internal/middleware"
)

// bodyOverhead leaves room for base64 expansion and form fields on top of
// the raw upload limit.
const bodyOverhead = 2

func NewRouter(app *handlers.App, cfg *infra.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Fail(w, http.StatusNotFound, domain.CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Fail(w, http.StatusMethodNotAllowed, domain.CodeValidation, "method not allowed")
	})

	r.Get("/healthz", app.Health)

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Use(
			middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
			middleware.BodyLimit(cfg.MaxUploadBytes*bodyOverhead),
		)

		r.Post("/generate", app.Generate)
		r.Post("/generate-text", app.GenerateText)
		r.Get("/test", app.TestConnection)
		r.Get("/prompts", app.ListPrompts)
		r.Get("/generated-images", app.ListGenerated)
		r.Get("/debug", app.Debug)

		r.Route("/images", func(r chi.Router) {
			r.Post("/upload", app.UploadImage)
			r.Get("/", app.ListImages)
			r.Get("/prompt/{promptId}", app.ImagesByPrompt)
			r.Get("/{id}", app.GetImage)
			r.Delete("/{id}", app.DeleteImage)
		})
	})

	return r
}
