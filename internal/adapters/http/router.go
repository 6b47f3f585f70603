package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/core/ports"
	"github.com/kirillkom/cropguard/internal/observability/metrics"
)

const metricsService = "api"

type Router struct {
	detector ports.DiseaseDetector
	scans    ports.ScanHistory
	catalog  ports.DiseaseCatalog
	crops    ports.CropAdvisor
	metrics  *metrics.HTTPServerMetrics
	auth     *tokenVerifier

	development      bool
	maxUploadBytes   int64
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration
	corsOrigins      []string

	assetsPrefix string
	assetsDir    string

	openBreakers func() []string
}

func NewRouter(
	cfg config.Config,
	detector ports.DiseaseDetector,
	scans ports.ScanHistory,
	catalog ports.DiseaseCatalog,
	crops ports.CropAdvisor,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Router{
		detector:         detector,
		scans:            scans,
		catalog:          catalog,
		crops:            crops,
		metrics:          httpMetrics,
		auth:             newTokenVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer),
		development:      cfg.IsDevelopment(),
		maxUploadBytes:   cfg.MaxUploadBytes,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		corsOrigins:      origins,
	}
}

// ServeAssets exposes locally stored scan images under prefix.
func (rt *Router) ServeAssets(prefix, dir string) *Router {
	rt.assetsPrefix = "/" + strings.Trim(prefix, "/")
	rt.assetsDir = dir
	return rt
}

// ReportBreakers makes /healthz list providers whose circuit is open.
func (rt *Router) ReportBreakers(open func() []string) *Router {
	rt.openBreakers = open
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(metricsService, next)
		})
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	r.Get("/openapi.yaml", rt.openAPIDocument)
	r.Mount("/swagger", httpSwagger.Handler(
		httpSwagger.URL("/openapi.yaml"),
	))
	if rt.assetsDir != "" && rt.assetsPrefix != "/" {
		files := http.StripPrefix(rt.assetsPrefix+"/", http.FileServer(http.Dir(rt.assetsDir)))
		r.Handle(rt.assetsPrefix+"/*", files)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.rateLimitRPS, rt.rateLimitBurst)
		})
		v1.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.maxInFlight, rt.backpressureWait)
		})
		v1.Use(rt.authMiddleware)

		v1.Post("/detect", rt.detect)
		v1.Get("/scans", rt.listScans)
		v1.Delete("/scans/{id}", rt.deleteScan)
		v1.Get("/stats", rt.stats)
		v1.Get("/diseases", rt.listDiseases)
		v1.Get("/crops/suggestions", rt.cropSuggestions)
		v1.Get("/crops/validate", rt.validateCrop)
	})

	return r
}

type healthResponse struct {
	Status       string   `json:"status"`
	OpenCircuits []string `json:"open_circuits,omitempty"`
}

// healthz stays 200 while any stage is degraded; the offline fallback still answers.
func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if rt.openBreakers != nil {
		if open := rt.openBreakers(); len(open) > 0 {
			resp.Status = "degraded"
			resp.OpenCircuits = open
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
