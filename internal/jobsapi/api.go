// Package jobsapi implements the REST surface used by operators and external
// schedulers to drive rule evaluation and segment recomputation.
package jobsapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/valkyrie/internal/automation"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
)

// Automation is the core consumed by the API. *automation.Service implements it.
type Automation interface {
	EvaluatePlayer(ctx context.Context, tenantID, playerID string, ec ruleengine.Context) *ruleengine.Report
	RecomputeSegments(ctx context.Context, tenantID string) (*automation.RecomputeResult, error)
	CheckSegment(ctx context.Context, tenantID, segmentID, playerID string) (bool, error)
	Sweep(ctx context.Context, tenantID string) (*automation.SweepResult, error)
}

// RuleCacheInvalidator drops cached active rules. *cache.RuleCache implements it.
type RuleCacheInvalidator interface {
	Invalidate(tenantID string)
}

// Options tune an API instance.
type Options struct {
	// APIKeyHash is the hex SHA-256 of the accepted API key.
	APIKeyHash string

	// SkipAuth disables authentication. Test and development only.
	SkipAuth bool

	// MaxBodyBytes caps request bodies. Zero means 1MB.
	MaxBodyBytes int64

	// Rules enables the cache invalidation route when set.
	Rules RuleCacheInvalidator
}

// API holds the router and its dependencies.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	svc          Automation
	rules        RuleCacheInvalidator
	apiKeyHash   string
	skipAuth     bool
	maxBodyBytes int64
}

// NewAPI creates a new API instance.
// Panics if svc is nil or if authentication is enabled without a key hash.
func NewAPI(svc Automation, opts Options) *API {
	if svc == nil {
		panic("jobsapi: automation service cannot be nil")
	}
	if !opts.SkipAuth && opts.APIKeyHash == "" {
		panic("jobsapi: apiKeyHash cannot be empty when authentication is enabled")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	api := &API{
		Router:       chi.NewRouter(),
		svc:          svc,
		rules:        opts.Rules,
		apiKeyHash:   opts.APIKeyHash,
		skipAuth:     opts.SkipAuth,
		maxBodyBytes: opts.MaxBodyBytes,
	}

	api.configureRoutes()
	return api
}

func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger)
	a.Router.Use(Metrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Use(tenantScope)
		r.Use(a.authenticateAPIKey)
		r.Use(a.limitBody)

		r.Post("/players/{playerID}/evaluate", a.handleEvaluatePlayer)
		r.Post("/segments/recompute", a.handleRecomputeSegments)
		r.Get("/segments/{segmentID}/players/{playerID}", a.handleCheckSegment)
		r.Post("/sweep", a.handleSweep)

		if a.rules != nil {
			r.Delete("/rules/cache", a.handleInvalidateRules)
		}
	})
}

func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
