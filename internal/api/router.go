package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemohq/mnemo/internal/api/handlers"
	mw "github.com/mnemohq/mnemo/internal/api/middleware"
	"github.com/mnemohq/mnemo/internal/config"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/embedding"
	"github.com/mnemohq/mnemo/internal/notify"
	"github.com/mnemohq/mnemo/internal/service"
	"github.com/mnemohq/mnemo/internal/store"
	"go.uber.org/zap"
)

// App holds the router and the background services so main can manage their
// lifecycle.
type App struct {
	Router       *chi.Mux
	Hub          *notify.Hub
	Listener     *notify.Listener
	Reindexer    *service.Reindexer
	Reconciler   *service.Reconciler
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	tenantStore := store.NewTenantStore(db)
	indexStore := store.NewIndexStore(db)
	relationshipStore := store.NewRelationshipStore(db)

	// Embedding provider behind a circuit breaker
	provider, err := embedding.NewProvider(config.EmbeddingProvider(), config.OpenAIAPIKey())
	if err != nil {
		logger.Warn("embedding provider initialization failed, using mock",
			zap.String("provider", config.EmbeddingProvider()), zap.Error(err))
		provider = embedding.NewMockProvider()
	} else {
		logger.Info("embedding provider initialized", zap.String("provider", config.EmbeddingProvider()))
	}
	embedder := embedding.NewBreakerProvider(provider, logger)

	// Services
	registry := service.NewModuleRegistry(db, embedder, logger)
	router := service.NewRouter(indexStore, embedder, config.RoutingCacheTTL(), logger)
	cmi := service.NewCMI(registry, indexStore, relationshipStore, embedder, router, logger)
	reindexer := service.NewReindexer(cmi, registry, config.ReindexHorizon(), logger)
	pipeline := service.NewPipeline(registry, cmi, embedder, reindexer, logger)
	reconciler := service.NewReconciler(registry, cmi, tenantStore, indexStore, config.ReconcileInterval(), logger)
	fields := service.NewCustomFields(pipeline, registry, logger)
	projects := service.NewProjects(pipeline, registry, logger)
	people := service.NewPeople(pipeline, registry, fields, logger)

	// Change notification
	hub := notify.NewHub(logger)
	listener := notify.NewListener(db, hub, logger)

	// Handlers
	tenantHandler := handlers.NewTenantHandler(tenantStore)
	memoryHandler := handlers.NewMemoryHandler(pipeline, router)
	moduleHandler := handlers.NewModuleHandler(registry, pipeline)
	relationshipHandler := handlers.NewRelationshipHandler(cmi)
	projectHandler := handlers.NewProjectHandler(projects)
	personHandler := handlers.NewPersonHandler(people)
	fieldHandler := handlers.NewCustomFieldHandler(fields)
	eventHandler := handlers.NewEventHandler(hub, logger)
	toolHandler := handlers.NewToolHandler(pipeline, registry, cmi, projects, people)

	r := chi.NewRouter()

	app := &App{
		Router:     r,
		Hub:        hub,
		Listener:   listener,
		Reindexer:  reindexer,
		Reconciler: reconciler,
		startTime:  time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Tenant creation (no auth, bootstrap endpoint)
	r.Post("/v1/tenants", tenantHandler.Create)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.BearerAuth(tenantStore))

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", memoryHandler.Store)
			r.Post("/search", memoryHandler.Search)
			r.Get("/route", memoryHandler.Route)
		})

		r.Route("/modules", func(r chi.Router) {
			r.Get("/", moduleHandler.List)
			r.Get("/stats", moduleHandler.Stats)
			r.Route("/{module}", func(r chi.Router) {
				r.Route("/memories/{id}", func(r chi.Router) {
					r.Get("/", memoryHandler.GetByID)
					r.Put("/", memoryHandler.Update)
					r.Delete("/", memoryHandler.Delete)
				})
				r.Route("/fields", func(r chi.Router) {
					r.Get("/", fieldHandler.List)
					r.Post("/", fieldHandler.Define)
					r.Delete("/{key}", fieldHandler.Remove)
				})
			})
		})

		r.Route("/relationships", func(r chi.Router) {
			r.Post("/", relationshipHandler.Create)
			r.Get("/related", relationshipHandler.Related)
			r.Delete("/{id}", relationshipHandler.Delete)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectHandler.CreateProject)
			r.Get("/", projectHandler.ListProjects)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Put("/", projectHandler.UpdateProject)
				r.Delete("/", projectHandler.DeleteProject)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", projectHandler.CreateTask)
			r.Get("/", projectHandler.ListTasks)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetTask)
				r.Put("/", projectHandler.UpdateTask)
				r.Delete("/", projectHandler.DeleteTask)
			})
		})

		r.Route("/people", func(r chi.Router) {
			r.Post("/", personHandler.CreatePerson)
			r.Get("/", personHandler.ListPeople)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", personHandler.GetPerson)
				r.Put("/", personHandler.UpdatePerson)
				r.Delete("/", personHandler.DeletePerson)
			})
		})

		r.Route("/households", func(r chi.Router) {
			r.Post("/", personHandler.CreateHousehold)
			r.Get("/", personHandler.ListHouseholds)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/", personHandler.RecordAttendance)
			r.Get("/", personHandler.ListAttendance)
		})

		r.Route("/tools", func(r chi.Router) {
			r.Get("/", toolHandler.List)
			r.Post("/call", toolHandler.Call)
		})

		r.Get("/events", eventHandler.Stream)
		r.Delete("/tenant", moduleHandler.Purge)
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.TenantStore       = (*store.TenantStore)(nil)
	_ domain.MemoryStore       = (*store.MemoryStore)(nil)
	_ domain.IndexStore        = (*store.IndexStore)(nil)
	_ domain.RelationshipStore = (*store.RelationshipStore)(nil)
	_ domain.EmbeddingProvider = (*embedding.OpenAIProvider)(nil)
	_ domain.EmbeddingProvider = (*embedding.MockProvider)(nil)
	_ domain.EmbeddingProvider = (*embedding.BreakerProvider)(nil)
	_ domain.Publisher         = (*notify.Hub)(nil)
)
