// Package httpapi wires the HTTP transport (Gin) to the animal service,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, compression,
// metrics, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-animals/docs"
	"github.com/tbourn/go-animals/internal/config"
	"github.com/tbourn/go-animals/internal/domain"
	"github.com/tbourn/go-animals/internal/http/handlers"
	"github.com/tbourn/go-animals/internal/http/middleware"
	"github.com/tbourn/go-animals/internal/repo"
	"github.com/tbourn/go-animals/internal/services"
)

// animalRepoShim adapts the repository free functions to the
// services.AnimalRepo interface expected by the AnimalService.
type animalRepoShim struct{}

func (animalRepoShim) CreateAnimal(ctx context.Context, db *gorm.DB, name, typ string) (*domain.Animal, error) {
	return repo.CreateAnimal(ctx, db, name, typ)
}

func (animalRepoShim) ListAnimals(ctx context.Context, db *gorm.DB, typ string) ([]domain.Animal, error) {
	return repo.ListAnimals(ctx, db, typ)
}

func (animalRepoShim) CountAnimals(ctx context.Context, db *gorm.DB, typ string) (int64, error) {
	return repo.CountAnimals(ctx, db, typ)
}

func (animalRepoShim) ListAnimalsPage(ctx context.Context, db *gorm.DB, typ string, offset, limit int) ([]domain.Animal, error) {
	return repo.ListAnimalsPage(ctx, db, typ, offset, limit)
}

func (animalRepoShim) GetAnimal(ctx context.Context, db *gorm.DB, id uint) (*domain.Animal, error) {
	return repo.GetAnimal(ctx, db, id)
}

func (animalRepoShim) UpdateAnimal(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) (*domain.Animal, error) {
	return repo.UpdateAnimal(ctx, db, id, fields)
}

func (animalRepoShim) DeleteAnimal(ctx context.Context, db *gorm.DB, id uint) error {
	return repo.DeleteAnimal(ctx, db, id)
}

// AnimalsStats proxies repo.AnimalsStats (list ETag support).
func (animalRepoShim) AnimalsStats(ctx context.Context, db *gorm.DB, typ string) (int64, *time.Time, error) {
	return repo.AnimalsStats(ctx, db, typ)
}

// idemStore binds the idempotency repo functions to a DB and TTL so
// handlers can record and replay POST results.
type idemStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func (s idemStore) Get(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
}

func (s idemStore) Save(ctx context.Context, userID, scope, key string, animalID uint, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key, animalID, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return fmt.Errorf("%w: %w", handlers.ErrIdempotencyConflict, err)
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health, metrics and docs endpoints, and
// then mounts the animals API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip response compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(limitBody(maxBody))

	// 6) Compress responses for clients that accept gzip
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (allow all if none configured)
	methods := []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "X-Total-Count", "ETag", "Location", middleware.HeaderIdempotencyReplayed}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true, // browser clients may send credentials to listed origins
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       false,
		EnablePolicy:  true,
		ExposeHeaders: exposeHeaders,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	svc := services.NewAnimalService(db, animalRepoShim{})
	if cfg.MaxFieldRunes > 0 {
		svc.MaxFieldRunes = cfg.MaxFieldRunes
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	h := handlers.New(svc, idemStore{db: db, ttl: ttl})

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api"
	{
		api.GET("/animals", h.ListAnimals)
		api.HEAD("/animals", h.CountAnimals)
		api.POST("/animals", h.CreateAnimal)
		api.GET("/animals/:id", h.GetAnimal)
		api.PUT("/animals/:id", h.ReplaceAnimal)
		api.PATCH("/animals/:id", h.PatchAnimal)
		api.DELETE("/animals/:id", h.DeleteAnimal)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
