package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-animals/internal/config"
	"github.com/tbourn/go-animals/internal/domain"
	"github.com/tbourn/go-animals/internal/http/handlers"
	"github.com/tbourn/go-animals/internal/http/middleware"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// schema so handlers don't explode on list endpoints
	if err := db.AutoMigrate(&domain.Animal{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := config.Config{
		APIBasePath: "/api",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
	db := newTestDB(t)

	RegisterRoutes(r, db, cfg)

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := config.Config{
		APIBasePath: "/api/v2",
		RateRPS:     50,
		RateBurst:   5,
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://example.com"}},
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
	db := newTestDB(t)

	RegisterRoutes(r, db, cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := config.Config{
		APIBasePath: "/api",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{},                                            // allow-all branch
		Security:    config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}, // enabled (but only set on https)
		OTEL:        config.OTELConfig{ServiceName: "svc"},
	}
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg)

	// Any request goes through the middleware stack
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	// simulate https so HSTS could be eligible if middleware checks scheme
	req.URL.Scheme = "https"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	// Tracing middleware shouldn't cause errors; nothing to assert here beyond 200.
	_ = context.Background()
}

func Test_animalRepoShim_Proxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	shim := animalRepoShim{}
	ctx := context.Background()

	a1, err := shim.CreateAnimal(ctx, db, "Rex", "dog")
	if err != nil {
		t.Fatalf("CreateAnimal: %v", err)
	}
	if a1 == nil || a1.ID == 0 || a1.Name != "Rex" || a1.Type != "dog" {
		t.Fatalf("CreateAnimal returned bad animal: %+v", a1)
	}
	if _, err := shim.CreateAnimal(ctx, db, "Tom", "cat"); err != nil {
		t.Fatalf("CreateAnimal cat: %v", err)
	}
	if _, err := shim.CreateAnimal(ctx, db, "Fido", "dog"); err != nil {
		t.Fatalf("CreateAnimal fido: %v", err)
	}

	dogs, err := shim.ListAnimals(ctx, db, "dog")
	if err != nil || len(dogs) != 2 {
		t.Fatalf("ListAnimals(dog) = %d, %v", len(dogs), err)
	}

	n, err := shim.CountAnimals(ctx, db, "")
	if err != nil || n != 3 {
		t.Fatalf("CountAnimals = %d, %v", n, err)
	}

	page, err := shim.ListAnimalsPage(ctx, db, "", 0, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListAnimalsPage = %d, %v", len(page), err)
	}

	got, err := shim.GetAnimal(ctx, db, a1.ID)
	if err != nil || got.ID != a1.ID {
		t.Fatalf("GetAnimal mismatch: %+v %v", got, err)
	}

	upd, err := shim.UpdateAnimal(ctx, db, a1.ID, map[string]any{"name": "Rexy"})
	if err != nil || upd.Name != "Rexy" {
		t.Fatalf("UpdateAnimal: %+v %v", upd, err)
	}

	cnt, maxTS, err := shim.AnimalsStats(ctx, db, "dog")
	if err != nil || cnt != 2 || maxTS == nil {
		t.Fatalf("AnimalsStats = %d %v %v", cnt, maxTS, err)
	}

	if err := shim.DeleteAnimal(ctx, db, a1.ID); err != nil {
		t.Fatalf("DeleteAnimal: %v", err)
	}
	if _, err := shim.GetAnimal(ctx, db, a1.ID); err == nil {
		t.Fatalf("GetAnimal after delete should fail")
	}
}

func Test_idemStore_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	store := idemStore{db: db, ttl: time.Hour}
	ctx := context.Background()

	if err := store.Save(ctx, "u1", "POST /api/animals", "k1", 7, http.StatusCreated); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := store.Get(ctx, "u1", "POST /api/animals", "k1", time.Now().UTC())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.AnimalID != 7 || rec.Status != http.StatusCreated {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := store.Get(ctx, "u1", "POST /api/animals", "k1", time.Now().UTC().Add(2*time.Hour)); err == nil {
		t.Fatalf("expired record should not be returned")
	}

	err = store.Save(ctx, "u1", "POST /api/animals", "k1", 8, http.StatusCreated)
	if !errors.Is(err, handlers.ErrIdempotencyConflict) {
		t.Fatalf("second Save: want ErrIdempotencyConflict, got %v", err)
	}
}

func TestRegisterRoutes_AnimalsCRUD_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := config.Config{
		APIBasePath:    "/api",
		RateRPS:        100,
		RateBurst:      50,
		MaxFieldRunes:  100,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "svc"},
	}
	RegisterRoutes(r, newTestDB(t), cfg)

	do := func(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
		var rd io.Reader
		if body != "" {
			rd = bytes.NewBufferString(body)
		}
		req := httptest.NewRequest(method, path, rd)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/api/animals", `{"name":"Rex","type":"Dog"}`, map[string]string{middleware.HeaderIdempotencyKey: "create-rex"})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST = %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"type":"dog"`) {
		t.Fatalf("type should be folded, body=%s", w.Body.String())
	}

	// same key → replay, no second row
	w = do(http.MethodPost, "/api/animals", `{"name":"Rex","type":"Dog"}`, map[string]string{middleware.HeaderIdempotencyKey: "create-rex"})
	if w.Code != http.StatusCreated || w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay = %d replayed=%q", w.Code, w.Header().Get(middleware.HeaderIdempotencyReplayed))
	}

	w = do(http.MethodGet, "/api/animals", "", nil)
	if w.Code != http.StatusOK || strings.Count(w.Body.String(), `"name":"Rex"`) != 1 {
		t.Fatalf("GET list = %d body=%s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag")
	}
	w = do(http.MethodGet, "/api/animals", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional GET = %d", w.Code)
	}

	w = do(http.MethodHead, "/api/animals", "", nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Total-Count") != "1" {
		t.Fatalf("HEAD = %d count=%q", w.Code, w.Header().Get("X-Total-Count"))
	}

	w = do(http.MethodPatch, "/api/animals/1", `{"name":"Rexy"}`, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"name":"Rexy"`) {
		t.Fatalf("PATCH = %d body=%s", w.Code, w.Body.String())
	}

	w = do(http.MethodPut, "/api/animals/1", `{"name":"Tom","type":"cat"}`, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"type":"cat"`) {
		t.Fatalf("PUT = %d body=%s", w.Code, w.Body.String())
	}

	w = do(http.MethodDelete, "/api/animals/1", "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d", w.Code)
	}
	w = do(http.MethodGet, "/api/animals/1", "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"error":"not_found"`) {
		t.Fatalf("GET deleted = %d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_RateLimitedCreate_EnvelopeAndReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := config.Config{
		APIBasePath:    "/api",
		RateRPS:        0.01,
		RateBurst:      1,
		MaxFieldRunes:  100,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "svc"},
	}
	RegisterRoutes(r, newTestDB(t), cfg)

	post := func(body string, hdr map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/animals", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"name":"Rex","type":"dog"}`, map[string]string{middleware.HeaderIdempotencyKey: "rex-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%s", w.Code, w.Body.String())
	}

	w = post(`{"name":"Tom","type":"cat"}`, map[string]string{"X-Request-ID": "rid-limited"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second create = %d; want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	var env struct {
		RequestID string `json:"request_id"`
		Error     string `json:"error"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if env.RequestID != "rid-limited" || env.Error != "rate_limited" || env.Message == "" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	// The retried create is replayed even though the bucket is empty.
	w = post(`{"name":"Rex","type":"dog"}`, map[string]string{middleware.HeaderIdempotencyKey: "rex-1"})
	if w.Code != http.StatusCreated || w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay = %d replayed=%q body=%s", w.Code, w.Header().Get(middleware.HeaderIdempotencyReplayed), w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"name":"Rex"`) {
		t.Fatalf("replay body = %s", w.Body.String())
	}
}

func TestRegisterRoutes_SwaggerToggle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, enabled := range []bool{false, true} {
		r := gin.New()
		cfg := config.Config{
			APIBasePath:    "/api",
			RateRPS:        100,
			RateBurst:      10,
			SwaggerEnabled: enabled,
			OTEL:           config.OTELConfig{ServiceName: "svc"},
		}
		RegisterRoutes(r, newTestDB(t), cfg)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
		if enabled && w.Code != http.StatusOK {
			t.Fatalf("swagger enabled: GET /swagger/doc.json = %d", w.Code)
		}
		if !enabled && w.Code != http.StatusNotFound {
			t.Fatalf("swagger disabled: GET /swagger/doc.json = %d", w.Code)
		}
	}
}

func TestRegisterRoutes_GzipWhenAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := config.Config{
		APIBasePath: "/api",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "svc"},
	}
	RegisterRoutes(r, newTestDB(t), cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/animals", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d", w.Code)
	}
	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
}

func TestRegisterRoutes_IdempotencyCallback_MissAndHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := config.Config{
		APIBasePath: "/api/vX",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{}, // allow-all branch
		Security:    config.SecurityConfig{EnableHSTS: false},
		OTEL:        config.OTELConfig{ServiceName: "svc"},
	}
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg)

	const userID = "u1"
	const key = "key-hit"
	const scope = "POST /health" // unmatched routes fall back to the request path

	// --- MISS: record does not exist (executes 'rec == nil' branch) ---
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// NoMethod is expected for POST /health, but middleware ran.

	// --- seed an idempotency record so the callback returns non-nil ---
	seed := &domain.Idempotency{
		ID:        "idem-seed-1",
		UserID:    userID,
		Scope:     scope,
		Key:       key,
		AnimalID:  1,
		Status:    1,
		// ensure it's considered valid "now"
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(seed).Error; err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	// --- HIT: record exists (executes 'return true, nil' branch) ---
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// only handlers serve replays; the 405 fallback must not claim one
	if w.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("405 fallback must not be flagged as replay")
	}
}

func TestRegisterRoutes_IdempotencyCallback_ErrorBranch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := config.Config{
		APIBasePath: "/api",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{}, // allow-all branch
		Security:    config.SecurityConfig{EnableHSTS: false},
		OTEL:        config.OTELConfig{ServiceName: "svc"},
	}

	// Make a fresh in-memory DB and migrate normally.
	db, err := gorm.Open(sqlite.Open("file:routerdb_err?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Animal{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	// Wire routes first...
	RegisterRoutes(r, db, cfg)

	// ...then force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// Now any repo.GetIdempotency call should error → drives (err != nil) branch.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set(middleware.HeaderIdempotencyKey, "force-error")
	r.ServeHTTP(w, req)

	// 405 is expected for POST /health; goal is to exercise the middleware branch.
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
