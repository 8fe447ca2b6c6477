package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-attendance-bot/internal/config"
	"github.com/tbourn/go-attendance-bot/internal/http/middleware"
	"github.com/tbourn/go-attendance-bot/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   20,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		Attendance:  config.AttendanceConfig{Location: time.UTC},
	}
}

// newTestApp builds the real service graph with every clock pinned to now.
func newTestApp(t *testing.T, cfg config.Config, now time.Time) *App {
	t.Helper()
	app, err := NewApp(Deps{DB: newTestDB(t), Log: zerolog.Nop()}, cfg)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	clock := func() time.Time { return now }
	app.Tracker.Clock = clock
	app.Validation.Clock = clock
	app.Risk.Clock = clock
	return app
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	RegisterRoutes(r, newTestApp(t, cfg, time.Now()), cfg)

	w := do(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	w = do(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("expected http_requests_total in /metrics output")
	}

	if w = do(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w = do(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
	if w = do(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	RegisterRoutes(r, newTestApp(t, cfg, time.Now()), cfg)

	w := do(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	if w = do(r, http.MethodGet, "/api/v2/zones", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /api/v2/zones = %d", w.Code)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	RegisterRoutes(r, newTestApp(t, cfg, time.Now()), cfg)

	w := do(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/events/location") {
		t.Fatalf("swagger doc not served: %d %s", w.Code, w.Body.String())
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

	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := do(r, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// A check-in travels the full stack: command, location share, state,
// attendance listing and redelivery replay.
func TestPipeline_CheckInFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	app := newTestApp(t, cfg, now)
	RegisterRoutes(r, app, cfg)

	user := map[string]string{middleware.HeaderUserID: "5215512345678"}

	w := do(r, http.MethodPost, "/api/v1/events/text", `{"text":"Entrada"}`, user)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"allowed":true`) {
		t.Fatalf("entrada: %d %s", w.Code, w.Body.String())
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	loc := fmt.Sprintf(`{"latitude":19.4327,"longitude":-99.1332,"accuracy_meters":12,"captured_at":%d}`,
		now.Add(-10*time.Second).Unix())
	hdr := map[string]string{middleware.HeaderUserID: "5215512345678", middleware.HeaderEventID: "evt-loc-1"}
	first := do(r, http.MethodPost, "/api/v1/events/location", loc, hdr)
	if first.Code != http.StatusOK || !strings.Contains(first.Body.String(), `"accepted":true`) {
		t.Fatalf("location: %d %s", first.Code, first.Body.String())
	}

	// Redelivery of the same event returns the stored reply.
	again := do(r, http.MethodPost, "/api/v1/events/location", loc, hdr)
	if again.Header().Get("Event-Replayed") != "true" || again.Body.String() != first.Body.String() {
		t.Fatalf("expected replay, got %q %s", again.Header().Get("Event-Replayed"), again.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/employees/5215512345678/state", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"IN"`) {
		t.Fatalf("state: %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/employees/5215512345678/attendance", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":1`) {
		t.Fatalf("attendance: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag on attendance listing")
	}

	// A location share without coordinates still gets a reply.
	w = do(r, http.MethodPost, "/api/v1/events/location", `{}`, user)
	if w.Code != http.StatusOK {
		t.Fatalf("empty location: %d %s", w.Code, w.Body.String())
	}
}

func TestReceiptLookup_NilService(t *testing.T) {
	if receiptLookup(nil) != nil {
		t.Fatalf("nil receipt service must disable the lookup")
	}
}
