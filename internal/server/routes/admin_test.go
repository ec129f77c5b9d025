package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/page-cache/page-cache/internal/config"
	"github.com/page-cache/page-cache/internal/pagecache"
)

func TestForgetRoute(t *testing.T) {
	app, pc := newAdminApp(t)
	seed(t, pc, "/news/launch")

	payload := doJSON(t, app, "POST", "/-/page-cache/forget?key=news/launch", fiber.StatusOK)
	if payload["removed"] != true {
		t.Fatalf("expected removed=true, got %v", payload)
	}

	payload = doJSON(t, app, "POST", "/-/page-cache/forget?key=news/launch", fiber.StatusOK)
	if payload["removed"] != false {
		t.Fatalf("expected removed=false on second call, got %v", payload)
	}

	doJSON(t, app, "POST", "/-/page-cache/forget", fiber.StatusBadRequest)
	doJSON(t, app, "POST", "/-/page-cache/forget?key=../../etc/passwd", fiber.StatusBadRequest)
}

func TestClearRoute(t *testing.T) {
	app, pc := newAdminApp(t)
	seed(t, pc, "/", "/a/b")

	doJSON(t, app, "POST", "/-/page-cache/clear", fiber.StatusOK)
	doJSON(t, app, "GET", "/-/page-cache/entry?path=/a/b", fiber.StatusNotFound)
}

func TestRefreshRouteByCategory(t *testing.T) {
	app, pc := newAdminApp(t)
	seed(t, pc, "/news/1", "/NEWS/2", "/shop/1")

	payload := doJSON(t, app, "POST", "/-/page-cache/refresh?category=news", fiber.StatusOK)
	if payload["mode"] != "category" || payload["deleted"] != float64(2) {
		t.Fatalf("unexpected refresh payload: %v", payload)
	}
	doJSON(t, app, "GET", "/-/page-cache/entry?path=/shop/1", fiber.StatusOK)
}

func TestRefreshRouteExpired(t *testing.T) {
	app, pc := newAdminApp(t)
	seed(t, pc, "/fresh")

	payload := doJSON(t, app, "POST", "/-/page-cache/refresh", fiber.StatusOK)
	if payload["mode"] != "expired" || payload["deleted"] != float64(0) || payload["scanned"] != float64(1) {
		t.Fatalf("unexpected refresh payload: %v", payload)
	}
}

func TestEntryRoute(t *testing.T) {
	app, pc := newAdminApp(t)
	seed(t, pc, "/news/launch")

	payload := doJSON(t, app, "GET", "/-/page-cache/entry?path=news/launch", fiber.StatusOK)
	if payload["file"] != "launch.html" || payload["rel_path"] != "news/launch.html" {
		t.Fatalf("unexpected entry payload: %v", payload)
	}
	doJSON(t, app, "GET", "/-/page-cache/entry", fiber.StatusBadRequest)
}

func TestRoutesReportMissingCacheRoot(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	pc, err := pagecache.New(&config.Config{Global: config.GlobalConfig{Enabled: true}}, logger)
	if err != nil {
		t.Fatalf("pagecache.New error: %v", err)
	}
	app := fiber.New()
	RegisterAdminRoutes(app, pc, logger)

	doJSON(t, app, "POST", "/-/page-cache/clear", fiber.StatusServiceUnavailable)
}

func newAdminApp(t *testing.T) (*fiber.App, *pagecache.Cache) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Global: config.GlobalConfig{
			Enabled:   true,
			CacheRoot: filepath.Join(t.TempDir(), "page-cache"),
		},
		AllowList: []string{"*"},
		Timeouts:  config.DefaultTimeouts(),
	}
	pc, err := pagecache.New(cfg, logger)
	if err != nil {
		t.Fatalf("pagecache.New error: %v", err)
	}
	app := fiber.New()
	RegisterAdminRoutes(app, pc, logger)
	return app, pc
}

func seed(t *testing.T, pc *pagecache.Cache, paths ...string) {
	t.Helper()
	for _, p := range paths {
		req := pagecache.Request{Method: http.MethodGet, Path: p, RouteName: "web.seed"}
		resp := pagecache.Response{StatusCode: http.StatusOK, Body: []byte("<html>" + p + "</html>")}
		if err := pc.Cache(context.Background(), req, resp); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}
}

func doJSON(t *testing.T, app *fiber.App, method, target string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d (body=%s)", method, target, wantStatus, resp.StatusCode, string(body))
	}
	payload := map[string]any{}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body %s: %v", string(body), err)
	}
	return payload
}
