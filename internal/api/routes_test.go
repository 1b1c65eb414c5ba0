package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/mergeball/internal/auth"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/room"
	"github.com/playmatatu/mergeball/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) (*gin.Engine, *room.Manager, *config.Config) {
	t.Helper()
	cfg := &config.Config{Environment: "test", JWTSecret: "secret", TickHz: 60, BroadcastHz: 10, LeaderboardSize: 50}
	mgr := room.NewManager(nil, nil, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		mgr.Shutdown(ctx)
	})
	r := gin.New()
	SetupRoutes(r, nil, mgr, ws.NewHandler(mgr, nil, cfg), cfg)
	return r, mgr, cfg
}

func do(r *gin.Engine, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndConfig(t *testing.T) {
	r, _, _ := newRouter(t)

	w := do(r, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
	if w.Header().Get("Cache-Control") == "" {
		t.Error("no-cache header missing outside production")
	}

	w = do(r, http.MethodGet, "/api/v1/config", "")
	var body struct {
		Width float64 `json:"width"`
		Ranks []struct {
			Radius float64 `json:"radius"`
		} `json:"ranks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if body.Width != 720 || len(body.Ranks) != 11 {
		t.Errorf("config = %+v, want width 720 and 11 ranks", body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	r, mgr, cfg := newRouter(t)

	if w := do(r, http.MethodPost, "/api/v1/sessions", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("create without token: status %d, want 401", w.Code)
	}

	token, _, _ := auth.IssueToken(cfg.JWTSecret, 9, "ada", time.Hour)
	w := do(r, http.MethodPost, "/api/v1/sessions", token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var created struct {
		SessionToken string `json:"session_token"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.SessionToken == "" || mgr.ActiveCount() != 1 {
		t.Fatalf("created = %+v active = %d", created, mgr.ActiveCount())
	}

	w = do(r, http.MethodGet, "/api/v1/sessions/"+created.SessionToken, "")
	if w.Code != http.StatusOK {
		t.Errorf("get: status %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/sessions/s_missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("get missing: status %d, want 404", w.Code)
	}

	other, _, _ := auth.IssueToken(cfg.JWTSecret, 10, "bo", time.Hour)
	if w := do(r, http.MethodDelete, "/api/v1/sessions/"+created.SessionToken, other); w.Code != http.StatusForbidden {
		t.Errorf("end by other player: status %d, want 403", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/sessions/"+created.SessionToken, token); w.Code != http.StatusAccepted {
		t.Errorf("end: status %d, want 202", w.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mgr.ActiveCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mgr.ActiveCount() != 0 {
		t.Error("session still active after end")
	}
}

func TestLeaderboardWithoutStores(t *testing.T) {
	r, _, _ := newRouter(t)
	w := do(r, http.MethodGet, "/api/v1/leaderboard?limit=500", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if w.Body.String() != `{"entries":[]}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	r, _, _ := newRouter(t)
	for _, body := range []string{`{}`, `{"display_name":"a","pin":"1234"}`, `{"display_name":"ada","pin":"12"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("register %s: status %d, want 400", body, w.Code)
		}
	}
}
