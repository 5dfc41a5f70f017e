package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/millstone-erp/millstone-erp/internal/shared"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
	}) {
		r.Use(mw)
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/act", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func establishSession(t *testing.T, router http.Handler) (*http.Cookie, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on GET, got %d", rr.Code)
	}

	token := rr.Header().Get("X-CSRF-Token")
	if token == "" {
		t.Fatalf("expected CSRF token header on GET response")
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == "test_session" {
			return c, token
		}
	}
	t.Fatalf("expected session cookie on GET response")
	return nil, ""
}

func TestMutatingRequestWithIssuedToken(t *testing.T) {
	router := newTestRouter(t)
	cookie, token := establishSession(t, router)

	req := httptest.NewRequest(http.MethodPost, "/act", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected POST with issued token to pass, got %d", rr.Code)
	}
}

func TestMutatingRequestWithoutToken(t *testing.T) {
	router := newTestRouter(t)
	cookie, _ := establishSession(t, router)

	req := httptest.NewRequest(http.MethodPost, "/act", nil)
	req.AddCookie(cookie)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected POST without token to be rejected, got %d", rr.Code)
	}
}

func TestMutatingRequestWithForgedToken(t *testing.T) {
	router := newTestRouter(t)
	cookie, _ := establishSession(t, router)

	req := httptest.NewRequest(http.MethodPost, "/act", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", "forged")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected POST with forged token to be rejected, got %d", rr.Code)
	}
}

func TestGetRequestsNeedNoToken(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected anonymous GET to pass, got %d", rr.Code)
	}
}
