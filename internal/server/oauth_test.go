package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coaster/internal/shared"
	"golang.org/x/oauth2"
)

func newTestHandler(t *testing.T, state string) *OAuthHandler {
	t.Helper()

	// Token endpoint stub so Exchange succeeds without real credentials.
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "at", "refresh_token": "rt", "token_type": "Bearer"}`)
	}))
	t.Cleanup(tokenSrv.Close)

	config := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenSrv.URL},
	}
	return NewOAuthHandler(config, state)
}

func TestOAuthHandler(t *testing.T) {
	t.Run("successful callback delivers a token", func(t *testing.T) {
		handler := newTestHandler(t, "state123")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("result error = %v", result.Error())
		}
		if result.Token == nil || result.Token.AccessToken != "at" {
			t.Errorf("token = %+v, want access token from exchange", result.Token)
		}
	})

	t.Run("state mismatch is rejected", func(t *testing.T) {
		handler := newTestHandler(t, "state123")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=wrong&code=abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if result := <-handler.Result(); !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("result error = %v, want ErrAuthFailed", result.Error())
		}
	})

	t.Run("denied authorization surfaces the provider error", func(t *testing.T) {
		handler := newTestHandler(t, "state123")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=state123&error=access_denied", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if result := <-handler.Result(); !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("result error = %v, want ErrAuthFailed", result.Error())
		}
	})

	t.Run("second callback is refused", func(t *testing.T) {
		handler := newTestHandler(t, "state123")

		first := httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=abc", nil)
		handler.ServeHTTP(httptest.NewRecorder(), first)

		second := httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=def", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, second)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d for replayed callback, want 400", rec.Code)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d for wrong method, want 405", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("logging tags each request with an ID", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)
		shared.SetLogLevel(logger, log.DebugLevel)

		router := NewBasicRouter()
		router.Use(Logging(logger))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		first := httptest.NewRecorder()
		router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
		second := httptest.NewRecorder()
		router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))

		a, b := first.Header().Get("X-Request-ID"), second.Header().Get("X-Request-ID")
		if a == "" || b == "" {
			t.Fatal("X-Request-ID header not set")
		}
		if a == b {
			t.Errorf("request IDs not unique: %q", a)
		}
		if !strings.Contains(buf.String(), "request_id") {
			t.Errorf("log output missing request_id field: %q", buf.String())
		}
	})

	t.Run("middleware wraps in registration order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("outer"), mw("inner"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
			t.Errorf("middleware order = %v, want [outer inner]", order)
		}
	})
}
