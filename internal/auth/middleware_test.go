package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expertassist/internal/users"

	"github.com/gin-gonic/gin"
)

func newProtectedRouter(m *Manager, lookup UserLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireUser(m, lookup), func(c *gin.Context) {
		id, err := UserID(c.Request.Context())
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id+"|"+Email(c.Request.Context()))
	})
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireUser(t *testing.T) {
	m := newManager(t)
	repo := users.NewMemoryRepo()
	if _, err := repo.Create(context.Background(), users.User{ID: "u1", Email: "sam@example.com"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := newProtectedRouter(m, repo)

	if w := get(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := get(r, "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}

	pair, _ := m.IssuePair(time.Now(), "u1", "stale@example.com")
	w := get(r, pair.AccessToken)
	if w.Code != http.StatusOK || w.Body.String() != "u1|sam@example.com" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}

	gone, _ := m.IssuePair(time.Now(), "deleted", "x@example.com")
	if w := get(r, gone.AccessToken); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", w.Code)
	}
}
