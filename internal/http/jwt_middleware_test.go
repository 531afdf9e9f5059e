package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"growth-chat/internal/service"
)

func newIdentityRouter(jwtSvc *service.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdentityMiddleware(jwtSvc, "/api"))
	ok := func(c *gin.Context) {
		subject, _ := SubjectFromContext(c)
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	}
	r.GET("/api/protected", ok)
	r.POST("/api/auth/login", ok)
	r.GET("/health", ok)
	r.GET("/health/db", ok)
	r.OPTIONS("/api/protected", ok)
	return r
}

func testJWT(now func() time.Time) *service.JWTService {
	return service.NewJWTService(service.JWTOptions{
		Secret:   "test-secret",
		Issuer:   "growth-hungry",
		Audience: "gh-users",
		TTL:      30 * time.Minute,
		Now:      now,
	})
}

func TestIdentityMiddleware_AllowsValidAccessToken(t *testing.T) {
	jwtSvc := testJWT(nil)
	token, err := jwtSvc.Issue("User@Example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newIdentityRouter(jwtSvc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["subject"] != "user@example.com" {
		t.Fatalf("expected normalized subject, got %q", body["subject"])
	}
}

func TestIdentityMiddleware_RejectsWithJSONBody(t *testing.T) {
	jwtSvc := testJWT(nil)
	expired := testJWT(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	oldToken, err := expired.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := map[string]string{
		"missing":    "",
		"not bearer": "Basic dXNlcjpwYXNz",
		"garbage":    "Bearer not-a-jwt",
		"expired":    "Bearer " + oldToken,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			newIdentityRouter(jwtSvc).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != 401 || body.Error != "Unauthorized" || body.Message != unauthorizedMessage {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

func TestIdentityMiddleware_OpenPaths(t *testing.T) {
	r := newIdentityRouter(testJWT(nil))

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/auth/login"},
		{http.MethodGet, "/health"},
		{http.MethodGet, "/health/db"},
		{http.MethodOptions, "/api/protected"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s: expected 200, got %d", tc.method, tc.path, rec.Code)
		}
	}
}
