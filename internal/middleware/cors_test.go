package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newCORSRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS())
	router.POST("/api/webhook/github", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "queued"})
	})
	router.GET("/api/dashboard/stats", func(c *gin.Context) {
		c.JSON(200, gin.H{})
	})
	return router
}

func TestCORSWebhookPreflight(t *testing.T) {
	router := newCORSRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/api/webhook/github", nil)
	req.Header.Set("Origin", "https://github.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-Hub-Signature-256, X-GitHub-Event")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, expected %d", w.Code, http.StatusNoContent)
	}

	allowed := strings.ToLower(w.Header().Get("Access-Control-Allow-Headers"))
	for _, header := range []string{"x-hub-signature-256", "x-github-event", "x-github-delivery", "authorization"} {
		if !strings.Contains(allowed, header) {
			t.Errorf("Access-Control-Allow-Headers %q missing %q", allowed, header)
		}
	}
}

func TestCORSDashboardRequest(t *testing.T) {
	router := newCORSRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/dashboard/stats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, expected %d", w.Code, http.StatusOK)
	}
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin == "" {
		t.Error("Access-Control-Allow-Origin not set on cross-origin request")
	}
	if creds := w.Header().Get("Access-Control-Allow-Credentials"); creds != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, expected %q", creds, "true")
	}
}

func TestCORSAllowsAdminMethods(t *testing.T) {
	router := newCORSRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/api/dashboard/stats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	router.ServeHTTP(w, req)

	methods := strings.ToUpper(w.Header().Get("Access-Control-Allow-Methods"))
	for _, method := range []string{"DELETE", "PUT", "POST"} {
		if !strings.Contains(methods, method) {
			t.Errorf("Access-Control-Allow-Methods %q missing %s", methods, method)
		}
	}
}
