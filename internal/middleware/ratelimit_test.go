package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newWebhookRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/api/webhook/github", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "queued"})
	})
	return router
}

func postWebhook(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/webhook/github", nil)
	req.RemoteAddr = ip + ":51234"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterAllow(t *testing.T) {
	tests := []struct {
		name  string
		rps   float64
		burst int
		calls int
		want  []bool
	}{
		{"within burst", 1, 3, 3, []bool{true, true, true}},
		{"burst exhausted", 1, 2, 3, []bool{true, true, false}},
		{"single token", 1, 1, 2, []bool{true, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rps, tt.burst)
			for i := 0; i < tt.calls; i++ {
				if got := rl.allow("203.0.113.7"); got != tt.want[i] {
					t.Errorf("call %d: allow() = %v, expected %v", i+1, got, tt.want[i])
				}
			}
		})
	}
}

func TestRateLimiterSeparatesDeliverySources(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	if !rl.allow("203.0.113.1") {
		t.Fatal("first source should have its own burst")
	}
	if rl.allow("203.0.113.1") {
		t.Error("first source should be exhausted")
	}
	if !rl.allow("203.0.113.2") {
		t.Error("second source must not be affected by the first source's burst")
	}
}

func TestRateLimitMiddlewareRejectsFlood(t *testing.T) {
	router := newWebhookRouter(NewRateLimiter(1, 2))

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = postWebhook(router, "198.51.100.9")
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status after flood = %d, expected %d", last.Code, http.StatusTooManyRequests)
	}

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal 429 body: %v", err)
	}
	if body.Code != http.StatusTooManyRequests {
		t.Errorf("body code = %d, expected %d", body.Code, http.StatusTooManyRequests)
	}
	if body.Message == "" {
		t.Error("429 body should carry a message")
	}
}

func TestRateLimitMiddlewarePassesNormalTraffic(t *testing.T) {
	router := newWebhookRouter(NewRateLimiter(10, 10))

	for i := 0; i < 3; i++ {
		if w := postWebhook(router, "198.51.100.10"); w.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, expected %d", i+1, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitConvenience(t *testing.T) {
	if mw := RateLimit(5, 5); mw == nil {
		t.Fatal("RateLimit() returned nil middleware")
	}
}
