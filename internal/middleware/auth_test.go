package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/patchpilot/patchpilot/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("middleware-test-secret")
}

func newProtectedRouter() *gin.Engine {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/api/reviews", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"user_id":  GetUserID(c),
			"username": GetUsername(c),
			"role":     GetRole(c),
		})
	})
	return router
}

func getReviews(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/reviews", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredRejectsBadCredentials(t *testing.T) {
	router := newProtectedRouter()

	expired, err := utils.GenerateToken(7, "reviewer", "user", -1)
	if err != nil {
		t.Fatalf("generate expired token: %v", err)
	}

	utils.SetJWTSecret("some-other-secret")
	foreign, err := utils.GenerateToken(7, "reviewer", "user", 24)
	if err != nil {
		t.Fatalf("generate foreign token: %v", err)
	}
	utils.SetJWTSecret("middleware-test-secret")

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic cmV2aWV3ZXI6aHVudGVyMg=="},
		{"bare bearer", "Bearer"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + expired},
		{"foreign signature", "Bearer " + foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := getReviews(router, tt.header); w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, expected %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthRequiredPopulatesIdentity(t *testing.T) {
	router := newProtectedRouter()

	token, err := utils.GenerateToken(42, "octocat", "admin", 24)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	w := getReviews(router, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, expected %d", w.Code, http.StatusOK)
	}

	var body struct {
		UserID   uint   `json:"user_id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.UserID != 42 {
		t.Errorf("user_id = %d, expected 42", body.UserID)
	}
	if body.Username != "octocat" {
		t.Errorf("username = %q, expected %q", body.Username, "octocat")
	}
	if body.Role != "admin" {
		t.Errorf("role = %q, expected %q", body.Role, "admin")
	}
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		name string
		role string
		want int
	}{
		{"no role", "", http.StatusForbidden},
		{"regular user", "user", http.StatusForbidden},
		{"admin", "admin", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				if tt.role != "" {
					c.Set(ContextRole, tt.role)
				}
				c.Next()
			})
			router.Use(AdminRequired())
			router.DELETE("/api/repositories/1", func(c *gin.Context) {
				c.JSON(200, gin.H{"message": "deleted"})
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("DELETE", "/api/repositories/1", nil)
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, expected %d", w.Code, tt.want)
			}
		})
	}
}

func TestContextAccessorsDefaults(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != 0 {
		t.Errorf("GetUserID on empty context = %d, expected 0", id)
	}
	if name := GetUsername(c); name != "" {
		t.Errorf("GetUsername on empty context = %q, expected empty", name)
	}
	if role := GetRole(c); role != "" {
		t.Errorf("GetRole on empty context = %q, expected empty", role)
	}

	c.Set(ContextUserID, uint(9))
	c.Set(ContextUsername, "octocat")
	c.Set(ContextRole, "user")

	if id := GetUserID(c); id != 9 {
		t.Errorf("GetUserID = %d, expected 9", id)
	}
	if name := GetUsername(c); name != "octocat" {
		t.Errorf("GetUsername = %q, expected %q", name, "octocat")
	}
	if role := GetRole(c); role != "user" {
		t.Errorf("GetRole = %q, expected %q", role, "user")
	}
}
