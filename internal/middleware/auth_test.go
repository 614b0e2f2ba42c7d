package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

func signTestToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return signed
}

func TestAuthRequired_ValidToken(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	token := signTestToken(t, jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}, "test-secret")

	router := setupTestGin()
	router.Use(AuthRequired("test-secret"))
	router.GET("/test", func(c *gin.Context) {
		id, ok := UserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id.String()})
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %d", w.Code)
	}

	if !contains(w.Body.String(), userID.String()) {
		t.Errorf("Expected response to contain user id, got %s", w.Body.String())
	}
}

func TestAuthRequired_MissingHeader(t *testing.T) {
	router := setupTestGin()
	router.Use(AuthRequired("test-secret"))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestAuthRequired_MalformedHeader(t *testing.T) {
	router := setupTestGin()
	router.Use(AuthRequired("test-secret"))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Token abc123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestAuthRequired_ExpiredToken(t *testing.T) {
	token := signTestToken(t, jwt.MapClaims{
		"user_id": uuid.Must(uuid.NewV4()).String(),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	}, "test-secret")

	router := setupTestGin()
	router.Use(AuthRequired("test-secret"))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for expired token, got %d", w.Code)
	}
}

func TestAuthRequired_RefreshTokenRejected(t *testing.T) {
	token := signTestToken(t, jwt.MapClaims{
		"user_id": uuid.Must(uuid.NewV4()).String(),
		"type":    "refresh",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}, "test-secret")

	router := setupTestGin()
	router.Use(AuthRequired("test-secret"))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected refresh token to be rejected, got %d", w.Code)
	}
}
