package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func setupAuthRouter(issuer *TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/me", AuthMiddleware(issuer), func(c *gin.Context) {
		id, _ := Caller(c)
		c.JSON(http.StatusOK, gin.H{"user_id": *id, "email": CallerEmail(c)})
	})
	router.GET("/admin", AuthMiddleware(issuer), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/maybe", OptionalAuth(issuer), func(c *gin.Context) {
		if _, ok := Caller(c); ok {
			c.String(http.StatusOK, "user")
			return
		}
		c.String(http.StatusOK, "guest")
	})
	return router
}

func doRequest(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	router := setupAuthRouter(issuer)

	token, err := issuer.Issue(&models.User{ID: 7, Email: "a@x.com", Role: models.RoleCustomer})
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	w := doRequest(router, "/me", token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := setupAuthRouter(NewTokenIssuer("test-secret", time.Hour))

	w := doRequest(router, "/me", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	router := setupAuthRouter(NewTokenIssuer("test-secret", time.Hour))

	token, _ := NewTokenIssuer("other-secret", time.Hour).Issue(&models.User{ID: 7, Role: models.RoleCustomer})
	w := doRequest(router, "/me", token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	router := setupAuthRouter(issuer)

	claims := Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))

	w := doRequest(router, "/me", token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	router := setupAuthRouter(issuer)

	customer, _ := issuer.Issue(&models.User{ID: 1, Role: models.RoleCustomer})
	admin, _ := issuer.Issue(&models.User{ID: 2, Role: models.RoleAdmin})

	if w := doRequest(router, "/admin", customer); w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d for customer, got %d", http.StatusForbidden, w.Code)
	}
	if w := doRequest(router, "/admin", admin); w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d for admin, got %d", http.StatusNoContent, w.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	router := setupAuthRouter(issuer)
	token, _ := issuer.Issue(&models.User{ID: 3, Role: models.RoleCustomer})

	if w := doRequest(router, "/maybe", ""); w.Body.String() != "guest" {
		t.Errorf("Expected guest, got %q", w.Body.String())
	}
	if w := doRequest(router, "/maybe", "garbage"); w.Body.String() != "guest" {
		t.Errorf("Expected guest for bad token, got %q", w.Body.String())
	}
	if w := doRequest(router, "/maybe", token); w.Body.String() != "user" {
		t.Errorf("Expected user, got %q", w.Body.String())
	}
}
