package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", AuthMiddleware(testSecret), func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "is_admin": IsAdmin(c)})
	})
	r.GET("/admin", AuthMiddleware(testSecret), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	r := newAuthRouter()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-1",
		"role":    "customer",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(r, "/whoami", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
	assert.Contains(t, w.Body.String(), `"is_admin":false`)
}

func TestAuthMiddleware_SubjectClaimFallback(t *testing.T) {
	r := newAuthRouter()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(r, "/whoami", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-2"`)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	w := doRequest(newAuthRouter(), "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_BadFormat(t *testing.T) {
	w := doRequest(newAuthRouter(), "/whoami", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	r := newAuthRouter()
	token := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(r, "/whoami", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	r := newAuthRouter()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	w := doRequest(r, "/whoami", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_MissingIdentity(t *testing.T) {
	r := newAuthRouter()
	token := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(r, "/whoami", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOnly(t *testing.T) {
	r := newAuthRouter()

	admin := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "admin-1",
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	w := doRequest(r, "/admin", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, w.Code)

	customer := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-1",
		"role":    "customer",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	w = doRequest(r, "/admin", "Bearer "+customer)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
