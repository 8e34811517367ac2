package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/guildchat/pkg/auth"
)

func newRouter(jwtMgr *auth.JWTManager, blacklist auth.Blacklist) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(jwtMgr, blacklist), func(c *gin.Context) {
		id, _ := CurrentUser(c)
		c.String(http.StatusOK, id.String())
	})
	r.GET("/ws", WSAuthMiddleware(jwtMgr, blacklist), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	jwtMgr := auth.NewJWTManager("secret", time.Hour)
	blacklist := auth.NewMemoryBlacklist()
	r := newRouter(jwtMgr, blacklist)

	userID := uuid.New()
	token, expires, err := jwtMgr.Generate(userID)
	require.NoError(t, err)

	do := func(path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me?token="+token, "").Code)

	w := do("/me", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	assert.Equal(t, http.StatusOK, do("/ws?token="+token, "").Code)

	claims, err := jwtMgr.Verify(token)
	require.NoError(t, err)
	require.NoError(t, blacklist.Revoke(context.Background(), claims.ID, expires))

	w = do("/me", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "blacklisted")
}
