package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(revoker Revoker) *gin.Engine {
	r := gin.New()
	g := r.Group("/", Bearer(testKey, "rollcall", revoker, zap.NewNop()))
	g.GET("/me", func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"email": id.Email})
	})
	g.GET("/teachers", RequireRole(RoleTeacher), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBearer(t *testing.T) {
	revoker := NewMemoryRevoker()
	r := newRouter(revoker)

	student, err := Issue(Identity{UserID: "s1", Email: "s@x", Role: RoleStudent}, "rollcall", testKey, time.Minute)
	require.NoError(t, err)

	rec := do(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"detail":"Not authenticated"}`, rec.Body.String())

	rec = do(r, "/me", "junk")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(r, "/me", student.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"s@x"}`, rec.Body.String())

	rec = do(r, "/teachers", student.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, revoker.Revoke(context.Background(), student.ID, student.ExpiresAt))
	rec = do(r, "/me", student.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Token has been revoked"}`, rec.Body.String())
}

func TestRequireRoleTeacher(t *testing.T) {
	r := newRouter(nil)
	teacher, err := Issue(Identity{UserID: "t1", Email: "t@x", Role: RoleTeacher}, "rollcall", testKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, do(r, "/teachers", teacher.AccessToken).Code)
}

func TestRedisRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rv := NewRedisRevoker(client)
	ctx := context.Background()

	require.NoError(t, rv.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	require.NoError(t, rv.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)))

	revoked, err := rv.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = rv.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = rv.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevokerExpiry(t *testing.T) {
	rv := NewMemoryRevoker()
	now := time.Now()
	rv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, rv.Revoke(ctx, "a", now.Add(time.Minute)))
	revoked, _ := rv.IsRevoked(ctx, "a")
	assert.True(t, revoked)

	rv.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, _ = rv.IsRevoked(ctx, "a")
	assert.False(t, revoked)
}
