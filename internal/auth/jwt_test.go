package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

func TestIssueParseRoundTrip(t *testing.T) {
	id := Identity{UserID: "u-1", Email: "a@ogrenci.edu.tr", Name: "A", Role: RoleStudent}
	tok, err := Issue(id, "rollcall", testKey, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.ID)

	claims, err := Parse(tok.AccessToken, testKey, "rollcall")
	require.NoError(t, err)
	assert.Equal(t, id, claims.Identity())
	assert.Equal(t, tok.ID, claims.ID)
}

func TestParseRejects(t *testing.T) {
	id := Identity{UserID: "u-1", Email: "t@x", Role: RoleTeacher}
	valid, err := Issue(id, "rollcall", testKey, time.Minute)
	require.NoError(t, err)
	expired, err := Issue(id, "rollcall", testKey, -time.Minute)
	require.NoError(t, err)
	noRole, err := Issue(Identity{UserID: "u-2", Email: "x@x"}, "rollcall", testKey, time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleTeacher}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{name: "wrong key", token: valid.AccessToken, key: "other", issuer: "rollcall"},
		{name: "wrong issuer", token: valid.AccessToken, key: testKey, issuer: "someone"},
		{name: "expired", token: expired.AccessToken, key: testKey, issuer: "rollcall"},
		{name: "missing role", token: noRole.AccessToken, key: testKey, issuer: "rollcall"},
		{name: "alg none", token: none, key: testKey, issuer: ""},
		{name: "garbage", token: "not-a-token", key: testKey, issuer: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.key, tt.issuer)
			assert.Error(t, err)
		})
	}
}
