package rbac

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func extractWith(t *testing.T, cfg JWTRoleExtractorConfig, token string) Role {
	t.Helper()
	extractor, err := NewJWTRoleExtractor(cfg)
	require.NoError(t, err)
	r := httptest.NewRequest("GET", "/", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return extractor(r)
}

func TestJWTRoleExtractor_SimpleClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"role": "operator"})
	assert.Equal(t, RoleOperator, extractWith(t, JWTRoleExtractorConfig{}, token))

	token = signedToken(t, jwt.MapClaims{"role": "authority"})
	assert.Equal(t, RoleAuthority, extractWith(t, JWTRoleExtractorConfig{}, token))

	token = signedToken(t, jwt.MapClaims{"role": "janitor"})
	assert.Equal(t, RoleViewer, extractWith(t, JWTRoleExtractorConfig{}, token))
}

func TestJWTRoleExtractor_MissingToken(t *testing.T) {
	assert.Equal(t, RoleViewer, extractWith(t, JWTRoleExtractorConfig{}, ""))
}

func TestJWTRoleExtractor_GarbageToken(t *testing.T) {
	assert.Equal(t, RoleViewer, extractWith(t, JWTRoleExtractorConfig{}, "not.a.jwt"))
}

func TestJWTRoleExtractor_NestedClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"realm_access": map[string]any{
			"roles": []any{"uma_authorization", "operator"},
		},
	})
	cfg := JWTRoleExtractorConfig{RoleClaim: "realm_access.roles"}
	assert.Equal(t, RoleOperator, extractWith(t, cfg, token))
}

func TestJWTRoleExtractor_ArrayClaimStrongestWins(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"roles": []any{"viewer", "operator", "authority"},
	})
	cfg := JWTRoleExtractorConfig{RoleClaim: "roles"}
	assert.Equal(t, RoleAuthority, extractWith(t, cfg, token))
}

func TestJWTRoleExtractor_WrongClaimPath(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"role": "authority"})
	cfg := JWTRoleExtractorConfig{RoleClaim: "permissions.level"}
	assert.Equal(t, RoleViewer, extractWith(t, cfg, token))
}
