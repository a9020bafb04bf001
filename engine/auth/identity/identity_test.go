package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return s
}

func TestParseBearer(t *testing.T) {
	t.Run("Should read tenant from sub and tier from claims", func(t *testing.T) {
		id, err := ParseBearer("Bearer " + token(t, jwt.MapClaims{"sub": "user-42", "tier": "Premium"}))
		require.NoError(t, err)
		assert.Equal(t, "user-42", id.TenantID)
		assert.Equal(t, "premium", id.Tier)
		assert.False(t, id.Anonymous)
	})

	t.Run("Should fall back to user_id then tenant_id", func(t *testing.T) {
		id, err := ParseBearer("bearer " + token(t, jwt.MapClaims{"user_id": float64(1001)}))
		require.NoError(t, err)
		assert.Equal(t, "1001", id.TenantID)

		id, err = ParseBearer("Bearer " + token(t, jwt.MapClaims{"tenant_id": "gym-7", "tier": "free"}))
		require.NoError(t, err)
		assert.Equal(t, "gym-7", id.TenantID)
	})

	t.Run("Should not require a verifiable signature", func(t *testing.T) {
		signed := token(t, jwt.MapClaims{"sub": "u1"})
		id, err := ParseBearer("Bearer " + signed[:len(signed)-4] + "abcd")
		require.NoError(t, err)
		assert.Equal(t, "u1", id.TenantID)
	})

	t.Run("Should report missing and malformed tokens", func(t *testing.T) {
		_, err := ParseBearer("")
		assert.ErrorIs(t, err, ErrMissingToken)
		_, err = ParseBearer("Basic dXNlcjpwYXNz")
		assert.ErrorIs(t, err, ErrMalformedToken)
		_, err = ParseBearer("Bearer not-a-jwt")
		assert.ErrorIs(t, err, ErrMalformedToken)
		_, err = ParseBearer("Bearer " + token(t, jwt.MapClaims{"tier": "admin"}))
		assert.ErrorIs(t, err, ErrMalformedToken)
	})
}

func TestFromRequest(t *testing.T) {
	t.Run("Should downgrade to an anonymous identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderAuthorization, "Bearer garbage")
		id, err := FromRequest(req, "10.0.0.9")
		assert.ErrorIs(t, err, ErrMalformedToken)
		assert.True(t, id.Anonymous)
		assert.Equal(t, "anonymous:10.0.0.9", id.TenantID)
		assert.Empty(t, id.Tier)
	})

	t.Run("Should round-trip through the context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderAuthorization, "Bearer "+token(t, jwt.MapClaims{"sub": "u9", "tier": "free"}))
		id, err := FromRequest(req, "1.2.3.4")
		require.NoError(t, err)
		ctx := WithIdentity(t.Context(), id)
		got, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, "u9", got.TenantID)
		assert.Equal(t, "1.2.3.4", got.ClientIP)

		_, ok = FromContext(t.Context())
		assert.False(t, ok)
	})
}
