package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJWT(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("secret"), Issuer: "ichat", Audience: "ichat-clients", TTL: time.Minute}

	token, err := GenerateToken(cfg, 42, "alice")
	require.NoError(t, err)

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateTokenRejects(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("secret"), Issuer: "ichat", Audience: "ichat-clients", TTL: time.Minute}
	exp := time.Now().Add(time.Minute).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{
			name: "wrong secret",
			token: makeJWT(t, "other", jwt.SigningMethodHS256, jwt.MapClaims{
				"user_id": 1, "iss": "ichat", "aud": "ichat-clients", "exp": exp,
			}),
		},
		{
			name: "expired",
			token: makeJWT(t, "secret", jwt.SigningMethodHS256, jwt.MapClaims{
				"user_id": 1, "iss": "ichat", "aud": "ichat-clients", "exp": time.Now().Add(-time.Minute).Unix(),
			}),
		},
		{
			name: "wrong issuer",
			token: makeJWT(t, "secret", jwt.SigningMethodHS256, jwt.MapClaims{
				"user_id": 1, "iss": "someone-else", "aud": "ichat-clients", "exp": exp,
			}),
		},
		{
			name: "wrong audience",
			token: makeJWT(t, "secret", jwt.SigningMethodHS256, jwt.MapClaims{
				"user_id": 1, "iss": "ichat", "aud": "browsers", "exp": exp,
			}),
		},
		{
			name: "missing user id",
			token: makeJWT(t, "secret", jwt.SigningMethodHS256, jwt.MapClaims{
				"iss": "ichat", "aud": "ichat-clients", "exp": exp,
			}),
		},
		{
			name:  "garbage",
			token: "definitely.not.jwt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(cfg, tt.token)
			assert.Error(t, err)
		})
	}
}
