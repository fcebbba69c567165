package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baghaven/storefront/internal/model"
)

func TestJWT_Roundtrip(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	u := model.User{ID: "u-1", Role: model.RoleAdmin}

	tok, err := j.Issue(u)
	require.NoError(t, err)

	claims, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	require.NotNil(t, claims.ExpiresAt)
}

func TestJWT_DefaultRole(t *testing.T) {
	j := NewJWT("secret", 0)

	tok, err := j.Issue(model.User{ID: "u-2"})
	require.NoError(t, err)

	claims, err := NewDecoder().Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, claims.Role)
}

func TestJWT_WrongSecret(t *testing.T) {
	tok, err := NewJWT("secret", time.Hour).Issue(model.User{ID: "u"})
	require.NoError(t, err)

	_, err = NewJWT("other", time.Hour).Parse(tok)
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestJWT_Expired(t *testing.T) {
	j := NewJWT("secret", time.Minute)
	j.now = func() time.Time { return time.Now().Add(-time.Hour) }

	tok, err := j.Issue(model.User{ID: "u"})
	require.NoError(t, err)

	j.now = time.Now
	_, err = j.Parse(tok)
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("whatever"))
	require.NoError(t, err)
	return tok
}

func TestDecoder_Decode(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	tests := []struct {
		name        string
		token       string
		wantErr     bool
		wantSubject string
		wantRole    string
		wantExpiry  bool
	}{
		{
			name:    "empty",
			token:   "",
			wantErr: true,
		},
		{
			name:    "malformed",
			token:   "not-a-jwt",
			wantErr: true,
		},
		{
			name:        "id claim without expiry",
			token:       signed(t, jwt.MapClaims{"id": "abc", "role": "user"}),
			wantSubject: "abc",
			wantRole:    "user",
		},
		{
			name:        "sub wins over id",
			token:       signed(t, jwt.MapClaims{"sub": "s", "id": "i", "role": "admin", "exp": exp.Unix()}),
			wantSubject: "s",
			wantRole:    "admin",
			wantExpiry:  true,
		},
		{
			name:        "user_id fallback",
			token:       signed(t, jwt.MapClaims{"user_id": "legacy"}),
			wantSubject: "legacy",
		},
		{
			name:        "expired token still decodes",
			token:       signed(t, jwt.MapClaims{"id": "old", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantSubject: "old",
			wantExpiry:  true,
		},
	}

	d := NewDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := d.Decode(tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, claims.Subject)
			assert.Equal(t, tt.wantRole, claims.Role)
			assert.Equal(t, tt.wantExpiry, claims.ExpiresAt != nil)
		})
	}
}

func TestClaims_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	assert.False(t, model.Claims{}.Expired(now))
	assert.True(t, model.Claims{ExpiresAt: &past}.Expired(now))
	assert.False(t, model.Claims{ExpiresAt: &future}.Expired(now))
}
