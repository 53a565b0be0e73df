package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, hash, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Equal(t, HashToken(token), hash)
	assert.NoError(t, ValidateTokenFormat(token))

	// Tokens must be unique
	token2, _, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("gcue_abc"), HashToken("gcue_abc"))
	assert.NotEqual(t, HashToken("gcue_abc"), HashToken("gcue_abd"))
	assert.Len(t, HashToken("gcue_abc"), 64) // hex-encoded SHA-256
}

func TestValidateTokenFormat(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", "gcue_dGVzdHRva2VuZGF0YQ", false},
		{"missing prefix", "dGVzdHRva2VuZGF0YQ", true},
		{"wrong prefix", "spk_dGVzdHRva2VuZGF0YQ", true},
		{"prefix only", "gcue_", true},
		{"invalid base64", "gcue_not!valid!base64!", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokenFormat(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTokenManager_ValidateToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := NewTokenManager(db)
	token, _, err := GenerateToken()
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "is_platform_admin", "is_active", "created_at"}).
		AddRow("user-1", "dana@example.com", "Dana", false, true, time.Now())
	mock.ExpectQuery("SELECT u.id").WithArgs(HashToken(token), sqlmock.AnyArg()).WillReturnRows(rows)
	mock.ExpectExec("UPDATE api_tokens").WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := tm.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "dana@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenManager_ValidateToken_UnknownToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := NewTokenManager(db)
	token, _, err := GenerateToken()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT u.id").WillReturnRows(sqlmock.NewRows(nil))

	_, err = tm.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_ValidateToken_InactiveUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := NewTokenManager(db)
	token, _, err := GenerateToken()
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "is_platform_admin", "is_active", "created_at"}).
		AddRow("user-1", "dana@example.com", "Dana", false, false, time.Now())
	mock.ExpectQuery("SELECT u.id").WillReturnRows(rows)

	_, err = tm.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_ValidateToken_BadFormatSkipsQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := NewTokenManager(db)

	_, err = tm.ValidateToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentity_IsComplete(t *testing.T) {
	assert.True(t, Identity{UserID: "u1", OrgID: "o1"}.IsComplete())
	assert.False(t, Identity{UserID: "u1"}.IsComplete())
	assert.False(t, Identity{OrgID: "o1"}.IsComplete())
	assert.False(t, Identity{}.IsComplete())
}

func TestAuthContext_Identity(t *testing.T) {
	var nilCtx *AuthContext
	assert.Equal(t, Identity{}, nilCtx.Identity())

	ctx := &AuthContext{User: &User{ID: "u1", IsPlatformAdmin: true}}
	id := ctx.Identity()
	assert.Equal(t, "u1", id.UserID)
	assert.Empty(t, id.OrgID)
	assert.True(t, id.PlatformAdmin)
	assert.False(t, id.IsComplete())

	ctx.Organization = &Organization{ID: "o1"}
	id = ctx.Identity()
	assert.Equal(t, "o1", id.OrgID)
	assert.True(t, id.IsComplete())
}
